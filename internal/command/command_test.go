package command

import (
	"encoding/json"
	"testing"
)

func TestCommandJSONRoundTrip(t *testing.T) {
	cases := []Command{
		NewSet("k", "v"),
		NewGet("k"),
		NewAppend("k", "v"),
		NewExists([]string{"a", "a", "b"}),
		NewDelete([]string{"a", "b"}),
	}

	for _, c := range cases {
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal %v: %v", c.Kind, err)
		}

		var got Command
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", c.Kind, err)
		}

		if got.Kind != c.Kind || got.Key != c.Key || got.Value != c.Value || len(got.Keys) != len(c.Keys) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, c)
		}
	}
}

func TestCommandWireShape(t *testing.T) {
	data, err := json.Marshal(NewSet("k", "v"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	if raw["String"]["Set"]["key"] != "k" || raw["String"]["Set"]["value"] != "v" {
		t.Errorf("unexpected wire shape: %s", string(data))
	}
}

func TestKindMutating(t *testing.T) {
	mutating := []Kind{Set, Append, Delete}
	readonly := []Kind{Get, Exists}

	for _, k := range mutating {
		if !k.Mutating() {
			t.Errorf("%v should be mutating", k)
		}
	}
	for _, k := range readonly {
		if k.Mutating() {
			t.Errorf("%v should not be mutating", k)
		}
	}
}

func TestResultRender(t *testing.T) {
	cases := []struct {
		result Result
		want   string
	}{
		{StrResult("value"), "value"},
		{IntResult(5), "5"},
		{BoolResult(true), "true"},
		{BoolResult(false), "false"},
		{NilResult(), "nil"},
		{ErrResult("boom"), "Error: boom"},
	}

	for _, tc := range cases {
		if got := tc.result.Render(); got != tc.want {
			t.Errorf("Render() = %q, want %q", got, tc.want)
		}
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	cases := []Result{
		StrResult("value"),
		IntResult(42),
		BoolResult(true),
		NilResult(),
		ErrResult("boom"),
	}

	for _, r := range cases {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal %v: %v", r.Kind, err)
		}

		var got Result
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", r.Kind, err)
		}

		if got.Render() != r.Render() {
			t.Errorf("round trip mismatch: got %q, want %q", got.Render(), r.Render())
		}
	}
}
