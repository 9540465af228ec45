// Package command defines the closed algebra of typed commands and typed
// results shared by the keyspace engine, the operator shell, and the peer
// wire protocol.
package command

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a Command variant.
type Kind int

const (
	// Set overwrites a key's value, creating the key if absent.
	Set Kind = iota
	// Get reads a key's value.
	Get
	// Append concatenates a value onto a key, creating it if absent.
	Append
	// Exists counts how many of a list of keys are present, duplicates included.
	Exists
	// Delete removes a list of keys and reports how many were actually present.
	Delete
)

func (k Kind) String() string {
	switch k {
	case Set:
		return "Set"
	case Get:
		return "Get"
	case Append:
		return "Append"
	case Exists:
		return "Exists"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Mutating reports whether applying this kind of command can change the
// keyspace. Get and Exists never mutate; Set, Append and Delete do.
func (k Kind) Mutating() bool {
	switch k {
	case Set, Append, Delete:
		return true
	default:
		return false
	}
}

// Command is a single member of the closed command algebra. Only the
// fields relevant to Kind are meaningful; Key/Value are used by the
// string-category commands, Keys by the generic-category commands.
type Command struct {
	Kind  Kind
	Key   string
	Value string
	Keys  []string
}

// NewSet builds a Set{key, value} command.
func NewSet(key, value string) Command { return Command{Kind: Set, Key: key, Value: value} }

// NewGet builds a Get{key} command.
func NewGet(key string) Command { return Command{Kind: Get, Key: key} }

// NewAppend builds an Append{key, value} command.
func NewAppend(key, value string) Command { return Command{Kind: Append, Key: key, Value: value} }

// NewExists builds an Exists{keys} command. Duplicates in keys are preserved.
func NewExists(keys []string) Command { return Command{Kind: Exists, Keys: keys} }

// NewDelete builds a Delete{keys} command.
func NewDelete(keys []string) Command { return Command{Kind: Delete, Keys: keys} }

// wire shapes mirror the externally-tagged enum encoding of the original
// Rust implementation: {"String":{"Set":{"key":...,"value":...}}} and
// {"Generic":{"Delete":{"keys":[...]}}}. This is what spec.md §6 requires
// implementations to produce and accept.

type stringFields struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type keyFields struct {
	Key string `json:"key"`
}

type genericFields struct {
	Keys []string `json:"keys"`
}

type wireString struct {
	Set    *stringFields `json:"Set,omitempty"`
	Get    *keyFields    `json:"Get,omitempty"`
	Append *stringFields `json:"Append,omitempty"`
}

type wireGeneric struct {
	Exists *genericFields `json:"Exists,omitempty"`
	Delete *genericFields `json:"Delete,omitempty"`
}

type wireCommand struct {
	String  *wireString  `json:"String,omitempty"`
	Generic *wireGeneric `json:"Generic,omitempty"`
}

// MarshalJSON renders Command in the externally-tagged shape spec.md §6
// mandates for wire interoperability.
func (c Command) MarshalJSON() ([]byte, error) {
	var w wireCommand
	switch c.Kind {
	case Set:
		w.String = &wireString{Set: &stringFields{Key: c.Key, Value: c.Value}}
	case Get:
		w.String = &wireString{Get: &keyFields{Key: c.Key}}
	case Append:
		w.String = &wireString{Append: &stringFields{Key: c.Key, Value: c.Value}}
	case Exists:
		w.Generic = &wireGeneric{Exists: &genericFields{Keys: c.Keys}}
	case Delete:
		w.Generic = &wireGeneric{Delete: &genericFields{Keys: c.Keys}}
	default:
		return nil, fmt.Errorf("command: unknown kind %v", c.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the externally-tagged shape spec.md §6 defines.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	switch {
	case w.String != nil && w.String.Set != nil:
		*c = Command{Kind: Set, Key: w.String.Set.Key, Value: w.String.Set.Value}
	case w.String != nil && w.String.Get != nil:
		*c = Command{Kind: Get, Key: w.String.Get.Key}
	case w.String != nil && w.String.Append != nil:
		*c = Command{Kind: Append, Key: w.String.Append.Key, Value: w.String.Append.Value}
	case w.Generic != nil && w.Generic.Exists != nil:
		*c = Command{Kind: Exists, Keys: w.Generic.Exists.Keys}
	case w.Generic != nil && w.Generic.Delete != nil:
		*c = Command{Kind: Delete, Keys: w.Generic.Delete.Keys}
	default:
		return fmt.Errorf("command: unrecognized wire shape %s", string(data))
	}
	return nil
}
