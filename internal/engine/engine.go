// Package engine implements the in-memory keyspace that applies commands
// from the internal/command algebra. The engine is polymorphic over a
// capability set — a string-typed capability that owns the keyspace, and
// a generic capability (Exists/Delete) that acts on whatever capability
// holds the keys — so that future non-string data types (lists, sets,
// hashes) can be added without reshaping the command dispatch. Only the
// string-typed capability is implemented; spec.md §4.1 explicitly treats
// other data types as anticipated, out-of-scope future work.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"sphagnumdb/internal/command"
)

// ErrUnsupportedCommand is returned when a command variant has no
// handling in this engine. Per spec.md §4.1 this is the engine's only
// failure mode; apply otherwise never fails for well-formed commands.
var ErrUnsupportedCommand = errors.New("engine: command not supported")

// Engine applies commands to an in-memory keyspace. Implementations are
// not required to be safe for concurrent use: the node runtime
// guarantees serial access by holding its own lock for the duration of
// one Apply call (spec.md §5).
type Engine interface {
	Apply(cmd command.Command) command.Result
}

// StringEngine is the Engine implementation backing a keyspace of plain
// UTF-8 string values. It owns the only backing map in this engine and
// also implements the generic Exists/Delete operations against it,
// mirroring the "capability set {generic, string-typed}" split spec.md
// §4.1 describes: a future ListEngine, SetEngine, etc. would each own
// their own map and implement the same generic operations against it.
type StringEngine struct {
	mu   sync.Mutex
	data map[string]string
}

// NewStringEngine returns an empty StringEngine.
func NewStringEngine() *StringEngine {
	return &StringEngine{data: make(map[string]string)}
}

// Apply dispatches cmd to the matching per-command-kind handler. It
// never fails for a Kind this engine recognizes; an unrecognized Kind
// yields Err(ErrUnsupportedCommand).
func (e *StringEngine) Apply(cmd command.Command) command.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cmd.Kind {
	case command.Set:
		e.data[cmd.Key] = cmd.Value
		return command.StrResult("OK")
	case command.Get:
		v, ok := e.data[cmd.Key]
		if !ok {
			return command.NilResult()
		}
		return command.StrResult(v)
	case command.Append:
		v := e.data[cmd.Key] + cmd.Value
		e.data[cmd.Key] = v
		return command.IntResult(uint64(len(v)))
	case command.Exists:
		var count uint64
		for _, k := range cmd.Keys {
			if _, ok := e.data[k]; ok {
				count++
			}
		}
		return command.IntResult(count)
	case command.Delete:
		var removed uint64
		for _, k := range cmd.Keys {
			if _, ok := e.data[k]; ok {
				delete(e.data, k)
				removed++
			}
		}
		return command.IntResult(removed)
	default:
		return command.ErrResult(fmt.Errorf("%w: %v", ErrUnsupportedCommand, cmd.Kind).Error())
	}
}
