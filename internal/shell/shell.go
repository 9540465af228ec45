// Package shell implements the operator line protocol: a small set of
// text verbs typed at a terminal, mapped to typed commands and
// dispatched to a chosen connected peer.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"sphagnumdb/internal/command"
	"sphagnumdb/internal/node"
)

// notConnectedMessage is printed when no peer is connected to dispatch
// a command to, matching the exact wording operators are shown.
const notConnectedMessage = "Not connected to any node"

// Shell reads operator lines and dispatches the resulting commands to
// the node's first connected peer.
type Shell struct {
	node *node.Node
}

// New returns a Shell driving n.
func New(n *node.Node) *Shell {
	return &Shell{node: n}
}

// Run reads whitespace-separated command lines from r until EOF or ctx
// is done, writing one response line per non-blank input line to w.
// Blank lines are skipped without a response.
func (s *Shell) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintln(w, s.Execute(ctx, line))
	}
	return scanner.Err()
}

// Execute parses and dispatches a single operator line, returning the
// text to present to the operator. It never panics on malformed input.
func (s *Shell) Execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "usage: get|set|append|exists|del|enable_pinging_output|disable_pinging_output ..."
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "get":
		if len(args) != 1 {
			return "usage: get <key>"
		}
		return s.dispatch(ctx, command.NewGet(args[0]))
	case "set":
		if len(args) != 2 {
			return "usage: set <key> <value>"
		}
		return s.dispatch(ctx, command.NewSet(args[0], args[1]))
	case "append":
		if len(args) != 2 {
			return "usage: append <key> <value>"
		}
		return s.dispatch(ctx, command.NewAppend(args[0], args[1]))
	case "exists":
		if len(args) == 0 {
			return "usage: exists <key> [<key>...]"
		}
		return s.dispatch(ctx, command.NewExists(args))
	case "del":
		if len(args) == 0 {
			return "usage: del <key> [<key>...]"
		}
		return s.dispatch(ctx, command.NewDelete(args))
	case "enable_pinging_output":
		s.node.EnablePingVerbose()
		return "ping logging enabled"
	case "disable_pinging_output":
		s.node.DisablePingVerbose()
		return "ping logging disabled"
	default:
		return fmt.Sprintf("unknown command: %s", fields[0])
	}
}

// dispatch sends cmd to the first connected peer, picked deterministically
// by sorting peer ids, and reports whether the request was enqueued. The
// command's actual result arrives later, asynchronously, and is logged
// by the node's event loop when the response comes back.
func (s *Shell) dispatch(ctx context.Context, cmd command.Command) string {
	peer, ok := s.firstConnectedPeer()
	if !ok {
		return notConnectedMessage
	}

	if _, err := s.node.SendRequestToPeer(ctx, peer, cmd); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("%s request sent to %s", cmd.Kind, peer)
}

func (s *Shell) firstConnectedPeer() (string, bool) {
	peers := s.node.ConnectedPeers()
	if len(peers) == 0 {
		return "", false
	}
	sort.Strings(peers)
	return peers[0], true
}
