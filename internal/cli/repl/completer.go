package repl

import (
	"sort"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"complete", "exit", "history", "quit"}

// Completer suggests commands by prefix.
type Completer struct {
	commands []string
	roots    map[string]bool
}

// NewCompleter creates a Completer over commands and the REPL builtins.
func NewCompleter(commands []string) *Completer {
	c := &Completer{roots: make(map[string]bool)}
	seen := make(map[string]bool)
	for _, cmd := range append(append([]string(nil), commands...), builtins...) {
		cmd = strings.Join(strings.Fields(cmd), " ")
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		c.commands = append(c.commands, cmd)
		c.roots[strings.Fields(cmd)[0]] = true
	}
	sort.Strings(c.commands)
	return c
}

// Complete returns the commands starting with prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is a top-level command.
func (c *Completer) Known(name string) bool {
	return c.roots[name]
}
