// Package repl provides the interactive shell of walletauth-cli.
//
//   - repl.go: the read-eval-print loop and argument splitting
//   - completer.go: prefix completion over the command tree
//   - history.go: line history persisted under ~/.walletauth
//
// Lines are split shell-style and handed to an Executor, so every
// one-shot command is also available interactively.
package repl
