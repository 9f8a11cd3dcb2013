package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPrompt is shown before each line.
const DefaultPrompt = "walletauth> "

// Executor runs one command line, already split into arguments.
type Executor func(ctx context.Context, args []string) error

// Config configures a REPL.
type Config struct {
	Prompt string
	Input  io.Reader
	Output io.Writer

	// Commands are the completion candidates, e.g. "session status".
	Commands []string

	// HistoryFile persists entered lines. Empty keeps history in memory.
	HistoryFile string
	HistorySize int

	Execute Executor
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	prompt    string
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	execute   Executor
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &REPL{
		prompt:    cfg.Prompt,
		input:     cfg.Input,
		output:    cfg.Output,
		completer: NewCompleter(cfg.Commands),
		history:   NewHistory(cfg.HistoryFile, cfg.HistorySize),
		execute:   cfg.Execute,
	}
}

// Run reads lines until EOF, exit, or ctx ends. Command errors are
// printed and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: history not saved: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}
		if err := r.eval(ctx, line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) eval(ctx context.Context, line string) error {
	args, err := SplitArgs(line)
	if err != nil {
		return err
	}

	switch args[0] {
	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil
	case "complete":
		prefix := strings.Join(args[1:], " ")
		for _, s := range r.completer.Complete(prefix) {
			fmt.Fprintln(r.output, s)
		}
		return nil
	}

	if !r.completer.Known(args[0]) {
		msg := fmt.Sprintf("unknown command %q", args[0])
		if hints := r.completer.Complete(args[0][:1]); len(hints) > 0 {
			msg += " (try: " + strings.Join(hints, ", ") + ")"
		}
		return errors.New(msg)
	}
	if r.execute == nil {
		return errors.New("no executor configured")
	}
	return r.execute(ctx, args)
}

// SplitArgs splits a line on whitespace. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
