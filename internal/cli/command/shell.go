package command

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/walletauth/internal/cli/repl"
)

// ShellCommand starts an interactive session running the other commands.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write ~/.walletauth/history",
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	historyFile := repl.DefaultHistoryFile()
	if c.Bool("no-history") {
		historyFile = ""
	}

	r := repl.New(repl.Config{
		Input:       c.App.Reader,
		Output:      stdout(c),
		Commands:    append(commandPaths(App().Commands, ""), "help"),
		HistoryFile: historyFile,
		Execute:     shellExecutor(c),
	})
	return r.Run(c.Context)
}

// shellExecutor runs each line as a fresh invocation that inherits the
// shell's global flags.
func shellExecutor(c *cli.Context) repl.Executor {
	flags := ParseGlobalFlags(c)
	global := []string{
		"walletauth-cli",
		"--agent", flags.Agent,
		"--output", string(flags.Output),
		"--timeout", flags.Timeout.String(),
		"--config", configPath(c),
	}
	if flags.Wide {
		global = append(global, "--wide")
	}

	return func(ctx context.Context, args []string) error {
		if args[0] == "shell" {
			return errors.New("already in the shell")
		}
		app := App()
		app.Reader = c.App.Reader
		app.Writer = c.App.Writer
		app.ErrWriter = c.App.ErrWriter
		return app.RunContext(ctx, append(append([]string(nil), global...), args...))
	}
}

// commandPaths lists "name" and "name sub" for every command.
func commandPaths(cmds []*cli.Command, parent string) []string {
	var out []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		path := strings.TrimSpace(parent + " " + cmd.Name)
		out = append(out, path)
		out = append(out, commandPaths(cmd.Subcommands, path)...)
	}
	return out
}
