package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/walletauth/internal/cli/config"
	"github.com/yndnr/walletauth/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change CLI defaults",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective settings",
				Action: configShow,
			},
			{
				Name:  "set",
				Usage: "Save defaults to the CLI configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "agent", Usage: "Default agent address"},
					&cli.StringFlag{Name: "output", Usage: "Default output format"},
					&cli.DurationFlag{Name: "timeout", Usage: "Default request timeout"},
				},
				Action: configSet,
			},
		},
	}
}

type cliSettings struct {
	File    string        `json:"file"`
	Agent   string        `json:"agent"`
	Output  output.Format `json:"output"`
	Wide    bool          `json:"wide"`
	Timeout time.Duration `json:"timeout"`
}

func (s cliSettings) Table(bool) *output.Table {
	t := output.NewKeyValueTable()
	t.AddRow("file", s.File)
	t.AddRow("agent", s.Agent)
	t.AddRow("output", string(s.Output))
	t.AddRow("timeout", s.Timeout.String())
	return t
}

func configShow(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	return render(c, cliSettings{
		File:    configPath(c),
		Agent:   flags.Agent,
		Output:  flags.Output,
		Wide:    flags.Wide,
		Timeout: flags.Timeout,
	})
}

func configSet(c *cli.Context) error {
	update := clicfg.CLIConfig{
		Agent:   c.String("agent"),
		Output:  c.String("output"),
		Timeout: c.Duration("timeout"),
	}
	if update == (clicfg.CLIConfig{}) {
		return fmt.Errorf("nothing to set: pass --agent, --output or --timeout")
	}
	if update.Output != "" {
		format, err := output.ParseFormat(update.Output)
		if err != nil {
			return err
		}
		update.Output = string(format)
	}

	path := configPath(c)
	current, err := clicfg.Load(path)
	if err != nil {
		return err
	}
	merged := clicfg.Merge(*current, update)
	if err := clicfg.Save(&merged, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	// --output here is the saved default, not this run's format.
	_, err = fmt.Fprintf(stdout(c), "Saved %s.\n", path)
	return err
}
