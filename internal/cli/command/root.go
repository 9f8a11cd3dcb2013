package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/walletauth/internal/cli/config"
	"github.com/yndnr/walletauth/internal/cli/connection"
	"github.com/yndnr/walletauth/internal/cli/output"
	"github.com/yndnr/walletauth/internal/infra/buildinfo"
)

// DefaultAgent is the agent's default local API address.
const DefaultAgent = "127.0.0.1:7580"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "walletauth-cli",
		Usage:                "Inspect and control a walletauth agent",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			SessionCommand(),
			WalletCommand(),
			ConnectorCommand(),
			MessageCommand(),
			ConfigCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			if err := applyConfigFile(c); err != nil {
				return err
			}
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "agent",
			Aliases: []string{"a"},
			Usage:   "walletauth agent address (e.g., 127.0.0.1:7580)",
			EnvVars: []string{"WALLETAUTH_AGENT"},
			Value:   DefaultAgent,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI configuration file (default ~/.walletauth/cli.yaml)",
			EnvVars: []string{clicfg.EnvConfigPath},
		},
	}
}

// configPath returns the CLI configuration file in effect.
func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return clicfg.DefaultConfigPath()
}

// applyConfigFile fills global flags the user did not set from the CLI
// configuration file.
func applyConfigFile(c *cli.Context) error {
	cfg, err := clicfg.Load(configPath(c))
	if err != nil {
		return err
	}
	set := func(name, value string) error {
		if value == "" || c.IsSet(name) {
			return nil
		}
		return c.Set(name, value)
	}
	if err := set("agent", cfg.Agent); err != nil {
		return err
	}
	if err := set("output", cfg.Output); err != nil {
		return err
	}
	if cfg.Timeout > 0 {
		return set("timeout", cfg.Timeout.String())
	}
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Agent   string
	Output  output.Format
	Wide    bool
	Timeout time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		format = output.FormatTable
	}
	return &GlobalFlags{
		Agent:   c.String("agent"),
		Output:  format,
		Wide:    c.Bool("wide"),
		Timeout: c.Duration("timeout"),
	}
}

// newClient returns a client for the agent named by the global flags.
func newClient(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Agent, flags.Timeout)
}

// requestContext bounds one round trip to the agent.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	return output.NewFormatter(flags.Output, flags.Wide).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	return c.App.Writer
}

func stderr(c *cli.Context) io.Writer {
	return c.App.ErrWriter
}

// getJSON fetches path and decodes the response data into target.
func getJSON(c *cli.Context, path string, target any) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Get(ctx, path)
	if err != nil {
		return err
	}
	return connection.ParseResponse(resp, target)
}

// postJSON posts to path and decodes the response data into target.
func postJSON(c *cli.Context, path string, target any) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Post(ctx, path, nil)
	if err != nil {
		return err
	}
	return connection.ParseResponse(resp, target)
}

// tableOutput reports whether the human-readable format was selected.
func tableOutput(c *cli.Context) bool {
	return ParseGlobalFlags(c).Output == output.FormatTable
}

// printf writes a human message unless a machine format was requested.
func printf(c *cli.Context, format string, args ...any) {
	if tableOutput(c) {
		fmt.Fprintf(stdout(c), format, args...)
	}
}
