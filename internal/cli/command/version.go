package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/walletauth/internal/cli/output"
	"github.com/yndnr/walletauth/internal/infra/buildinfo"
)

// VersionCommand prints build information, and the agent's when asked.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "Also query the running agent",
			},
		},
		Action: versionAction,
	}
}

type versionInfo struct {
	CLI   buildinfo.Info `json:"cli"`
	Agent *healthStatus  `json:"agent,omitempty"`
}

func (v versionInfo) Table(bool) *output.Table {
	t := output.NewKeyValueTable()
	t.AddRow("cli", v.CLI.Version)
	t.AddRow("commit", v.CLI.Commit)
	t.AddRow("built", v.CLI.BuildTime)
	t.AddRow("go", v.CLI.GoVersion)
	if v.Agent != nil {
		t.AddRow("agent", v.Agent.Version)
		t.AddRow("agent_status", v.Agent.Status)
	}
	return t
}

func versionAction(c *cli.Context) error {
	info := versionInfo{CLI: buildinfo.Get()}
	if c.Bool("remote") {
		var health healthStatus
		if err := getJSON(c, "/health", &health); err != nil {
			return err
		}
		info.Agent = &health
	}
	return render(c, info)
}
