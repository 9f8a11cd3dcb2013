package command

import (
	"github.com/urfave/cli/v2"
)

// WalletCommand returns the wallet subcommand group.
func WalletCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Inspect the connected wallet",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the wallet the agent observes",
				Action: walletStatusAction,
			},
		},
	}
}

// ConnectorCommand returns the connector subcommand group.
func ConnectorCommand() *cli.Command {
	return &cli.Command{
		Name:  "connector",
		Usage: "Control the wallet connector",
		Subcommands: []*cli.Command{
			{
				Name:   "retry",
				Usage:  "Retry a failed connector initialization",
				Action: connectorRetry,
			},
		},
	}
}

func walletStatusAction(c *cli.Context) error {
	var status walletStatus
	if err := getJSON(c, "/v1/wallet", &status); err != nil {
		return err
	}
	return render(c, status)
}

func connectorRetry(c *cli.Context) error {
	var result struct {
		Connector string `json:"connector"`
	}
	if err := postJSON(c, "/v1/connector/retry", &result); err != nil {
		return err
	}
	printf(c, "Connector %s.\n", result.Connector)
	if tableOutput(c) {
		return nil
	}
	return render(c, result)
}
