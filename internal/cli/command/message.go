package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/pkg/ethsig"
)

// MessageCommand renders a challenge message without contacting the agent.
func MessageCommand() *cli.Command {
	return &cli.Command{
		Name:  "message",
		Usage: "Print the challenge message a wallet would be asked to sign",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Wallet address (0x-prefixed, 40 hex digits)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "product",
				Usage: "Product name in the greeting",
				Value: domain.DefaultProductName,
			},
		},
		Action: messageAction,
	}
}

func messageAction(c *cli.Context) error {
	raw := c.String("address")
	if !ethsig.ValidAddress(raw) {
		return fmt.Errorf("invalid wallet address %q", raw)
	}
	addr := domain.NormalizeAddress(raw)

	msg, ts := domain.NewChallengeBuilder(c.String("product"), time.Now).Build(addr)

	if tableOutput(c) {
		_, err := fmt.Fprintln(stdout(c), msg)
		return err
	}
	return render(c, struct {
		Address   domain.WalletAddress `json:"address"`
		Timestamp time.Time            `json:"timestamp"`
		Message   string               `json:"message"`
	}{addr, ts, msg})
}
