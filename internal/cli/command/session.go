package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/walletauth/internal/cli/output"
	"github.com/yndnr/walletauth/internal/core/domain"
)

// pollInterval is how often retry --wait re-reads the session.
var pollInterval = 250 * time.Millisecond

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Inspect and control the wallet session",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "Show the raw token (the agent must allow it)",
					},
				},
				Action: sessionStatus,
			},
			{
				Name:   "logout",
				Usage:  "Discard the session token",
				Action: sessionLogout,
			},
			{
				Name:  "retry",
				Usage: "Start a new login for the connected wallet",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait until the login finishes",
					},
					&cli.DurationFlag{
						Name:  "wait-timeout",
						Usage: "Give up waiting after this long",
						Value: 2 * time.Minute,
					},
				},
				Action: sessionRetry,
			},
			{
				Name:   "clear-error",
				Usage:  "Acknowledge a failed login",
				Action: sessionClearError,
			},
			{
				Name:   "profile",
				Usage:  "Refresh and show the user profile",
				Action: sessionProfile,
			},
		},
	}
}

func sessionStatus(c *cli.Context) error {
	path := "/v1/session"
	if c.Bool("reveal") {
		path += "?reveal=true"
	}
	var view domain.Session
	if err := getJSON(c, path, &view); err != nil {
		return err
	}
	return render(c, sessionView{view})
}

func sessionLogout(c *cli.Context) error {
	var view domain.Session
	if err := postJSON(c, "/v1/session/logout", &view); err != nil {
		return err
	}
	printf(c, "Logged out.\n")
	if tableOutput(c) {
		return nil
	}
	return render(c, sessionView{view})
}

func sessionRetry(c *cli.Context) error {
	var view domain.Session
	if err := postJSON(c, "/v1/session/retry", &view); err != nil {
		return err
	}
	if !c.Bool("wait") || view.State != domain.StateAuthenticating {
		return render(c, sessionView{view})
	}

	spinner := output.NewSpinner(stderr(c), "Waiting for the wallet signature")
	spinner.Start()
	final, err := waitForSettled(c, c.Duration("wait-timeout"))
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	switch final.State {
	case domain.StateAuthenticated:
		spinner.Success("Authenticated as " + string(final.Wallet.Address))
	case domain.StateError:
		spinner.Fail("Login failed")
	default:
		spinner.Stop()
	}
	return render(c, sessionView{final})
}

// waitForSettled polls the session until it leaves Authenticating.
func waitForSettled(c *cli.Context, limit time.Duration) (domain.Session, error) {
	ctx, cancel := context.WithTimeout(c.Context, limit)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var view domain.Session
		if err := getJSON(c, "/v1/session", &view); err != nil {
			return domain.Session{}, err
		}
		if view.State != domain.StateAuthenticating {
			return view, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.Session{}, fmt.Errorf("login still in progress after %s", limit)
			}
			return domain.Session{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sessionClearError(c *cli.Context) error {
	var view domain.Session
	if err := postJSON(c, "/v1/session/clear-error", &view); err != nil {
		return err
	}
	return render(c, sessionView{view})
}

func sessionProfile(c *cli.Context) error {
	var user domain.UserRecord
	if err := postJSON(c, "/v1/session/profile", &user); err != nil {
		return err
	}
	return render(c, userView{user})
}
