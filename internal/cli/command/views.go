package command

import (
	"strconv"
	"time"

	"github.com/yndnr/walletauth/internal/cli/output"
	"github.com/yndnr/walletauth/internal/core/domain"
)

// sessionView is the table layout of a session.
type sessionView struct {
	domain.Session
}

func (v sessionView) Table(wide bool) *output.Table {
	t := output.NewKeyValueTable()
	t.AddRow("state", stateLabel(v.Session))
	t.AddRow("wallet", walletLabel(v.Wallet))
	if v.User != nil {
		t.AddRow("user", strconv.FormatInt(v.User.ID, 10))
		if v.User.Email != nil {
			t.AddRow("email", *v.User.Email)
		}
	}
	if v.Token != nil {
		t.AddRow("token", v.Token.Value)
	}
	if v.Error != nil {
		t.AddRow("error", string(v.Error.Kind)+": "+v.Error.Message)
	}
	if wide {
		t.AddRow("attempt", v.AttemptID)
		t.AddRow("version", strconv.FormatUint(v.Version, 10))
		t.AddRow("updated", formatTime(v.UpdatedAt))
		if v.User != nil {
			t.AddRow("user_created", formatTime(v.User.CreatedAt.Time))
		}
	}
	return t
}

func stateLabel(s domain.Session) string {
	if s.Phase != domain.PhaseNone {
		return s.State.String() + " (" + string(s.Phase) + ")"
	}
	return s.State.String()
}

func walletLabel(w domain.WalletSnapshot) string {
	if !w.Connected {
		return "disconnected"
	}
	label := string(w.Address)
	if w.ChainID != nil {
		label += " (chain " + strconv.FormatInt(*w.ChainID, 10) + ")"
	}
	return label
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// walletStatus mirrors the agent's GET /v1/wallet body.
type walletStatus struct {
	Wallet    domain.WalletSnapshot `json:"wallet"`
	Available bool                  `json:"available"`
	Connector string                `json:"connector"`
}

func (v walletStatus) Table(wide bool) *output.Table {
	t := &output.Table{Headers: []string{"WALLET", "CONNECTOR", "AVAILABLE"}}
	if wide {
		t.Headers = append(t.Headers, "CHAIN")
	}
	row := []string{walletAddressLabel(v.Wallet), v.Connector, strconv.FormatBool(v.Available)}
	if wide {
		chain := ""
		if v.Wallet.ChainID != nil {
			chain = strconv.FormatInt(*v.Wallet.ChainID, 10)
		}
		row = append(row, chain)
	}
	t.AddRow(row...)
	return t
}

func walletAddressLabel(w domain.WalletSnapshot) string {
	if !w.Connected {
		return "disconnected"
	}
	return string(w.Address)
}

// userView is the table layout of a profile.
type userView struct {
	domain.UserRecord
}

func (v userView) Table(bool) *output.Table {
	t := output.NewKeyValueTable()
	t.AddRow("id", strconv.FormatInt(v.ID, 10))
	t.AddRow("wallet", string(v.WalletAddress))
	email := ""
	if v.Email != nil {
		email = *v.Email
	}
	t.AddRow("email", email)
	t.AddRow("created", formatTime(v.CreatedAt.Time))
	t.AddRow("updated", formatTime(v.UpdatedAt.Time))
	return t
}

// healthStatus mirrors the agent's GET /health body.
type healthStatus struct {
	Status       string `json:"status"`
	Connector    string `json:"connector"`
	SessionState string `json:"session_state"`
	Version      string `json:"version"`
}
