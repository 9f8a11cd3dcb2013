package command

import (
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
)

const cliAddr = "0x00000000000000000000000000000000000000aa"

func authenticatedView() domain.Session {
	w := domain.Connected(cliAddr, 1)
	email := "a@example.com"
	return domain.Session{
		State:   domain.StateAuthenticated,
		Wallet:  w,
		Token:   &domain.SessionToken{Value: "eyJhbG...Xk9Q", IssuedFor: w.Address},
		User:    &domain.UserRecord{ID: 42, WalletAddress: w.Address, Email: &email},
		Version: 3,
	}
}

func TestSessionStatus_Table(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("GET /v1/session", http.StatusOK, authenticatedView())

	out, _, err := run(t, agent, "session", "status")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"FIELD", "authenticated", cliAddr + " (chain 1)", "42", "a@example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "version") {
		t.Error("narrow output should not include the version row")
	}
}

func TestSessionStatus_WideAndReveal(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("GET /v1/session", http.StatusOK, authenticatedView())

	out, _, err := run(t, agent, "--wide", "session", "status", "--reveal")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "version") {
		t.Errorf("wide output = %s", out)
	}
	seen := agent.seen()
	if len(seen) != 1 || seen[0] != "GET /v1/session?reveal=true" {
		t.Errorf("requests = %v", seen)
	}
}

func TestSessionStatus_YAML(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("GET /v1/session", http.StatusOK, authenticatedView())

	out, _, err := run(t, agent, "-o", "yaml", "session", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "state: authenticated\n") || !strings.Contains(out, "issued_for:") || !strings.Contains(out, cliAddr) {
		t.Errorf("yaml output = %s", out)
	}
}

func TestSessionLogout(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("POST /v1/session/logout", http.StatusOK, domain.Session{State: domain.StateUnauthenticated})

	out, _, err := run(t, agent, "session", "logout")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Logged out." {
		t.Errorf("output = %q", out)
	}

	out, _, err = run(t, agent, "-o", "json", "session", "logout")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"state": "unauthenticated"`) || strings.Contains(out, "Logged out") {
		t.Errorf("json output = %s", out)
	}
}

func TestSessionRetry_AgentError(t *testing.T) {
	agent := newFakeAgent(t)
	agent.handle("POST /v1/session/retry", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "WA-CONN-5030", "wallet connector unavailable: no wallet connected")
	})

	_, _, err := run(t, agent, "session", "retry")
	if err == nil || !strings.Contains(err.Error(), "WA-CONN-5030") {
		t.Errorf("error = %v", err)
	}
}

func TestSessionRetry_Wait(t *testing.T) {
	old := pollInterval
	pollInterval = 5 * time.Millisecond
	t.Cleanup(func() { pollInterval = old })

	agent := newFakeAgent(t)
	pending := domain.Session{State: domain.StateAuthenticating, Phase: domain.PhaseLogin, Wallet: domain.Connected(cliAddr, 1)}
	agent.reply("POST /v1/session/retry", http.StatusAccepted, pending)

	var polls atomic.Int32
	agent.handle("GET /v1/session", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			writeData(w, http.StatusOK, pending)
			return
		}
		writeData(w, http.StatusOK, authenticatedView())
	})

	out, errOut, err := run(t, agent, "session", "retry", "--wait")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if polls.Load() < 3 {
		t.Errorf("polls = %d", polls.Load())
	}
	if !strings.Contains(errOut, "Authenticated as "+cliAddr) {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(out, "authenticated") {
		t.Errorf("stdout = %q", out)
	}
}

func TestSessionRetry_WaitTimeout(t *testing.T) {
	old := pollInterval
	pollInterval = 5 * time.Millisecond
	t.Cleanup(func() { pollInterval = old })

	agent := newFakeAgent(t)
	pending := domain.Session{State: domain.StateAuthenticating, Phase: domain.PhaseLogin}
	agent.reply("POST /v1/session/retry", http.StatusAccepted, pending)
	agent.reply("GET /v1/session", http.StatusOK, pending)

	_, _, err := run(t, agent, "session", "retry", "--wait", "--wait-timeout", "30ms")
	if err == nil || !strings.Contains(err.Error(), "still in progress") {
		t.Errorf("error = %v", err)
	}
}

func TestSessionProfile(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("POST /v1/session/profile", http.StatusOK, authenticatedView().User)

	out, _, err := run(t, agent, "session", "profile")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a@example.com") || !strings.Contains(out, "42") {
		t.Errorf("output = %s", out)
	}
}

func TestSessionProfile_NotAuthenticated(t *testing.T) {
	agent := newFakeAgent(t)
	agent.handle("POST /v1/session/profile", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "WA-SESS-4090", "session is not authenticated")
	})

	_, _, err := run(t, agent, "session", "profile")
	if err == nil || !strings.Contains(err.Error(), "not authenticated") {
		t.Errorf("error = %v", err)
	}
}

func TestSessionClearError(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("POST /v1/session/clear-error", http.StatusOK, domain.Session{State: domain.StateUnauthenticated})

	out, _, err := run(t, agent, "session", "clear-error")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "unauthenticated") {
		t.Errorf("output = %s", out)
	}
}
