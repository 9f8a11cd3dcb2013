package command

import (
	"strings"
	"testing"
)

func TestApp_Commands(t *testing.T) {
	app := App()
	if app.Name != "walletauth-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"session", "wallet", "connector", "message", "config", "shell", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"agent", "output", "wide", "timeout", "config"} {
		if !flags[want] {
			t.Errorf("missing flag %q", want)
		}
	}
}

func TestApp_RejectsUnknownOutput(t *testing.T) {
	_, _, err := run(t, nil, "-o", "xml", "version")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("error = %v", err)
	}
}

func TestApp_AgentFromEnv(t *testing.T) {
	agent := newFakeAgent(t)
	agent.reply("GET /health", 200, map[string]string{"status": "healthy", "version": "v9"})
	t.Setenv("WALLETAUTH_AGENT", agent.URL)

	out, _, err := run(t, nil, "version", "--remote")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out, "v9") {
		t.Errorf("output = %q", out)
	}
}

func TestVersion_Local(t *testing.T) {
	out, _, err := run(t, nil, "-o", "json", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"cli"`) || strings.Contains(out, `"agent"`) {
		t.Errorf("output = %s", out)
	}
}

func TestMessage(t *testing.T) {
	out, _, err := run(t, nil, "message", "--address", "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01", "--product", "Acme")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("message lines = %q", lines)
	}
	if lines[0] != "Welcome to Acme!" {
		t.Errorf("greeting = %q", lines[0])
	}
	if lines[3] != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("address line = %q", lines[3])
	}
	if !strings.HasPrefix(lines[5], "Timestamp: ") || !strings.HasSuffix(lines[5], "Z") {
		t.Errorf("timestamp line = %q", lines[5])
	}
}

func TestMessage_InvalidAddress(t *testing.T) {
	_, _, err := run(t, nil, "message", "--address", "0x123")
	if err == nil || !strings.Contains(err.Error(), "invalid wallet address") {
		t.Errorf("error = %v", err)
	}
}
