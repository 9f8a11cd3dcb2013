package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	clicfg "github.com/yndnr/walletauth/internal/cli/config"
)

// fakeAgent serves the agent's envelope format from canned handlers.
type fakeAgent struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []string
}

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	a := &fakeAgent{handlers: make(map[string]http.HandlerFunc)}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		a.mu.Lock()
		a.requests = append(a.requests, key+"?"+r.URL.RawQuery)
		h := a.handlers[key]
		a.mu.Unlock()
		if h == nil {
			writeError(w, http.StatusNotFound, "WA-API-4040", "not found")
			return
		}
		h(w, r)
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *fakeAgent) handle(pattern string, h http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[pattern] = h
}

func (a *fakeAgent) reply(pattern string, status int, data any) {
	a.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, status, data)
	})
}

func (a *fakeAgent) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": "OK", "message": "Success", "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

// run executes the CLI against agent and returns stdout and stderr.
func run(t *testing.T, agent *fakeAgent, args ...string) (string, string, error) {
	t.Helper()
	return runWithInput(t, agent, "", args...)
}

// runWithInput is run with stdin. The CLI configuration file is isolated
// per test unless the test already pointed it somewhere.
func runWithInput(t *testing.T, agent *fakeAgent, input string, args ...string) (string, string, error) {
	t.Helper()
	if testConfigPath == "" {
		t.Setenv(clicfg.EnvConfigPath, filepath.Join(t.TempDir(), "cli.yaml"))
	}

	var out, errOut bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = &errOut

	full := []string{"walletauth-cli"}
	if agent != nil {
		full = append(full, "--agent", agent.URL)
	}
	err := app.Run(append(full, args...))
	return out.String(), errOut.String(), err
}

// testConfigPath is set by tests that manage the CLI configuration file.
var testConfigPath string

func useConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.yaml")
	testConfigPath = path
	t.Setenv(clicfg.EnvConfigPath, path)
	t.Cleanup(func() { testConfigPath = "" })
	return path
}
