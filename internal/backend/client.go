package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/internal/infra/buildinfo"
	"github.com/yndnr/walletauth/internal/infra/tlsroots"
)

const (
	pathLogin   = "/api/auth/login"
	pathVerify  = "/api/auth/verify"
	pathProfile = "/api/auth/profile"

	// maxBodySize caps backend responses.
	maxBodySize = 1 << 20
)

// Recorder receives request latency. *metric.Registry implements it.
type Recorder interface {
	ObserveBackend(op, outcome string, d time.Duration)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL string

	// TLSCAFile is an optional PEM bundle trusted in addition to the system roots.
	TLSCAFile string

	// UserAgent overrides the default walletauth-agent/<version>.
	UserAgent string
}

type verifyResponse struct {
	Valid *bool              `json:"valid"`
	User  *domain.UserRecord `json:"user"`
}

// Client talks to the auth backend.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRecorder records request latency.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a backend client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base url must be http or https, got %q", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend: base url has no host: %q", cfg.BaseURL)
	}

	tlsCfg, err := tlsroots.ClientConfig(cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	c := &Client{
		baseURL:   u.String(),
		client:    &http.Client{Transport: transport},
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
	if c.userAgent == "" {
		c.userAgent = buildinfo.UserAgent("walletauth-agent")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a signed challenge for a session token.
//
// A non-2xx answer is domain.ErrLoginRejected carrying the backend's detail.
func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	var out domain.LoginResponse
	status, body, err := c.do(ctx, "login", http.MethodPost, pathLogin, "", req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		detail := errorDetail(body)
		if detail == "" {
			detail = "Login failed"
		}
		return nil, domain.ErrLoginRejected.WithDetails(fmt.Sprintf("%d: %s", status, detail))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.ErrNetworkFailure.WithDetails("decode login response").WithCause(err)
	}
	if out.AccessToken == "" {
		return nil, domain.ErrNetworkFailure.WithDetails("login response has no access_token")
	}
	out.User = out.User.Normalize()
	return &out, nil
}

// Verify checks token. It returns the user record when the backend
// includes one.
func (c *Client) Verify(ctx context.Context, token string) (*domain.UserRecord, error) {
	status, body, err := c.do(ctx, "verify", http.MethodPost, pathVerify, token, nil)
	if err != nil {
		return nil, err
	}
	if err := sessionStatus(status, body, "Token verification failed"); err != nil {
		return nil, err
	}

	var out verifyResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, domain.ErrNetworkFailure.WithDetails("decode verify response").WithCause(err)
		}
		if out.Valid != nil && !*out.Valid {
			return nil, domain.ErrInvalidSession.WithDetails("backend reported token invalid")
		}
	}
	if out.User != nil {
		u := out.User.Normalize()
		return &u, nil
	}
	return nil, nil
}

// Profile fetches the user record for token.
func (c *Client) Profile(ctx context.Context, token string) (*domain.UserRecord, error) {
	status, body, err := c.do(ctx, "profile", http.MethodGet, pathProfile, token, nil)
	if err != nil {
		return nil, err
	}
	if err := sessionStatus(status, body, "Failed to fetch profile"); err != nil {
		return nil, err
	}

	var user domain.UserRecord
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, domain.ErrNetworkFailure.WithDetails("decode profile response").WithCause(err)
	}
	user = user.Normalize()
	return &user, nil
}

// do performs one request and returns the status and body. Only
// transport-level failures are returned as errors.
func (c *Client) do(ctx context.Context, op, method, path, token string, in any) (int, []byte, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveBackend(op, outcome, time.Since(start))
		}
	}()

	var bodyReader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, domain.ErrInternal.WithDetails("marshal " + op + " request").WithCause(err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, domain.ErrInternal.WithDetails("create " + op + " request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.logger.DebugContext(ctx, "backend request failed", "op", op, "error", err)
		return 0, nil, domain.ErrNetworkFailure.WithDetails(op).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, domain.ErrNetworkFailure.WithDetails("read " + op + " response").WithCause(err)
	}

	outcome = statusOutcome(resp.StatusCode)
	c.logger.DebugContext(ctx, "backend request",
		"op", op,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))
	return resp.StatusCode, body, nil
}

// sessionStatus maps a Bearer-authenticated answer to an error.
func sessionStatus(status int, body []byte, fallback string) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		detail := errorDetail(body)
		if detail == "" {
			detail = fallback
		}
		return domain.ErrInvalidSession.WithDetails(detail)
	default:
		return domain.ErrNetworkFailure.WithDetails(fmt.Sprintf("%s: status %d", fallback, status))
	}
}

func statusOutcome(status int) string {
	switch {
	case status >= 200 && status <= 299:
		return "ok"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "unauthorized"
	case status >= 500:
		return "server_error"
	default:
		return "rejected"
	}
}

// errorDetail extracts the "detail" field of an error body. Validation
// errors carry a list; the first message is used.
func errorDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return string(e.Detail)
}
