// Package auth delegates request authentication to an external identity
// service and tags authenticated requests with the owner's id.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	applog "expense-svc/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// ValidatePath is appended to the identity service base URL.
	ValidatePath = "/auth/validate"

	DefaultTimeout = 3 * time.Second

	maxVerdictBytes = 64 << 10
)

// Authenticator decides whether a pair of credential tokens is valid.
// Any failure to reach a decision is a denial.
type Authenticator interface {
	Verify(ctx context.Context, identity, secret string) bool
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, identity, secret string) bool

func (f AuthenticatorFunc) Verify(ctx context.Context, identity, secret string) bool {
	return f(ctx, identity, secret)
}

type validateRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type validateResponse struct {
	Valid *bool `json:"valid"`
}

// HTTPAuthenticator asks the identity service whether the tokens are valid.
// One call per Verify, no retries.
type HTTPAuthenticator struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *applog.Logger
}

type Option func(*HTTPAuthenticator)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *HTTPAuthenticator) { a.client = c }
}

func WithLogger(l *applog.Logger) Option {
	return func(a *HTTPAuthenticator) { a.logger = l.WithComponent(applog.ComponentAuth) }
}

// NewHTTPAuthenticator creates an authenticator for the identity service at baseURL.
// A non-positive timeout falls back to DefaultTimeout.
func NewHTTPAuthenticator(baseURL string, timeout time.Duration, opts ...Option) *HTTPAuthenticator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &HTTPAuthenticator{
		endpoint: strings.TrimRight(baseURL, "/") + ValidatePath,
		client:   &http.Client{},
		timeout:  timeout,
		logger:   applog.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Endpoint returns the full validation URL.
func (a *HTTPAuthenticator) Endpoint() string {
	return a.endpoint
}

// Verify returns true only when the service answers 200 with {"valid": true}.
func (a *HTTPAuthenticator) Verify(ctx context.Context, identity, secret string) bool {
	valid, err := a.verify(ctx, identity, secret)
	if err != nil {
		a.logger.WarnContext(ctx, "Identity service check failed, denying",
			applog.FieldUserID, identity,
			applog.FieldOperation, applog.OpVerify,
			applog.FieldError, err.Error())
		return false
	}
	if !valid {
		a.logger.InfoContext(ctx, "Identity service denied credentials", applog.FieldUserID, identity)
	}
	return valid
}

func (a *HTTPAuthenticator) verify(ctx context.Context, identity, secret string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := json.Marshal(validateRequest{UserID: identity, Token: secret})
	if err != nil {
		return false, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("call identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxVerdictBytes))
		return false, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var verdict validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxVerdictBytes)).Decode(&verdict); err != nil {
		return false, fmt.Errorf("decode verdict: %w", err)
	}
	if verdict.Valid == nil {
		return false, fmt.Errorf("verdict has no valid field")
	}
	return *verdict.Valid, nil
}
