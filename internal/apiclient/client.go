// Package apiclient is the dashboard API surface. Authenticated calls go
// through the credential pipeline in package transport; login, registration
// and renewal go through a bare client that never carries or renews a
// credential.
package apiclient

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

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/errmap"
	"github.com/pyresume/dashclient/internal/observability"
	"github.com/pyresume/dashclient/internal/transport"
)

// Client talks to the dashboard API on behalf of one stored session.
type Client struct {
	baseURL *url.URL
	authed  *http.Client
	bare    *http.Client
	store   credential.Store
	logger  *slog.Logger
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	BaseURL string
	Store   credential.Store
	Renewer transport.Renewer // normally a *refresh.Coordinator
	Base    http.RoundTripper // nil uses http.DefaultTransport
	Timeout time.Duration     // per-request bound; 0 uses domain.APIRequestTimeout
	Logger  *slog.Logger
}

// NewClient creates a new Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.APIRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := cfg.Base
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &Client{
		baseURL: base,
		authed: &http.Client{
			Timeout: timeout,
			Transport: transport.NewTransport(transport.TransportConfig{
				Base:    rt,
				Store:   cfg.Store,
				Renewer: cfg.Renewer,
				Logger:  logger,
			}),
		},
		bare:   &http.Client{Timeout: timeout, Transport: rt},
		store:  cfg.Store,
		logger: logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: api base url: %w", domain.ErrConfigInvalid, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api base url %q needs a scheme and host", domain.ErrConfigInvalid, raw)
	}
	return u, nil
}

// endpoint resolves an API path against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// GetJSON issues an authenticated GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, c.authed, http.MethodGet, path, query, nil, out)
}

// PostJSON issues an authenticated POST with in as the JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, c.authed, http.MethodPost, path, nil, in, out)
}

// PutJSON issues an authenticated PUT with in as the JSON body.
func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, c.authed, http.MethodPut, path, nil, in, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, c.authed, http.MethodDelete, path, nil, nil, nil)
}

// do sends one API call. out may be nil when the response body is ignored.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	observability.WithTraceID(ctx, c.logger).DebugContext(ctx, "api.response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	// The bare client submits credentials; its 401s never end the session.
	classify := errmap.FromHTTPStatus
	if hc == c.bare {
		classify = errmap.FromCredentialStatus
	}
	if err := decodeResponse(resp, out, classify); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}
