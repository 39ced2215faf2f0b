package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/refresh"
)

// HTTPRenewer exchanges a refresh token for a new access token at the
// dashboard's token refresh endpoint. It uses its own client, so a renewal
// is never itself routed through the credential pipeline.
type HTTPRenewer struct {
	client *Client
}

// HTTPRenewerConfig holds configuration for creating an HTTPRenewer.
type HTTPRenewerConfig struct {
	BaseURL string
	Base    http.RoundTripper // nil uses http.DefaultTransport
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHTTPRenewer creates a new HTTPRenewer.
func NewHTTPRenewer(cfg HTTPRenewerConfig) (*HTTPRenewer, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.RefreshTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := cfg.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &HTTPRenewer{client: &Client{
		baseURL: base,
		bare:    &http.Client{Timeout: timeout, Transport: rt},
		logger:  logger,
	}}, nil
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Renew posts refreshToken and returns the issued access token, plus the
// rotated refresh token when the server sends one. Any non-2xx reply, or a
// reply without an access token, is an error.
func (r *HTTPRenewer) Renew(ctx context.Context, refreshToken string) (credential.Pair, error) {
	var resp refreshResponse
	err := r.client.do(ctx, r.client.bare, http.MethodPost, domain.PathTokenRefresh, nil,
		map[string]string{"refresh": refreshToken}, &resp)
	if err != nil {
		return credential.Pair{}, err
	}
	if resp.Access == "" {
		return credential.Pair{}, fmt.Errorf("%s: response carried no access token", domain.PathTokenRefresh)
	}
	return credential.Pair{Access: resp.Access, Refresh: resp.Refresh}, nil
}

var _ refresh.Renewer = (*HTTPRenewer)(nil)
