// Package transport attaches the stored access credential to outbound calls
// and recovers from an authorization failure by renewing the credential and
// replaying the call once.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/observability"
)

var tracer = otel.Tracer("transport")

var (
	retriesTotal          metric.Int64Counter
	terminalFailuresTotal metric.Int64Counter
)

func init() {
	m := otel.Meter("transport")

	retriesTotal, _ = m.Int64Counter("auth_request_retries_total",
		metric.WithDescription("Total requests replayed after a credential renewal"))
	terminalFailuresTotal, _ = m.Int64Counter("auth_terminal_failures_total",
		metric.WithDescription("Total requests that ended in a terminal authorization failure"))
}

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// Renewer obtains a fresh credential pair after an authorization failure.
// staleAccess is the access token the failed attempt carried.
// *refresh.Coordinator satisfies it.
type Renewer interface {
	Renew(ctx context.Context, staleAccess string) (credential.Pair, error)
}

// attemptState is the per-request position in the retry state machine:
// unsent → sent → (done | authFailed → resent → (done | terminal)).
type attemptState int

const (
	stateUnsent attemptState = iota
	stateSent
	stateAuthFailed
	stateResent
	stateTerminal
)

func (s attemptState) String() string {
	switch s {
	case stateUnsent:
		return "unsent"
	case stateSent:
		return "sent"
	case stateAuthFailed:
		return "auth_failed"
	case stateResent:
		return "resent"
	case stateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// attempt tracks one logical request through the state machine. It lives
// for one RoundTrip call; the caller's *http.Request is never marked.
type attempt struct {
	state     attemptState
	requestID string
	access    string // credential carried by the latest send
}

// retried reports whether the one allowed replay has been spent.
func (a *attempt) retried() bool {
	return a.state == stateResent
}

// Transport is an http.RoundTripper implementing the authenticated request
// pipeline.
type Transport struct {
	base    http.RoundTripper
	store   credential.Store
	renewer Renewer
	logger  *slog.Logger
}

// TransportConfig holds configuration for creating a Transport.
type TransportConfig struct {
	Base    http.RoundTripper // nil uses http.DefaultTransport
	Store   credential.Store
	Renewer Renewer
	Logger  *slog.Logger
}

// NewTransport creates a new Transport.
func NewTransport(cfg TransportConfig) *Transport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		base:    base,
		store:   cfg.Store,
		renewer: cfg.Renewer,
		logger:  logger,
	}
}

// RoundTrip sends req with the current access credential. A 401 triggers one
// renewal and one replay; the replay's outcome is returned unless it is
// another 401. Renewal failure or a second 401 is terminal: the store is
// cleared and the returned error matches domain.ErrUnauthorized. Any other
// response or transport error passes through unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := tracer.Start(req.Context(), "transport.round_trip")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	)

	body, err := replayableBody(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a := &attempt{state: stateUnsent, requestID: req.Header.Get(HeaderRequestID)}
	if a.requestID == "" {
		a.requestID = uuid.NewString()
	}
	logger := observability.WithTraceID(ctx, t.logger).With(
		slog.String("request_id", a.requestID),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	for {
		switch a.state {
		case stateUnsent, stateResent:
			resp, err := t.send(ctx, req, body, a)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			if resp.StatusCode != http.StatusUnauthorized {
				span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
				return resp, nil
			}
			discard(resp)

			if a.retried() {
				a.state = stateTerminal
				return nil, t.fail(ctx, logger, span, "rejected_after_renewal",
					fmt.Errorf("%w: credential rejected after renewal", domain.ErrUnauthorized))
			}

			a.state = stateAuthFailed
			logger.DebugContext(ctx, "transport.auth_failed", "state", a.state.String(),
				"token_fp", observability.TokenFingerprint(a.access))

			pair, err := t.renewer.Renew(ctx, a.access)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					// The caller gave up; the session is still intact.
					return nil, err
				}
				a.state = stateTerminal
				return nil, t.fail(ctx, logger, span, "renewal_failed",
					fmt.Errorf("%w: %w", domain.ErrUnauthorized, err))
			}

			retriesTotal.Add(ctx, 1)
			a.access = pair.Access
			a.state = stateResent
			span.SetAttributes(attribute.Bool("auth.retried", true))
		default:
			return nil, fmt.Errorf("transport: unexpected attempt state %s", a.state)
		}
	}
}

// send issues one attempt. The first send reads the credential from the
// store; the replay uses the credential returned by the renewal.
func (t *Transport) send(ctx context.Context, req *http.Request, body *bodySource, a *attempt) (*http.Response, error) {
	if a.state == stateUnsent {
		a.access = t.store.Access(ctx)
		a.state = stateSent
	}

	out := req.Clone(ctx)
	out.Header.Set(HeaderRequestID, a.requestID)
	if a.access != "" {
		out.Header.Set("Authorization", "Bearer "+a.access)
	} else {
		out.Header.Del("Authorization")
	}

	rc, err := body.open()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	out.Body = rc

	return t.base.RoundTrip(out)
}

// fail records a terminal authorization failure. The store is cleared before
// the error is returned so callers never see a stale credential alongside it.
func (t *Transport) fail(ctx context.Context, logger *slog.Logger, span trace.Span, reason string, err error) error {
	if clearErr := t.store.Clear(ctx); clearErr != nil {
		logger.ErrorContext(ctx, "failed to clear credentials after terminal auth failure",
			"error", clearErr)
	}
	terminalFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	logger.WarnContext(ctx, "transport.auth_terminal", "reason", reason, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

// bodySource yields a fresh copy of the request body for each attempt.
type bodySource struct {
	getBody func() (io.ReadCloser, error)
	data    []byte
	empty   bool
}

func (b *bodySource) open() (io.ReadCloser, error) {
	switch {
	case b.empty:
		return http.NoBody, nil
	case b.getBody != nil:
		return b.getBody()
	default:
		return io.NopCloser(bytes.NewReader(b.data)), nil
	}
}

// replayableBody prepares req's body for up to two sends. Requests built
// with http.NewRequest over a bytes/strings reader already carry GetBody;
// anything else is buffered once. The original body is always closed.
func replayableBody(req *http.Request) (*bodySource, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return &bodySource{empty: true}, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return &bodySource{getBody: req.GetBody}, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return &bodySource{data: data}, nil
}

// discard drains and closes a response so its connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, domain.MaxErrorBodyBytes))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*Transport)(nil)
