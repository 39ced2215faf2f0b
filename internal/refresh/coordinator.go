// Package refresh renews the access credential with at most one renewal
// call outstanding at a time.
//
// Every caller that asks for a renewal while one is in flight joins it and
// receives the same outcome. A failed renewal clears the credential store
// before any waiter is released, so no caller observes a stale credential
// next to a refresh failure.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/observability"
)

var tracer = otel.Tracer("refresh")

var (
	renewalsTotal     metric.Int64Counter
	renewalJoinsTotal metric.Int64Counter
)

func init() {
	m := otel.Meter("refresh")

	renewalsTotal, _ = m.Int64Counter("auth_renewals_total",
		metric.WithDescription("Total credential renewal attempts, by outcome"))
	renewalJoinsTotal, _ = m.Int64Counter("auth_renewal_joins_total",
		metric.WithDescription("Total callers that shared an in-flight renewal"))
}

// renewKey is the single singleflight key: one client session has one
// refresh credential, so all renewals collapse onto it.
const renewKey = "renew"

// Renewer performs the renewal network call. On success the returned Pair
// carries the new access token and, if the server rotated it, a new refresh
// token; Identity is ignored.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (credential.Pair, error)
}

// RenewerFunc adapts a function to Renewer.
type RenewerFunc func(ctx context.Context, refreshToken string) (credential.Pair, error)

// Renew calls f.
func (f RenewerFunc) Renew(ctx context.Context, refreshToken string) (credential.Pair, error) {
	return f(ctx, refreshToken)
}

// Coordinator serializes credential renewal for one Store.
type Coordinator struct {
	store   credential.Store
	renewer Renewer
	timeout time.Duration
	logger  *slog.Logger

	group   singleflight.Group
	waiting atomic.Int32 // callers attached to the in-flight renewal
}

// CoordinatorConfig holds configuration for creating a Coordinator.
type CoordinatorConfig struct {
	Store   credential.Store
	Renewer Renewer
	Timeout time.Duration // bound on the shared renewal call; 0 uses domain.RefreshTimeout
	Logger  *slog.Logger
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.RefreshTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   cfg.Store,
		renewer: cfg.Renewer,
		timeout: timeout,
		logger:  logger,
	}
}

// Renew returns a fresh credential pair, starting a renewal or joining the
// one in flight.
//
// staleAccess is the access token the caller's failed request carried. If
// the store already holds a different access token, a renewal completed
// after that request was sent and the stored pair is returned without a
// network call.
//
// If the session is ended or replaced while the call is in flight, the
// issued credential is discarded: the replacing pair is returned, or a
// domain.ErrRefreshFailed error when the store was cleared.
//
// Errors wrap domain.ErrRefreshFailed (domain.ErrNoRefreshToken when there
// was nothing to renew), in which case the store has been cleared. If ctx
// is cancelled while waiting, ctx.Err() is returned and the shared renewal
// carries on for the remaining waiters.
func (c *Coordinator) Renew(ctx context.Context, staleAccess string) (credential.Pair, error) {
	// The shared call must not die with whichever caller happened to start it.
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(renewKey, func() (any, error) {
		return c.renew(detached, staleAccess)
	})
	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case res := <-ch:
		if res.Shared {
			renewalJoinsTotal.Add(ctx, 1)
		}
		if res.Err != nil {
			return credential.Pair{}, res.Err
		}
		return res.Val.(credential.Pair), nil
	case <-ctx.Done():
		return credential.Pair{}, ctx.Err()
	}
}

// renew runs at most once per in-flight window.
func (c *Coordinator) renew(ctx context.Context, staleAccess string) (credential.Pair, error) {
	ctx, span := tracer.Start(ctx, "refresh.renew")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger := observability.WithTraceID(ctx, c.logger)

	current := credential.Snapshot(ctx, c.store)
	if current.Access != "" && current.Access != staleAccess {
		span.SetAttributes(attribute.Bool("refresh.already_current", true))
		renewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "already_current")))
		logger.DebugContext(ctx, "refresh.already_current",
			"token_fp", observability.TokenFingerprint(current.Access))
		return current, nil
	}

	if current.Refresh == "" {
		c.terminate(ctx, logger, "no_refresh_token")
		span.SetStatus(codes.Error, "no refresh token")
		return credential.Pair{}, domain.ErrNoRefreshToken
	}

	issued, err := c.renewer.Renew(ctx, current.Refresh)

	// Store work below must still happen when the call ran out of time.
	ctx = context.WithoutCancel(ctx)

	// Logout or a new login during the call owns the store now.
	if latest := credential.Snapshot(ctx, c.store); latest.Refresh != current.Refresh {
		return c.superseded(ctx, logger, span, latest)
	}

	if err == nil && issued.Access == "" {
		err = errors.New("renewal response carried no access token")
	}
	if err != nil {
		c.terminate(ctx, logger, "rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credential.Pair{}, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	// Refresh is written only when the server rotated it.
	update := credential.Pair{Access: issued.Access, Refresh: issued.Refresh}
	if err := c.store.Set(ctx, update); err != nil {
		c.terminate(ctx, logger, "store_write_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return credential.Pair{}, fmt.Errorf("%w: persist renewed credentials: %w", domain.ErrRefreshFailed, err)
	}

	renewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	logger.InfoContext(ctx, "refresh.renewed",
		"token_fp", observability.TokenFingerprint(issued.Access),
		"refresh_rotated", issued.Refresh != "",
	)

	return current.Merge(update), nil
}

// superseded settles a renewal whose session was replaced or ended while the
// call was in flight. The issued credential is discarded and the store is
// left as found.
func (c *Coordinator) superseded(ctx context.Context, logger *slog.Logger, span trace.Span, latest credential.Pair) (credential.Pair, error) {
	span.SetAttributes(attribute.Bool("refresh.superseded", true))

	if latest.Access != "" {
		renewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "superseded")))
		logger.InfoContext(ctx, "refresh.superseded",
			"token_fp", observability.TokenFingerprint(latest.Access))
		return latest, nil
	}

	renewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "session_ended")))
	logger.InfoContext(ctx, "refresh.session_ended")
	span.SetStatus(codes.Error, "session ended during renewal")
	return credential.Pair{}, fmt.Errorf("%w: session ended during renewal", domain.ErrRefreshFailed)
}

// terminate clears the session after a failed renewal.
func (c *Coordinator) terminate(ctx context.Context, logger *slog.Logger, reason string) {
	renewalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", reason)))

	if err := c.store.Clear(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to clear credentials after refresh failure",
			"reason", reason, "error", err)
	}
	logger.WarnContext(ctx, "refresh.failed", "reason", reason)
}
