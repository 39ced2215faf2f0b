package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/observability"
)

// metadataAuthorization is the gRPC metadata key for the bearer credential.
const metadataAuthorization = "authorization"

// InterceptorConfig holds configuration for the gRPC client interceptors.
type InterceptorConfig struct {
	Store   credential.Store
	Renewer Renewer
	Logger  *slog.Logger
}

// UnaryClientInterceptor applies the authenticated request pipeline to unary
// calls: the access credential is attached as authorization metadata, and a
// codes.Unauthenticated reply triggers one renewal and one replay. Renewal
// failure or a second Unauthenticated clears the store and returns an error
// matching domain.ErrUnauthorized.
func UnaryClientInterceptor(cfg InterceptorConfig) grpc.UnaryClientInterceptor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		access := cfg.Store.Access(ctx)

		err := invoker(withBearer(ctx, access), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		pair, rerr := cfg.Renewer.Renew(ctx, access)
		if rerr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(rerr, ctxErr) {
				return rerr
			}
			return terminateRPC(ctx, cfg.Store, logger, method, "renewal_failed",
				fmt.Errorf("%w: %w", domain.ErrUnauthorized, rerr))
		}
		retriesTotal.Add(ctx, 1)

		err = invoker(withBearer(ctx, pair.Access), method, req, reply, cc, opts...)
		if status.Code(err) == codes.Unauthenticated {
			return terminateRPC(ctx, cfg.Store, logger, method, "rejected_after_renewal",
				fmt.Errorf("%w: %w", domain.ErrUnauthorized, err))
		}
		return err
	}
}

// StreamClientInterceptor attaches the access credential to streaming calls.
// Streams are not replayed.
func StreamClientInterceptor(cfg InterceptorConfig) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string,
		streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(withBearer(ctx, cfg.Store.Access(ctx)), desc, cc, method, opts...)
	}
}

func withBearer(ctx context.Context, access string) context.Context {
	if access == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, metadataAuthorization, "Bearer "+access)
}

func terminateRPC(ctx context.Context, store credential.Store, logger *slog.Logger, method, reason string, err error) error {
	if clearErr := store.Clear(ctx); clearErr != nil {
		logger.ErrorContext(ctx, "failed to clear credentials after terminal auth failure",
			"method", method, "error", clearErr)
	}
	terminalFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	observability.WithTraceID(ctx, logger).WarnContext(ctx, "transport.auth_terminal",
		"method", method, "reason", reason, "error", err)
	return err
}
