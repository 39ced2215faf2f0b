// Package runner provides the shared CLI lifecycle. Every dashctl command
// delegates to Run for signal handling, config loading, observability init,
// credential store selection, client wiring and telemetry flush on exit.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyresume/dashclient/internal/apiclient"
	"github.com/pyresume/dashclient/internal/config"
	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/observability"
	"github.com/pyresume/dashclient/internal/refresh"
)

const serviceVersion = "0.1.0"

// Params configures one command invocation.
type Params struct {
	// Name identifies the command (e.g. "login", "overview").
	Name string

	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer

	// Command does the work once the session is wired.
	Command func(ctx context.Context, env *Env) error
}

// Env is everything a command needs, built from config.
type Env struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       credential.Store
	Coordinator *refresh.Coordinator
	Client      *apiclient.Client
	Clock       domain.Clock
	Out         io.Writer
}

// Run executes the full command lifecycle: signal handling, config loading,
// observability initialization, store and client wiring, the command itself,
// and telemetry flush. The command's error is returned unchanged.
func Run(ctx context.Context, p Params) (err error) {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.OTEL.ServiceName,
		Environment: cfg.Environment,
	}).With(slog.String("command", p.Name))

	providers, err := observability.InitOTEL(ctx, observability.OTELConfig{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	// Flush runs on a fresh context so a cancelled command still exports.
	defer func() {
		otelCtx, cancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer cancel()
		if shutdownErr := providers.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to flush telemetry", slog.String("error", shutdownErr.Error()))
		}
	}()

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Warn("failed to close credential store", slog.String("error", closeErr.Error()))
		}
	}()

	env, err := wire(cfg, logger, store)
	if err != nil {
		return err
	}
	env.Out = p.Out
	if env.Out == nil {
		env.Out = os.Stdout
	}

	logger.Debug("running command",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.Store.Backend),
		slog.String("api", cfg.API.BaseURL),
	)
	return p.Command(ctx, env)
}

// wire builds the renewal and request pipeline over store.
func wire(cfg *config.Config, logger *slog.Logger, store credential.Store) (*Env, error) {
	renewer, err := apiclient.NewHTTPRenewer(apiclient.HTTPRenewerConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.Refresh.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create renewer: %w", err)
	}

	coord := refresh.NewCoordinator(refresh.CoordinatorConfig{
		Store:   store,
		Renewer: renewer,
		Timeout: cfg.Refresh.Timeout,
		Logger:  logger,
	})

	client, err := apiclient.NewClient(apiclient.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Store:   store,
		Renewer: coord,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	return &Env{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Coordinator: coord,
		Client:      client,
		Clock:       domain.RealClock{},
	}, nil
}
