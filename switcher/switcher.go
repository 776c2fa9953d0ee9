package switcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/truefoundry/idlefleet/pkg/backend"
	"github.com/truefoundry/idlefleet/pkg/config"
	"github.com/truefoundry/idlefleet/pkg/logger"
	"github.com/truefoundry/idlefleet/switcher/internal/server"
	"go.uber.org/zap"
)

// Main runs the switcher server until SIGINT or SIGTERM
func Main() {
	if err := mainWithError(); err != nil {
		fmt.Fprintf(os.Stderr, "switcher: %v\n", err)
		os.Exit(1)
	}
}

func mainWithError() error {
	env, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if env.SentryEnabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              env.SentryDsn,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			Environment:      env.SentryEnvironment,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "sentry initialization failed: %v\n", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	zapLogger, err := logger.NewLogger(env.Env, env.SentryEnabled())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller, err := backend.NewController(ctx, zapLogger, env)
	if err != nil {
		zapLogger.Error("Failed to build capacity controller", zap.Error(err))
		return err
	}

	zapLogger.Info("Switcher configured",
		zap.String("backend", env.ServiceBackend),
		zap.String("group", env.AsgName),
		zap.String("updateOrder", env.UpdateOrder),
		zap.Duration("requestTimeout", env.Timeout()))

	return server.NewServer(zapLogger, controller, env.Timeout()).Start(ctx, env.Port)
}
