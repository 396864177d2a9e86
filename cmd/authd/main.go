// Command authd runs the authentication daemon: a JSON API over the
// authcore service, backed by Postgres for identities and Redis for
// sessions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lifeflow/authcore"
	"github.com/lifeflow/authcore/pgstore"
	"github.com/lifeflow/authcore/session"
	"github.com/lifeflow/authcore/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("authd exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var identities authcore.IdentityStore
	if cfg.DatabaseURL != "" {
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store, err := pgstore.New(pool)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		identities = store
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory identity store")
		identities = newMemoryIdentityStore()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	sessions := session.NewStore(rdb, cfg.SessionPrefix)

	issuer, err := token.NewIssuer(token.Config{
		SigningKey:      []byte(cfg.JWTSigningKey),
		Issuer:          cfg.JWTIssuer,
		AccessTTL:       cfg.AccessTTL(),
		RefreshTTLShort: cfg.RefreshTTLShort(),
		RefreshTTLLong:  cfg.RefreshTTLLong(),
	})
	if err != nil {
		return err
	}

	mailer := &logEmailSender{logger: logger.With("component", "mailer")}

	serviceCfg := authcore.Config{
		SessionTTL:  cfg.SessionTTLDuration(),
		DefaultRole: cfg.DefaultRole,
		Logger:      logger,
		Metrics:     authcore.MetricsConfig{Enabled: cfg.MetricsEnabled},
	}
	if cfg.AuditEnabled {
		serviceCfg.Audit = authcore.AuditConfig{
			Enabled:    true,
			BufferSize: cfg.AuditBufferSize,
			DropIfFull: true,
		}
		serviceCfg.AuditSink = authcore.NewJSONWriterSink(os.Stdout)
	}

	service, err := authcore.New(identities, issuer, sessions, newMemoryOTPService(mailer), mailer, serviceCfg)
	if err != nil {
		return err
	}
	defer service.Close()

	go sweepLoop(ctx, logger, sessions, cfg.SweepIntervalDuration())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newAPIServer(service, logger).handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd listening", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("authd stopped")
	return nil
}

// sweepLoop purges expired session records on a fixed interval. Sessions
// are never expired on read, so this is the only physical cleanup.
func sweepLoop(ctx context.Context, logger *slog.Logger, sessions *session.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.SweepExpired(ctx)
			if err != nil {
				logger.Error("session sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				logger.Info("session sweep completed", "removed", removed)
			}
		}
	}
}
