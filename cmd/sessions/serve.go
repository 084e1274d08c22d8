package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/example/collab-sessions/internal/application"
	"github.com/example/collab-sessions/internal/identity"
	httptransport "github.com/example/collab-sessions/internal/http"
	redisindex "github.com/example/collab-sessions/internal/persistence/redis"
	"github.com/example/collab-sessions/internal/persistence/sqlite"
	"github.com/example/collab-sessions/internal/telemetry"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session scheduling HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, a.cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	storage, err := a.openStorage(ctx)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	defer a.closeStorage(storage)

	var index application.ReminderIndex
	if a.cfg.RedisEnabled() {
		client := goredis.NewClient(&goredis.Options{Addr: a.cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			// Reminders still land in SQLite; the index only feeds delivery.
			logger.Warn("redis unreachable, reminder index disabled", "addr", a.cfg.RedisAddr, "error", err)
		} else {
			published, err := redisindex.New(redisindex.Config{Client: client, KeyPrefix: a.cfg.RedisPrefix})
			if err != nil {
				return err
			}
			index = newReminderIndexAdapter(published)
			logger.Info("reminder index enabled", "addr", a.cfg.RedisAddr, "prefix", a.cfg.RedisPrefix)
		}
	}

	verifier, err := identity.NewVerifier(a.identityConfig())
	if err != nil {
		return err
	}

	sessions := a.newSessionService(storage, index, time.Now)
	server := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           newAPIHandler(sessions, verifier, storage, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("sessions API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	<-shutdownDone
	logger.Info("sessions API stopped")
	return nil
}

func (a *app) newSessionService(storage *sqlite.Storage, index application.ReminderIndex, now func() time.Time) *application.SessionService {
	reminders := application.NewReminderService(
		newReminderRepositoryAdapter(storage.Reminders),
		index,
		nil,
		a.idGenerator,
		now,
		a.logger,
	)
	return application.NewSessionService(
		newSessionRepositoryAdapter(storage.Sessions),
		application.NewCollaborationAuthorizer(storage.Grants, a.logger),
		reminders,
		application.SessionPolicy{
			AllowHostConfirm: a.cfg.AllowHostConfirm,
			DefaultListLimit: a.cfg.UpcomingLimit,
		},
		a.idGenerator,
		now,
		a.logger,
	)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newAPIHandler assembles routing and middleware. /healthz skips authentication.
func newAPIHandler(sessions *application.SessionService, verifier httptransport.IdentityVerifier, db pinger, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Sessions: httptransport.NewSessionHandler(sessions, logger),
		Health:   healthHandler(db),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.TraceRequests(),
			httptransport.RequestLogger(logger),
			httptransport.RequireIdentity(verifier, logger),
		},
	})
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
