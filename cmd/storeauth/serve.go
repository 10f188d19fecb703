package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/metrics"
	"github.com/invencare/go-auth/provider/cognito"
	"github.com/invencare/go-auth/store/redisstore"
	"github.com/invencare/go-auth/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard session API",
		Long: `Serve the session endpoints used by the dashboard frontend. Each browser
session gets its own session manager, its tokens kept in Redis.

Examples:
  storeauth serve --config storeauth.yaml
  STOREAUTH_REDIS_URL=redis://localhost:6379/0 storeauth serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	store, err := redisstore.New(ctx, a.cfg.RedisStoreConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer store.Close()

	provider, err := cognito.NewIdentityProvider(ctx, a.cfg.CognitoProviderConfig(),
		cognito.WithLogger(namedLogger(a.logger, "cognito")),
	)
	if err != nil {
		return fmt.Errorf("failed to create identity provider: %w", err)
	}
	defer provider.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(promRegistry)

	sink := auth.MultiActivitySink{m, auditSink(a.logger)}
	sessionLogger := namedLogger(a.logger, "session")

	registry := auth.NewRegistry(func(sessionID string) *auth.SessionManager {
		credentials := store.ForSession(sessionID)
		opts := []auth.ManagerOption{
			auth.WithLogger(sessionLogger),
			auth.WithCredentialStore(credentials),
			auth.WithLegacyFlagPurger(credentials),
			auth.WithActivitySink(sink),
		}
		if a.cfg.Server.RejectInFlight {
			opts = append(opts, auth.WithRejectConcurrent())
		}
		return auth.NewSessionManager(provider, opts...)
	}, a.cfg.Server.RegistrySize, a.cfg.Server.RegistryTTL, auth.WithRegistryLogger(namedLogger(a.logger, "registry")))

	srv := newHTTPServer(a, registry, store)

	metricsSrv := &http.Server{
		Addr:              a.cfg.Server.MetricsAddr,
		Handler:           metrics.Handler(promRegistry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("metrics server stopped")
		}
	}()

	go reportActiveSessions(ctx, registry, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(a.cfg.Server.Addr)
	}()
	a.logger.Infof("serving on %s, metrics on %s", a.cfg.Server.Addr, a.cfg.Server.MetricsAddr)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-ctx.Done()
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("metrics server shutdown")
	}
	return srv.Shutdown(shutdownCtx)
}

func newHTTPServer(a *app, registry *auth.Registry, store *redisstore.Store) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: true,
		}))
	})

	ctrl := web.NewController(registry, a.cfg.Web,
		web.WithControllerLogger(namedLogger(a.logger, "controller")),
	)
	guard := web.NewGuard(registry, a.cfg.Web)
	guard.Logger = namedLogger(a.logger, "guard")

	r := srv.Router()
	web.RegisterRoutes(r, ctrl)

	r.Get("/healthz", func(ctx router.Context) error {
		if err := store.Ping(ctx.Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/login", sessionPage, guard.GuestOnly())
	r.Get("/dashboard", sessionPage, guard.Protected())
	r.Get("/inventory", sessionPage, guard.Protected(auth.RoleEmployee))
	r.Get("/admin", sessionPage, guard.Protected(auth.RoleAdmin))

	return srv
}

// sessionPage answers with the session the guard let through; the frontend
// renders the page itself.
func sessionPage(ctx router.Context) error {
	snap, ok := web.SnapshotFrom(ctx)
	if !ok {
		return ctx.JSON(http.StatusOK, web.SessionView{Status: auth.StatusUnauthenticated})
	}
	return ctx.JSON(http.StatusOK, web.NewSessionView(snap))
}

func reportActiveSessions(ctx context.Context, registry *auth.Registry, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetActiveSessions(registry.Len())
		}
	}
}
