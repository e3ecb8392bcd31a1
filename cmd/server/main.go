package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"trailhead/internal/catalog"
	"trailhead/internal/guard"
	guardmetrics "trailhead/internal/guard/metrics"
	authclient "trailhead/internal/identity/client"
	"trailhead/internal/identity/credential"
	"trailhead/internal/identity/session"
	sessionmetrics "trailhead/internal/identity/session/metrics"
	permcache "trailhead/internal/permission/cache"
	permclient "trailhead/internal/permission/client"
	permmetrics "trailhead/internal/permission/metrics"
	"trailhead/internal/platform/config"
	"trailhead/internal/platform/httpserver"
	"trailhead/internal/platform/logger"
	httptransport "trailhead/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Authorization logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	log.Info("initializing trailhead gateway",
		"addr", cfg.Addr,
		"api_base_url", cfg.APIBaseURL,
	)

	verdicts := permcache.New()

	authAPI := authclient.New(cfg.APIBaseURL, cfg.RequestTimeout)
	sess := session.New(authAPI, credential.NewFileStore(cfg.CredentialFile),
		session.WithLogger(log),
		session.WithMetrics(sessionmetrics.New()),
		session.WithInvalidator(verdicts),
	)

	perms := permclient.New(cfg.APIBaseURL, sess, verdicts, cfg.RequestTimeout,
		permclient.WithLogger(log),
		permclient.WithMetrics(permmetrics.New()),
	)

	evaluator := guard.New(sess, perms,
		guard.WithLogger(log),
		guard.WithMetrics(guardmetrics.New()),
	)
	guards := guard.NewMiddleware(evaluator, sess)

	cat := catalog.New(cfg.APIBaseURL, sess, cfg.RequestTimeout)

	handler := httptransport.NewHandler(sess, cat, perms, log)
	router := httptransport.NewRouter(handler, guards, log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
