package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/thewijay/intima-chat/internal/stubserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting intima stub backend")

	if err := run(logger); err != nil {
		logger.Error("stub backend failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	addr := os.Getenv("INTIMA_STUB_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	opts := stubserver.Options{
		Tokens:        splitTokens(os.Getenv("INTIMA_STUB_TOKENS")),
		ExpiredTokens: splitTokens(os.Getenv("INTIMA_STUB_EXPIRED_TOKENS")),
	}
	if lag := os.Getenv("INTIMA_STUB_PERSIST_LAG"); lag != "" {
		d, err := time.ParseDuration(lag)
		if err != nil {
			return fmt.Errorf("parse INTIMA_STUB_PERSIST_LAG: %w", err)
		}
		opts.PersistLag = d
	}

	srv, err := stubserver.New(logger, opts)
	if err != nil {
		return fmt.Errorf("failed to init stub server: %w", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:    addr,
		Handler: c.Handler(srv.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting stub api server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("stub api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down stub api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
