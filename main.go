// Package main, nexus voice-net koordinasyon servisinin giriş noktasıdır.
//
// Bu dosyanın görevi; Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Logger ve metrics registry'yi oluştur
//  3. Database'i başlat (gömülü migration'lar)
//  4. Repository'leri oluştur
//  5. WebSocket Hub'ı başlat
//  6. Service'leri oluştur, hub callback'lerini bağla
//  7. Replicator aboneliğini ve session sweep döngüsünü başlat
//  8. Handler'ları ve route'ları kur, CORS yapılandır
//  9. HTTP Server'ı başlat
//  10. Graceful shutdown
//
// Global değişken YOK; her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/akinalp/nexus/config"
	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/pkg/logger"
	"github.com/akinalp/nexus/pkg/metrics"
	"github.com/akinalp/nexus/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nexus: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─── 2. Logger + Metrics ───
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("nexus server starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("instance_id", cfg.Replicator.InstanceID),
		zap.String("replicator", cfg.Replicator.Transport),
	)

	m := metrics.New()
	clk := clock.New()

	// ─── 3. Database ───
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	db, err := database.New(cfg.Database.Path, migrations, log.Named("database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// ─── 4. Repository Layer ───
	repos := initRepositories(db.Conn)

	// ─── 5. WebSocket Hub ───
	hub := ws.NewHub(log.Named("ws"), m)
	go hub.Run()

	// ─── 6. Service Layer ───
	svcs, err := initServices(cfg, db.Conn, repos, hub, clk, log, m)
	if err != nil {
		return err
	}
	defer svcs.Net.Close()
	defer svcs.Limiter.Close()

	registerHubCallbacks(hub, svcs, cfg.Voice.TxRenewOnHeartbeat, log.Named("callbacks"))

	// ─── 7. Background ───
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs.Replicator.Start(ctx)
	defer svcs.Replicator.Close()

	go svcs.Registry.Run(ctx, cfg.Voice.SweepInterval, cfg.Voice.SessionTTL)

	// ─── 8. Handlers + Routes ───
	h := initHandlers(cfg, svcs, hub)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}
	handler := cors.New(corsOptions).Handler(mux)

	// ─── 9. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ─── 10. Graceful Shutdown ───
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutting down")

	// Önce WebSocket bağlantılarını kapat, sonra HTTP server'ı
	// (yeni request kabul etmeyi durdurur, mevcutları 5sn bekler).
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
