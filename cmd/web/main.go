package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entrytest/internal/app"
	"entrytest/internal/db"
)

func main() {
	cfg := app.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgCfg := db.DefaultPostgresConfig()
	pgCfg.MaxOpenConns = cfg.DBMaxOpenConns
	pgCfg.MaxIdleConns = cfg.DBMaxIdleConns
	pgCfg.ConnMaxLifetime = time.Duration(cfg.DBConnMaxLifeMins) * time.Minute

	dbConn, err := db.OpenPostgresWithConfig(ctx, cfg.DBDSN, pgCfg)
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		log.Printf("schema error: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, dbConn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("entrytest web listening on %s (env=%s enforce_duration=%t)", cfg.HTTPAddr, cfg.AppEnv, cfg.EnforceExamDuration)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
	log.Printf("entrytest web stopped")
}
