// main.go
//
// Entrypoint for the Clusters server.
// Responsibilities:
//   - Load configuration (.env + environment) and set the global log level.
//   - Open and migrate the SQLite database.
//   - Open the puzzle catalog (embedded pack or PUZZLES_DIR).
//   - Sweep idle sessions in the background.
//   - Serve HTTP until the process is stopped, then drain requests and
//     close live sessions.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/clusters/assets"
	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/config"
	"github.com/robalobadob/clusters/internal/db"
	"github.com/robalobadob/clusters/internal/httpserver"
	"github.com/robalobadob/clusters/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer conn.Close()
	if err := db.Migrate(conn, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	cat := catalog.Open(cfg.PuzzlesDir)
	entries, err := cat.List()
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.PuzzlesDir).Msg("failed to load puzzle catalog")
	}
	log.Info().Int("puzzles", len(entries)).Msg("catalog loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go sweep(ctx, mem, cfg.SessionTTL)

	srv := httpserver.New(httpserver.Options{Config: cfg, Store: mem, Catalog: cat, DB: conn})
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("port", cfg.Port).Msg("starting clusters server")
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Close every remaining engine so pending commits reach the history table
	// before the database is closed.
	if n := mem.Sweep(shutdownCtx, 0); n > 0 {
		log.Info().Int("sessions", n).Msg("closed sessions")
	}
}

// sweep closes sessions idle for longer than ttl, once a minute.
func sweep(ctx context.Context, st store.Store, ttl time.Duration) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(ctx, ttl); n > 0 {
				log.Info().Int("sessions", n).Msg("swept idle sessions")
			}
		}
	}
}
