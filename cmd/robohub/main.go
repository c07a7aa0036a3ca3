package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"robohub/internal/api"
	"robohub/internal/credentials"
	"robohub/internal/dispatch"
	"robohub/internal/executor"
	"robohub/internal/robot"
	"robohub/internal/store"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP bind address")
		dbPath      = flag.String("db", "robohub.db", "SQLite DB path")
		execURL     = flag.String("executor", "http://localhost:8081", "browser interpreter base URL")
		execTimeout = flag.Duration("executor-timeout", 120*time.Second, "per-run interpreter timeout")
		execRate    = flag.Float64("executor-rate", 2, "max trigger calls per second")
		poll        = flag.Duration("poll", 30*time.Second, "dispatch poll interval")
		inFlight    = flag.Int("in-flight", 4, "max concurrent robot executions")
		debug       = flag.Bool("debug", false, "mount pprof debug routes")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", *dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	repo := store.New(db)
	exec := executor.NewClient(*execURL, *execTimeout, *execRate)
	robots := robot.NewService(repo, exec)
	creds := credentials.NewService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	loop := dispatch.NewLoop(repo, exec, *poll, *inFlight)
	go loop.Run(ctx)

	srv := &http.Server{Addr: *addr, Handler: api.NewServerWithDebug(robots, creds, *debug)}
	go func() {
		log.Info().Str("addr", *addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	cancel()
	loop.Stop()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
