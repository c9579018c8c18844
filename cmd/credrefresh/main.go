// Command credrefresh runs one ESPN session-credential refresh attempt. It
// is designed to be invoked by an external scheduler (cron, systemd timer):
// each invocation is a discrete run, overlapping invocations skip instead of
// queueing, and the exit code tells the scheduler which stage failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	browseradapter "github.com/ericfisherdev/leaguedash/internal/adapter/driven/browser"
	espnadapter "github.com/ericfisherdev/leaguedash/internal/adapter/driven/espn"
	sqliteadapter "github.com/ericfisherdev/leaguedash/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/leaguedash/internal/application"
	"github.com/ericfisherdev/leaguedash/internal/config"
	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/runlock"
)

// Exit codes consumed by the external scheduler. 0 covers both a successful
// refresh and a deliberate skip (lock held, or stored credential still
// valid); each failure outcome gets its own code so a monitor can alert on
// the failing stage without parsing logs.
const (
	exitOK               = 0
	exitSetupError       = 1
	exitLoginFailed      = 2
	exitExtractionFailed = 3
	exitValidationFailed = 4
	exitStoreFailed      = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load optional .env, then configuration (fail fast on missing vars).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		return exitSetupError
	}
	slog.Info("config loaded",
		"league_id", cfg.LeagueID,
		"seasons", fmt.Sprintf("%d-%d", cfg.StartSeason, cfg.CurrentSeason),
		"db_path", cfg.DBPath,
		"skip_if_valid", cfg.SkipIfCurrentValid,
		"login_timeout", cfg.LoginTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM). Cancellation tears
	// down the browser and ends the run; the deferred lock release and the
	// kernel's flock cleanup keep the next scheduled run unblocked.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("open database failed", "error", err)
		return exitSetupError
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		slog.Error("migrations failed", "error", err)
		return exitSetupError
	}

	// 4. Take the run lock before any side effect. Held lock means another
	// run is in progress; skip rather than queue.
	lock, acquired, err := runlock.Acquire(cfg.LockPath)
	if err != nil {
		slog.Error("run lock failed", "error", err)
		return exitSetupError
	}
	if !acquired {
		slog.Info("another refresh run is in progress, skipping", "lock_path", cfg.LockPath)
		return exitOK
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			slog.Error("run lock release failed", "error", relErr)
		}
	}()

	// 5. Wire adapters and run the pipeline once.
	agent := browseradapter.NewAgent(cfg.LoginURL, cfg.LoginTimeout)
	league := espnadapter.NewClient()
	credStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	attemptStore := sqliteadapter.NewAttemptRepo(db)

	svc := application.NewRefreshService(agent, league, credStore, attemptStore, application.Policy{
		Email:              cfg.ESPNEmail,
		Password:           cfg.ESPNPassword,
		LeagueID:           cfg.LeagueID,
		Season:             cfg.CurrentSeason,
		SkipIfCurrentValid: cfg.SkipIfCurrentValid,
		ValidationAttempts: cfg.ValidationAttempts,
		ValidateTimeout:    cfg.ValidateTimeout,
	})

	attempt := svc.RunOnce(ctx)
	return exitCode(attempt.Outcome)
}

func exitCode(outcome model.Outcome) int {
	switch outcome {
	case model.OutcomeSuccess:
		return exitOK
	case model.OutcomeLoginFailed:
		return exitLoginFailed
	case model.OutcomeExtractionFailed:
		return exitExtractionFailed
	case model.OutcomeValidationFailed:
		return exitValidationFailed
	case model.OutcomeStoreFailed:
		return exitStoreFailed
	default:
		return exitSetupError
	}
}
