// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// Policy holds the per-run settings of the refresh pipeline.
type Policy struct {
	Email    string
	Password string
	LeagueID string
	Season   int

	// SkipIfCurrentValid short-circuits the run to success without any
	// browser automation when the stored credential still validates.
	SkipIfCurrentValid bool

	// ValidationAttempts bounds validation calls per stage for
	// transport-level errors. Auth rejections are never retried.
	ValidationAttempts int

	// ValidateTimeout bounds each individual validation request.
	ValidateTimeout time.Duration

	// RetryInitialInterval seeds the exponential backoff between validation
	// retries. Zero means one second.
	RetryInitialInterval time.Duration
}

// RefreshService sequences the credential refresh pipeline: browser login,
// cookie extraction, live validation, atomic store rotation. It is the only
// writer of the credential store and appends exactly one audit record per
// run.
type RefreshService struct {
	agent    driven.LoginAgent
	league   driven.LeagueClient
	creds    driven.CredentialStore
	attempts driven.AttemptStore
	policy   Policy
}

// NewRefreshService creates a RefreshService with all required dependencies.
func NewRefreshService(
	agent driven.LoginAgent,
	league driven.LeagueClient,
	creds driven.CredentialStore,
	attempts driven.AttemptStore,
	policy Policy,
) *RefreshService {
	if policy.ValidationAttempts < 1 {
		policy.ValidationAttempts = 1
	}
	if policy.RetryInitialInterval <= 0 {
		policy.RetryInitialInterval = time.Second
	}
	return &RefreshService{
		agent:    agent,
		league:   league,
		creds:    creds,
		attempts: attempts,
		policy:   policy,
	}
}

// RunOnce executes one complete refresh attempt and returns its record. The
// record is also appended to the audit trail; failures to append are logged
// but do not change the attempt outcome. A new credential reaches the store
// only if it validated against the live API within this same run, so a login
// that "succeeds" in the browser but yields rejected cookies never
// overwrites a working credential.
func (s *RefreshService) RunOnce(ctx context.Context) model.RefreshAttempt {
	attempt := model.RefreshAttempt{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	slog.Info("refresh run started", "attempt_id", attempt.ID, "league_id", s.policy.LeagueID)

	s.execute(ctx, &attempt)

	attempt.FinishedAt = time.Now().UTC()
	slog.Info("refresh run finished",
		"attempt_id", attempt.ID,
		"outcome", string(attempt.Outcome),
		"validation_retries", attempt.ValidationRetries,
		"duration", attempt.FinishedAt.Sub(attempt.StartedAt).Round(time.Millisecond),
	)

	// Record the attempt even when the run context was canceled; the audit
	// trail must hold exactly one record per run.
	if err := s.attempts.Append(context.WithoutCancel(ctx), attempt); err != nil {
		slog.Error("append audit record failed", "attempt_id", attempt.ID, "error", err)
	}

	return attempt
}

// execute walks the pipeline stages and fills in the attempt's outcome.
func (s *RefreshService) execute(ctx context.Context, attempt *model.RefreshAttempt) {
	if s.policy.SkipIfCurrentValid && s.currentStillValid(ctx, attempt) {
		attempt.Outcome = model.OutcomeSuccess
		attempt.ErrorDetail = "stored credential still valid, refresh skipped"
		return
	}

	sess, err := s.agent.Login(ctx, s.policy.Email, s.policy.Password)
	if err != nil {
		s.fail(attempt, model.OutcomeLoginFailed, err)
		return
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			slog.Error("browser session close failed", "attempt_id", attempt.ID, "error", closeErr)
		}
	}()
	slog.Info("browser login succeeded", "attempt_id", attempt.ID)

	if err := sess.VisitLeague(ctx, s.policy.LeagueID); err != nil {
		s.fail(attempt, model.OutcomeLoginFailed, err)
		return
	}

	cookies, err := sess.Cookies(ctx)
	if err != nil {
		s.fail(attempt, model.OutcomeExtractionFailed, err)
		return
	}
	swid, espnS2, err := ExtractSessionCookies(cookies)
	if err != nil {
		s.fail(attempt, model.OutcomeExtractionFailed, err)
		return
	}
	slog.Info("session cookies extracted", "attempt_id", attempt.ID)

	info, retries, err := s.validate(ctx, swid, espnS2)
	attempt.ValidationRetries = retries
	if err != nil {
		s.fail(attempt, model.OutcomeValidationFailed, err)
		return
	}
	slog.Info("new credential validated", "attempt_id", attempt.ID, "league_name", info.Name)

	cred := model.Credential{
		SWID:            swid,
		ESPNS2:          espnS2,
		LeagueID:        s.policy.LeagueID,
		LastValidatedAt: time.Now().UTC(),
		SourceAttemptID: attempt.ID,
	}
	if err := s.creds.Replace(ctx, cred); err != nil {
		s.fail(attempt, model.OutcomeStoreFailed, err)
		return
	}
	slog.Info("credential rotated", "attempt_id", attempt.ID)

	attempt.Outcome = model.OutcomeSuccess
}

// currentStillValid implements the pre-check short circuit: load the stored
// credential and validate it against the live API. Any problem here (load
// error, absent credential, failed validation) just means the full refresh
// proceeds.
func (s *RefreshService) currentStillValid(ctx context.Context, attempt *model.RefreshAttempt) bool {
	cur, err := s.creds.Load(ctx)
	if err != nil {
		slog.Warn("could not load stored credential, refreshing", "error", err)
		return false
	}
	if cur == nil || !cur.Valid() {
		slog.Info("no stored credential, refreshing")
		return false
	}

	_, retries, err := s.validate(ctx, cur.SWID, cur.ESPNS2)
	attempt.ValidationRetries = retries
	if err != nil {
		slog.Info("stored credential no longer valid, refreshing", "error", err)
		return false
	}

	slog.Info("stored credential still valid, skipping refresh", "attempt_id", attempt.ID)
	return true
}

// validate issues the read-only league request, retrying transport-level
// errors with exponential backoff up to the configured attempt budget. Auth
// rejections abort immediately. The int result is the number of retries
// consumed beyond the first call.
func (s *RefreshService) validate(ctx context.Context, swid, espnS2 string) (*model.LeagueInfo, int, error) {
	var calls int

	op := func() (*model.LeagueInfo, error) {
		calls++

		callCtx, cancel := context.WithTimeout(ctx, s.policy.ValidateTimeout)
		defer cancel()

		info, err := s.league.FetchLeagueInfo(callCtx, swid, espnS2, s.policy.LeagueID, s.policy.Season)
		if err != nil {
			if errors.Is(err, driven.ErrAuthRejected) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return info, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.policy.RetryInitialInterval

	info, err := backoff.RetryNotifyWithData(
		op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.policy.ValidationAttempts-1)), ctx),
		func(err error, next time.Duration) {
			slog.Warn("validation transport error, will retry", "error", err, "next_attempt_in", next)
		},
	)

	retries := calls - 1
	if retries < 0 {
		retries = 0
	}
	return info, retries, err
}

func (s *RefreshService) fail(attempt *model.RefreshAttempt, outcome model.Outcome, err error) {
	attempt.Outcome = outcome
	attempt.ErrorDetail = err.Error()
	slog.Error("refresh stage failed",
		"attempt_id", attempt.ID,
		"outcome", string(outcome),
		"error", err,
	)
}
