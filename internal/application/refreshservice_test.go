package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leaguedash/internal/application"
	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// --- Fake implementations ---

// fakeSession is a deterministic BrowserSession stub.
type fakeSession struct {
	cookies    []model.Cookie
	visitErr   error
	cookiesErr error
	visits     []string
	closed     int
}

func (f *fakeSession) VisitLeague(_ context.Context, leagueID string) error {
	f.visits = append(f.visits, leagueID)
	return f.visitErr
}

func (f *fakeSession) Cookies(_ context.Context) ([]model.Cookie, error) {
	if f.cookiesErr != nil {
		return nil, f.cookiesErr
	}
	return f.cookies, nil
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

// fakeLoginAgent simulates each terminal state of the login flow without a
// browser.
type fakeLoginAgent struct {
	session  *fakeSession
	loginErr error
	logins   int
}

func (f *fakeLoginAgent) Login(_ context.Context, _, _ string) (driven.BrowserSession, error) {
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session, nil
}

// fakeLeagueClient returns scripted responses in order, repeating the last
// one once the script is exhausted.
type fakeLeagueClient struct {
	responses []error
	calls     int
}

func (f *fakeLeagueClient) FetchLeagueInfo(_ context.Context, _, _, leagueID string, _ int) (*model.LeagueInfo, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	if err := f.responses[idx]; err != nil {
		return nil, err
	}
	return &model.LeagueInfo{ID: leagueID, Name: "The Gridiron League", SeasonID: 2026}, nil
}

type fakeCredentialStore struct {
	stored     *model.Credential
	loadErr    error
	replaceErr error
	replaces   []model.Credential
}

func (f *fakeCredentialStore) Load(_ context.Context) (*model.Credential, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored, nil
}

func (f *fakeCredentialStore) Replace(_ context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return driven.ErrPartialCredential
	}
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaces = append(f.replaces, cred)
	f.stored = &cred
	return nil
}

type fakeAttemptStore struct {
	appended []model.RefreshAttempt
}

func (f *fakeAttemptStore) Append(_ context.Context, attempt model.RefreshAttempt) error {
	f.appended = append(f.appended, attempt)
	return nil
}

func (f *fakeAttemptStore) ListRecent(_ context.Context, _ int) ([]model.RefreshAttempt, error) {
	return f.appended, nil
}

// --- Helpers ---

func goodCookies() []model.Cookie {
	return []model.Cookie{
		{Name: "region", Value: "us"},
		{Name: "SWID", Value: "{NEW-SWID}"},
		{Name: "espn_s2", Value: "new-s2"},
	}
}

func storedCredential() *model.Credential {
	return &model.Credential{
		SWID:            "{OLD-SWID}",
		ESPNS2:          "old-s2",
		LeagueID:        "123456",
		LastValidatedAt: time.Now().UTC().Add(-24 * time.Hour),
	}
}

func testPolicy(skip bool) application.Policy {
	return application.Policy{
		Email:                "owner@example.com",
		Password:             "hunter2",
		LeagueID:             "123456",
		Season:               2026,
		SkipIfCurrentValid:   skip,
		ValidationAttempts:   3,
		ValidateTimeout:      time.Second,
		RetryInitialInterval: time.Millisecond,
	}
}

// --- Scenario tests ---

func TestRunOnce_Success(t *testing.T) {
	session := &fakeSession{cookies: goodCookies()}
	agent := &fakeLoginAgent{session: session}
	league := &fakeLeagueClient{responses: []error{nil}}
	creds := &fakeCredentialStore{}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Zero(t, attempt.ValidationRetries)

	require.Len(t, creds.replaces, 1)
	stored := creds.replaces[0]
	assert.Equal(t, "{NEW-SWID}", stored.SWID)
	assert.Equal(t, "new-s2", stored.ESPNS2)
	assert.Equal(t, "123456", stored.LeagueID)
	assert.Equal(t, attempt.ID, stored.SourceAttemptID)
	assert.True(t, stored.Valid())

	assert.Equal(t, []string{"123456"}, session.visits)
	assert.Equal(t, 1, session.closed)

	require.Len(t, attempts.appended, 1)
	assert.Equal(t, model.OutcomeSuccess, attempts.appended[0].Outcome)
	assert.False(t, attempts.appended[0].FinishedAt.Before(attempts.appended[0].StartedAt))
}

func TestRunOnce_LoginFailed(t *testing.T) {
	agent := &fakeLoginAgent{loginErr: errors.New("navigating_to_login: login form not found")}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, &fakeLeagueClient{responses: []error{nil}}, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeLoginFailed, attempt.Outcome)
	assert.Contains(t, attempt.ErrorDetail, "login form not found")
	// Store untouched on failure.
	assert.Empty(t, creds.replaces)
	assert.Equal(t, "{OLD-SWID}", creds.stored.SWID)
	require.Len(t, attempts.appended, 1)
	assert.Equal(t, model.OutcomeLoginFailed, attempts.appended[0].Outcome)
}

func TestRunOnce_MissingCookieIsExtractionFailed(t *testing.T) {
	session := &fakeSession{cookies: []model.Cookie{{Name: "SWID", Value: "{NEW-SWID}"}}}
	agent := &fakeLoginAgent{session: session}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, &fakeLeagueClient{responses: []error{nil}}, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeExtractionFailed, attempt.Outcome)
	assert.Contains(t, attempt.ErrorDetail, "espn_s2")
	assert.Empty(t, creds.replaces)
	assert.Equal(t, 1, session.closed)
}

func TestRunOnce_AuthRejectedNotRetried(t *testing.T) {
	session := &fakeSession{cookies: goodCookies()}
	agent := &fakeLoginAgent{session: session}
	league := &fakeLeagueClient{responses: []error{driven.ErrAuthRejected}}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeValidationFailed, attempt.Outcome)
	assert.Equal(t, 1, league.calls, "auth rejection must not be retried")
	assert.Zero(t, attempt.ValidationRetries)
	assert.Empty(t, creds.replaces)
	assert.Equal(t, "{OLD-SWID}", creds.stored.SWID)
}

func TestRunOnce_TransportErrorsRetriedThenSuccess(t *testing.T) {
	transportErr := errors.New("dial tcp: i/o timeout")
	session := &fakeSession{cookies: goodCookies()}
	agent := &fakeLoginAgent{session: session}
	league := &fakeLeagueClient{responses: []error{transportErr, transportErr, nil}}
	creds := &fakeCredentialStore{}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, 3, league.calls)
	assert.Equal(t, 2, attempt.ValidationRetries)
	require.Len(t, attempts.appended, 1)
	assert.Equal(t, 2, attempts.appended[0].ValidationRetries)
	require.Len(t, creds.replaces, 1)
}

func TestRunOnce_TransportErrorsExhaustBudget(t *testing.T) {
	transportErr := errors.New("dial tcp: connection refused")
	session := &fakeSession{cookies: goodCookies()}
	agent := &fakeLoginAgent{session: session}
	league := &fakeLeagueClient{responses: []error{transportErr}}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeValidationFailed, attempt.Outcome)
	assert.Equal(t, 3, league.calls, "transport errors retry up to the attempt budget")
	assert.Equal(t, 2, attempt.ValidationRetries)
	assert.Empty(t, creds.replaces)
}

func TestRunOnce_StoreFailed(t *testing.T) {
	session := &fakeSession{cookies: goodCookies()}
	agent := &fakeLoginAgent{session: session}
	creds := &fakeCredentialStore{replaceErr: errors.New("disk full")}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, &fakeLeagueClient{responses: []error{nil}}, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeStoreFailed, attempt.Outcome)
	assert.Contains(t, attempt.ErrorDetail, "disk full")
	assert.Empty(t, creds.replaces)
}

func TestRunOnce_VisitLeagueFailureIsLoginFailed(t *testing.T) {
	session := &fakeSession{visitErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	agent := &fakeLoginAgent{session: session}
	creds := &fakeCredentialStore{}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, &fakeLeagueClient{responses: []error{nil}}, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeLoginFailed, attempt.Outcome)
	assert.Equal(t, 1, session.closed, "session torn down on navigation failure")
	assert.Empty(t, creds.replaces)
}

// --- Pre-check short circuit ---

func TestRunOnce_SkipWhenStoredStillValid(t *testing.T) {
	agent := &fakeLoginAgent{session: &fakeSession{cookies: goodCookies()}}
	league := &fakeLeagueClient{responses: []error{nil}}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(true))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, 0, agent.logins, "browser must not start when the stored credential validates")
	assert.Empty(t, creds.replaces)
	assert.Equal(t, 1, league.calls)
	require.Len(t, attempts.appended, 1)
	assert.Contains(t, attempts.appended[0].ErrorDetail, "skipped")
}

func TestRunOnce_SkipDisabledRefreshesAnyway(t *testing.T) {
	agent := &fakeLoginAgent{session: &fakeSession{cookies: goodCookies()}}
	league := &fakeLeagueClient{responses: []error{nil}}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(false))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, 1, agent.logins)
	require.Len(t, creds.replaces, 1)
}

func TestRunOnce_StoredInvalidFallsThroughToRefresh(t *testing.T) {
	agent := &fakeLoginAgent{session: &fakeSession{cookies: goodCookies()}}
	// First call validates the stored credential (rejected); second call
	// validates the freshly extracted pair.
	league := &fakeLeagueClient{responses: []error{driven.ErrAuthRejected, nil}}
	creds := &fakeCredentialStore{stored: storedCredential()}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(true))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, 1, agent.logins)
	assert.Equal(t, 2, league.calls)
	require.Len(t, creds.replaces, 1)
	assert.Equal(t, "{NEW-SWID}", creds.stored.SWID)
}

func TestRunOnce_NoStoredCredentialRefreshes(t *testing.T) {
	agent := &fakeLoginAgent{session: &fakeSession{cookies: goodCookies()}}
	league := &fakeLeagueClient{responses: []error{nil}}
	creds := &fakeCredentialStore{}
	attempts := &fakeAttemptStore{}

	svc := application.NewRefreshService(agent, league, creds, attempts, testPolicy(true))
	attempt := svc.RunOnce(context.Background())

	assert.Equal(t, model.OutcomeSuccess, attempt.Outcome)
	assert.Equal(t, 1, agent.logins)
	// The skip pre-check must not have issued a validation for an absent
	// credential.
	assert.Equal(t, 1, league.calls)
}

func TestRunOnce_EveryRunAppendsExactlyOneRecord(t *testing.T) {
	cases := []struct {
		name  string
		agent *fakeLoginAgent
	}{
		{"success", &fakeLoginAgent{session: &fakeSession{cookies: goodCookies()}}},
		{"login failure", &fakeLoginAgent{loginErr: errors.New("boom")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempts := &fakeAttemptStore{}
			svc := application.NewRefreshService(tc.agent, &fakeLeagueClient{responses: []error{nil}}, &fakeCredentialStore{}, attempts, testPolicy(false))

			svc.RunOnce(context.Background())
			svc.RunOnce(context.Background())

			assert.Len(t, attempts.appended, 2)
		})
	}
}
