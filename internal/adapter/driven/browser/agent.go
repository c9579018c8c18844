// Package browser implements the LoginAgent port by driving headless Chrome
// through the ESPN login flow with chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LoginAgent = (*Agent)(nil)

// phase tracks where in the login flow an attempt is. It exists for
// diagnostics: the phase reached is embedded in error text so the audit
// trail shows whether a failure was selector drift, rejected credentials,
// or a confirmation timeout.
type phase string

const (
	phaseNavigatingToLogin     phase = "navigating_to_login"
	phaseSubmittingCredentials phase = "submitting_credentials"
	phaseAwaitingConfirmation  phase = "awaiting_confirmation"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Selectors for the ESPN login form. When ESPN changes its page structure
// these are the first thing to update.
const (
	usernameSelector = `input[name="username"]`
	passwordSelector = `input[name="password"]`
)

// Agent drives headless Chrome through the ESPN login flow. One Chrome
// process is launched per Login call and torn down when the returned session
// is closed.
type Agent struct {
	loginURL       string
	loginTimeout   time.Duration
	confirmPollGap time.Duration
}

// NewAgent creates an Agent targeting the given login page. loginTimeout
// bounds the whole navigate-fill-submit-confirm flow.
func NewAgent(loginURL string, loginTimeout time.Duration) *Agent {
	return &Agent{
		loginURL:       loginURL,
		loginTimeout:   loginTimeout,
		confirmPollGap: 500 * time.Millisecond,
	}
}

// Login drives the browser from the login page to an authenticated session.
// On any failure the Chrome process is torn down before returning; on
// success the caller owns the returned session and must Close it.
func (a *Agent) Login(ctx context.Context, email, password string) (driven.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	sess := &session{
		ctx:       browserCtx,
		opTimeout: a.loginTimeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// Launch Chrome up front so a missing or broken browser binary surfaces
	// as its own error before any navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		sess.mustClose()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	flowCtx, cancelFlow := context.WithTimeout(browserCtx, a.loginTimeout)
	defer cancelFlow()

	if err := a.runFlow(flowCtx, email, password); err != nil {
		sess.mustClose()
		return nil, err
	}

	slog.Info("login flow authenticated", "login_url", a.loginURL)
	return sess, nil
}

// runFlow walks the login state machine. Each phase failure is wrapped with
// the phase name.
func (a *Agent) runFlow(ctx context.Context, email, password string) error {
	slog.Info("login flow started", "phase", string(phaseNavigatingToLogin), "login_url", a.loginURL)
	err := chromedp.Run(ctx,
		chromedp.Navigate(a.loginURL),
		chromedp.WaitVisible(usernameSelector, chromedp.ByQuery),
	)
	if err != nil {
		return phaseErr(phaseNavigatingToLogin, "login form not found, page structure may have changed", err)
	}

	slog.Info("login form located", "phase", string(phaseSubmittingCredentials))
	err = chromedp.Run(ctx,
		chromedp.SendKeys(usernameSelector, email, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, password, chromedp.ByQuery),
		chromedp.Submit(passwordSelector, chromedp.ByQuery),
	)
	if err != nil {
		return phaseErr(phaseSubmittingCredentials, "could not fill or submit credentials", err)
	}

	slog.Info("credentials submitted", "phase", string(phaseAwaitingConfirmation))
	if err := a.awaitConfirmation(ctx); err != nil {
		return err
	}

	return nil
}

// awaitConfirmation polls the page URL until it leaves the login page, which
// is how the flow confirms authentication. Remaining on the login page until
// the deadline means the credentials were rejected or the page stalled.
func (a *Agent) awaitConfirmation(ctx context.Context) error {
	ticker := time.NewTicker(a.confirmPollGap)
	defer ticker.Stop()

	for {
		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return phaseErr(phaseAwaitingConfirmation, "timed out waiting for login confirmation", err)
			}
			return phaseErr(phaseAwaitingConfirmation, "could not read page location", err)
		}

		if location != "" && !strings.Contains(strings.ToLower(location), "login") {
			return nil
		}

		select {
		case <-ctx.Done():
			return phaseErr(phaseAwaitingConfirmation,
				"still on login page at deadline, credentials rejected or page stalled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func phaseErr(p phase, detail string, err error) error {
	return fmt.Errorf("%s: %s: %w", p, detail, err)
}

// session is an authenticated Chrome session. Close is idempotent and
// guaranteed to release the Chrome process.
type session struct {
	ctx       context.Context
	opTimeout time.Duration
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ driven.BrowserSession = (*session)(nil)

// VisitLeague navigates to the fantasy league page so the fantasy-domain
// session cookies get set.
func (s *session) VisitLeague(ctx context.Context, leagueID string) error {
	url := "https://fantasy.espn.com/football/league?leagueId=" + leagueID

	navCtx, cancel := s.boundedCtx(ctx)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("visit league page %s: %w", url, err)
	}
	return nil
}

// Cookies returns all cookies visible to the browser, across domains.
func (s *session) Cookies(ctx context.Context) ([]model.Cookie, error) {
	readCtx, cancel := s.boundedCtx(ctx)
	defer cancel()

	var cookies []model.Cookie
	err := chromedp.Run(readCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]model.Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, model.Cookie{Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("read browser cookies: %w", err)
	}
	return cookies, nil
}

// Close tears down the Chrome process. Safe to call more than once.
func (s *session) Close() error {
	s.mustClose()
	return nil
}

func (s *session) mustClose() {
	s.closeOnce.Do(s.cancel)
}

// boundedCtx derives a context for one chromedp operation from the browser
// context, taking the caller's deadline when it has one and falling back to
// the agent's operation timeout otherwise. No browser call runs unbounded.
func (s *session) boundedCtx(callerCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callerCtx.Deadline(); ok {
		return context.WithDeadline(s.ctx, deadline)
	}
	return context.WithTimeout(s.ctx, s.opTimeout)
}
