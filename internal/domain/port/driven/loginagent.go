package driven

import (
	"context"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
)

// LoginAgent defines the driven port for driving the third-party login flow
// to an authenticated browser session. Implementations own a real browser
// process; the stub used in tests simulates the terminal states.
//
// Any error from Login maps to a login failure in the audit trail. The
// specific cause (selector drift, rejected credentials, confirmation
// timeout, missing browser binary) is carried in the error text for
// diagnostics but not distinguished at the type level: the pipeline cannot
// self-heal from a UI change, so these are reported, not retried.
type LoginAgent interface {
	// Login drives the browser from the login page to an authenticated
	// session. The caller must Close the returned session on every path.
	Login(ctx context.Context, email, password string) (BrowserSession, error)
}

// BrowserSession is an authenticated browser session. It is ephemeral, owned
// by exactly one refresh attempt, and releases its browser resources on
// Close regardless of outcome.
type BrowserSession interface {
	// VisitLeague navigates the authenticated session to the league page so
	// the fantasy-domain cookies get set.
	VisitLeague(ctx context.Context, leagueID string) error

	// Cookies returns all cookies visible to the session.
	Cookies(ctx context.Context) ([]model.Cookie, error)

	// Close tears down the browser process. Safe to call more than once.
	Close() error
}
