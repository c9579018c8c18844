package application

import (
	"errors"
	"fmt"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
)

// Names of the two session cookies ESPN issues at login. If ESPN renames
// either, extraction fails distinctly from a login failure: the remediation
// is updating these constants, not fixing credentials.
const (
	CookieSWID   = "SWID"
	CookieESPNS2 = "espn_s2"
)

// ErrCookieMissing is returned when an authenticated browser session does
// not contain one of the required session cookies.
var ErrCookieMissing = errors.New("expected session cookie not present")

// ExtractSessionCookies picks the SWID and espn_s2 values out of a browser
// session's cookies. The returned error names every missing cookie.
func ExtractSessionCookies(cookies []model.Cookie) (swid, espnS2 string, err error) {
	for _, c := range cookies {
		switch c.Name {
		case CookieSWID:
			swid = c.Value
		case CookieESPNS2:
			espnS2 = c.Value
		}
	}

	var missing []string
	if swid == "" {
		missing = append(missing, CookieSWID)
	}
	if espnS2 == "" {
		missing = append(missing, CookieESPNS2)
	}
	if len(missing) > 0 {
		return "", "", fmt.Errorf("%w: %v", ErrCookieMissing, missing)
	}

	return swid, espnS2, nil
}
