// Package espn implements the LeagueClient port against the ESPN fantasy
// football API using cookie authentication.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LeagueClient = (*Client)(nil)

const (
	leaguePathFormat = "/apis/v3/games/ffl/seasons/%d/segments/0/leagues/%s"
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// defaultHosts are tried in order. The lm-api-reads host is the one the
// fantasy web app itself uses; fantasy.espn.com is kept as a fallback.
var defaultHosts = []string{
	"https://lm-api-reads.fantasy.espn.com",
	"https://fantasy.espn.com",
}

// Client implements the driven.LeagueClient port over the ESPN league read
// API. Redirects are never followed: an invalid cookie pair makes ESPN
// redirect to a login page, and following it would turn an auth rejection
// into a confusing success status.
type Client struct {
	httpClient *http.Client
	hosts      []string
}

// NewClient creates a Client against the production ESPN hosts. Request
// deadlines come from the caller's context.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		hosts: defaultHosts,
	}
}

// NewClientWithHosts creates a Client with a custom http.Client and host
// list. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHosts(httpClient *http.Client, hosts []string) *Client {
	return &Client{httpClient: httpClient, hosts: hosts}
}

// leagueResponse is the subset of the league endpoint body the validator
// inspects.
type leagueResponse struct {
	ID       json.Number `json:"id"`
	SeasonID int         `json:"seasonId"`
	Settings struct {
		Name string `json:"name"`
	} `json:"settings"`
}

// FetchLeagueInfo reads basic league information using the given cookie
// pair. Each configured host is tried in order; the error from the last
// host wins. Errors wrapping driven.ErrAuthRejected are terminal (the API
// refused the cookies, or returned something other than the requested
// league); every other error is transport-level and retryable.
func (c *Client) FetchLeagueInfo(ctx context.Context, swid, espnS2, leagueID string, season int) (*model.LeagueInfo, error) {
	var lastErr error
	for _, host := range c.hosts {
		info, err := c.fetchFromHost(ctx, host, swid, espnS2, leagueID, season)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Debug("league fetch failed, trying next host", "host", host, "error", err)
	}
	return nil, lastErr
}

func (c *Client) fetchFromHost(ctx context.Context, host, swid, espnS2, leagueID string, season int) (*model.LeagueInfo, error) {
	url := host + fmt.Sprintf(leaguePathFormat, season, leagueID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build league request: %w", err)
	}

	req.AddCookie(&http.Cookie{Name: "SWID", Value: swid})
	req.AddCookie(&http.Cookie{Name: "espn_s2", Value: espnS2})

	// Header set the fantasy web app sends; without the kona headers some
	// endpoints answer with an HTML shell instead of JSON.
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://fantasy.espn.com/football/league?leagueId="+leagueID)
	req.Header.Set("Origin", "https://fantasy.espn.com")
	req.Header.Set("x-fantasy-platform", "kona")
	req.Header.Set("x-fantasy-source", "kona")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("league request to %s: %w", host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s returned %d: %w", host, resp.StatusCode, driven.ErrAuthRejected)
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Redirect toward login: cookie pair not accepted.
		return nil, fmt.Errorf("%s redirected to %q: %w", host, resp.Header.Get("Location"), driven.ErrAuthRejected)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s returned unexpected status %d", host, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		// ESPN serves an HTML login shell with a 200 when cookies are stale.
		return nil, fmt.Errorf("%s returned non-JSON content type %q: %w", host, ct, driven.ErrAuthRejected)
	}

	var body leagueResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode league response from %s: %w", host, err)
	}

	if body.ID.String() != leagueID {
		return nil, fmt.Errorf("%s returned league %q, wanted %q: %w", host, body.ID.String(), leagueID, driven.ErrAuthRejected)
	}

	return &model.LeagueInfo{
		ID:       body.ID.String(),
		Name:     body.Settings.Name,
		SeasonID: body.SeasonID,
	}, nil
}
