package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
)

// ErrAuthRejected is returned by LeagueClient when the API explicitly
// refused the supplied session cookies. It is terminal for the current run;
// transport errors (anything not wrapping this sentinel) are retryable.
var ErrAuthRejected = errors.New("espn api rejected the session cookies")

// LeagueClient defines the driven port for the one authenticated read the
// validator performs against the ESPN fantasy API. Its success criterion
// mirrors exactly what the dashboard's data layer requires: an HTTP success
// status and a JSON body identifying the requested league.
type LeagueClient interface {
	// FetchLeagueInfo reads basic league information using the given cookie
	// pair. Returns an error wrapping ErrAuthRejected when the API refused
	// the cookies; any other error is a transport failure.
	FetchLeagueInfo(ctx context.Context, swid, espnS2, leagueID string, season int) (*model.LeagueInfo, error)
}
