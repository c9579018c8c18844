package model

// Cookie is the minimal projection of a browser cookie the refresh pipeline
// cares about.
type Cookie struct {
	Name  string
	Value string
}

// LeagueInfo is the identifying shape returned by the ESPN league endpoint.
// The validator judges a credential good when it can read this for the
// configured league.
type LeagueInfo struct {
	ID       string
	Name     string
	SeasonID int
}
