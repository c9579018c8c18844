package model

import (
	"time"

	"github.com/google/uuid"
)

// Credential holds the ESPN session cookie pair the dashboard's API client
// authenticates with, plus refresh metadata. SWID and ESPNS2 are the values
// of the "SWID" and "espn_s2" browser cookies; both are opaque tokens issued
// by ESPN at login.
type Credential struct {
	SWID            string
	ESPNS2          string
	LeagueID        string
	LastValidatedAt time.Time
	SourceAttemptID uuid.UUID
}

// Valid reports whether the credential is complete. A credential with either
// cookie value empty is treated as absent everywhere in the system; partial
// pairs are never persisted.
func (c Credential) Valid() bool {
	return c.SWID != "" && c.ESPNS2 != ""
}
