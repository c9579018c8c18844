// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the refresh-job configuration loaded from environment variables.
type Config struct {
	ESPNEmail    string
	ESPNPassword string
	LeagueID     string

	CurrentSeason int
	StartSeason   int

	LoginURL        string
	LoginTimeout    time.Duration
	ValidateTimeout time.Duration

	// SkipIfCurrentValid short-circuits the run to success without browser
	// automation when the stored credential still validates.
	SkipIfCurrentValid bool
	// ValidationAttempts bounds transport-level validation retries
	// (total attempts, not retries after the first).
	ValidationAttempts int

	DBPath   string
	LockPath string

	// SecretKey is the 32-byte AES-256 key credential values are encrypted
	// with at rest; nil disables credential storage.
	SecretKey []byte
}

// Load reads configuration from environment variables and returns a validated
// Config. LEAGUEDASH_ESPN_EMAIL, LEAGUEDASH_ESPN_PASSWORD, and
// LEAGUEDASH_LEAGUE_ID are required. Optional variables with defaults:
// LEAGUEDASH_CURRENT_SEASON (current year), LEAGUEDASH_START_SEASON (2022),
// LEAGUEDASH_LOGIN_URL, LEAGUEDASH_LOGIN_TIMEOUT (45s),
// LEAGUEDASH_VALIDATE_TIMEOUT (30s), LEAGUEDASH_SKIP_IF_VALID (true),
// LEAGUEDASH_VALIDATION_ATTEMPTS (3), LEAGUEDASH_DB_PATH (leaguedash.db),
// LEAGUEDASH_LOCK_PATH (leaguedash.refresh.lock).
// LEAGUEDASH_SECRET_KEY, when set, must be the standard-base64 encoding of
// 32 bytes.
func Load() (*Config, error) {
	email := os.Getenv("LEAGUEDASH_ESPN_EMAIL")
	password := os.Getenv("LEAGUEDASH_ESPN_PASSWORD")
	leagueID := os.Getenv("LEAGUEDASH_LEAGUE_ID")

	var missing []string
	if email == "" {
		missing = append(missing, "LEAGUEDASH_ESPN_EMAIL")
	}
	if password == "" {
		missing = append(missing, "LEAGUEDASH_ESPN_PASSWORD")
	}
	if leagueID == "" {
		missing = append(missing, "LEAGUEDASH_LEAGUE_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	currentSeason := time.Now().Year()
	if v, ok := os.LookupEnv("LEAGUEDASH_CURRENT_SEASON"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LEAGUEDASH_CURRENT_SEASON has invalid value %q: %w", v, err)
		}
		currentSeason = parsed
	}

	startSeason := 2022
	if v, ok := os.LookupEnv("LEAGUEDASH_START_SEASON"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LEAGUEDASH_START_SEASON has invalid value %q: %w", v, err)
		}
		startSeason = parsed
	}
	if startSeason > currentSeason {
		return nil, fmt.Errorf("LEAGUEDASH_START_SEASON %d is after LEAGUEDASH_CURRENT_SEASON %d", startSeason, currentSeason)
	}

	loginURL := "https://www.espn.com/login"
	if v, ok := os.LookupEnv("LEAGUEDASH_LOGIN_URL"); ok {
		loginURL = v
	}

	loginTimeout, err := durationEnv("LEAGUEDASH_LOGIN_TIMEOUT", 45*time.Second)
	if err != nil {
		return nil, err
	}
	validateTimeout, err := durationEnv("LEAGUEDASH_VALIDATE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	skipIfValid := true
	if v, ok := os.LookupEnv("LEAGUEDASH_SKIP_IF_VALID"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LEAGUEDASH_SKIP_IF_VALID has invalid value %q: %w", v, err)
		}
		skipIfValid = parsed
	}

	validationAttempts := 3
	if v, ok := os.LookupEnv("LEAGUEDASH_VALIDATION_ATTEMPTS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("LEAGUEDASH_VALIDATION_ATTEMPTS has invalid value %q", v)
		}
		validationAttempts = parsed
	}

	dbPath := "leaguedash.db"
	if v, ok := os.LookupEnv("LEAGUEDASH_DB_PATH"); ok {
		dbPath = v
	}

	lockPath := "leaguedash.refresh.lock"
	if v, ok := os.LookupEnv("LEAGUEDASH_LOCK_PATH"); ok {
		lockPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("LEAGUEDASH_SECRET_KEY"); ok && v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("LEAGUEDASH_SECRET_KEY is not valid base64: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("LEAGUEDASH_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ESPNEmail:          email,
		ESPNPassword:       password,
		LeagueID:           leagueID,
		CurrentSeason:      currentSeason,
		StartSeason:        startSeason,
		LoginURL:           loginURL,
		LoginTimeout:       loginTimeout,
		ValidateTimeout:    validateTimeout,
		SkipIfCurrentValid: skipIfValid,
		ValidationAttempts: validationAttempts,
		DBPath:             dbPath,
		LockPath:           lockPath,
		SecretKey:          secretKey,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	return parsed, nil
}
