package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Cookie values are encrypted with AES-256-GCM before write and decrypted
// after read. The credential lives in a single pinned row, so Replace is one
// statement on the single-connection writer and readers never observe a
// half-updated pair.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Load retrieves the current credential with decrypted cookie values.
// Returns (nil, nil) when no credential has been stored.
func (r *CredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT swid, espn_s2, league_id, last_validated_at, source_attempt_id FROM credential WHERE id = 1`
	var (
		encSWID, encS2       string
		leagueID             string
		validatedAt, attempt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query).
		Scan(&encSWID, &encS2, &leagueID, &validatedAt, &attempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	swid, err := r.decrypt(encSWID)
	if err != nil {
		return nil, fmt.Errorf("decrypt swid: %w", err)
	}
	s2, err := r.decrypt(encS2)
	if err != nil {
		return nil, fmt.Errorf("decrypt espn_s2: %w", err)
	}

	cred := model.Credential{
		SWID:     swid,
		ESPNS2:   s2,
		LeagueID: leagueID,
	}
	cred.LastValidatedAt, err = parseTime(validatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_validated_at: %w", err)
	}
	cred.SourceAttemptID, err = uuid.Parse(attempt)
	if err != nil {
		return nil, fmt.Errorf("parse source_attempt_id: %w", err)
	}

	return &cred, nil
}

// Replace atomically overwrites the stored credential. Partial credentials
// are rejected before any write.
func (r *CredentialRepo) Replace(ctx context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return driven.ErrPartialCredential
	}

	encSWID, err := r.encrypt(cred.SWID)
	if err != nil {
		return fmt.Errorf("encrypt swid: %w", err)
	}
	encS2, err := r.encrypt(cred.ESPNS2)
	if err != nil {
		return fmt.Errorf("encrypt espn_s2: %w", err)
	}

	const query = `INSERT OR REPLACE INTO credential (id, swid, espn_s2, league_id, last_validated_at, source_attempt_id)
		VALUES (1, ?, ?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		encSWID, encS2, cred.LeagueID, formatTime(cred.LastValidatedAt), cred.SourceAttemptID.String())
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
