package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// LEAGUEDASH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set LEAGUEDASH_SECRET_KEY")

// ErrPartialCredential is returned by Replace when either session cookie
// value is empty. Partial credentials are never persisted.
var ErrPartialCredential = errors.New("credential is missing a session cookie value")

// CredentialStore defines the driven port for persisting the current session
// credential. The dashboard's API client is the reader; the refresh pipeline
// is the only writer. Replace must be atomic with respect to concurrent
// readers: a reader never observes one cookie value updated and the other
// not. The adapter layer is responsible for encryption/decryption; this
// interface operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Load retrieves the current credential. Returns (nil, nil) when no
	// credential has been stored yet.
	Load(ctx context.Context) (*model.Credential, error)

	// Replace atomically overwrites the stored credential. Returns
	// ErrPartialCredential without writing if cred.Valid() is false.
	Replace(ctx context.Context, cred model.Credential) error
}
