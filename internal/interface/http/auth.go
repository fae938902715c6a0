package http

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/persistence/postgres"
)

// keyPrefixLen is how many leading characters of an API key form its
// lookup prefix. The rest of the key is verified against the stored
// bcrypt hash.
const keyPrefixLen = 12

// ErrInvalidAPIKey is returned when a key cannot be resolved to an account.
var ErrInvalidAPIKey = errors.New("invalid api key")

// Authenticator resolves bearer keys to account identities.
type Authenticator interface {
	// Authenticate returns the account behind the key, or an error when
	// the key is unknown, revoked, or fails verification.
	Authenticate(ctx context.Context, key string) (shared.AccountID, error)
}

// APIKeyAuthenticator authenticates against the api_keys table: the key
// prefix locates the row, the full key is checked against its bcrypt hash.
type APIKeyAuthenticator struct {
	repo *postgres.APIKeyRepository
}

// NewAPIKeyAuthenticator creates an APIKeyAuthenticator.
func NewAPIKeyAuthenticator(repo *postgres.APIKeyRepository) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{repo: repo}
}

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, key string) (shared.AccountID, error) {
	if len(key) <= keyPrefixLen {
		return "", ErrInvalidAPIKey
	}

	record, err := a.repo.FindByPrefix(ctx, key[:keyPrefixLen])
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", ErrInvalidAPIKey
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.KeyHash), []byte(key)); err != nil {
		return "", ErrInvalidAPIKey
	}

	return record.Account, nil
}

// HashAPIKey produces the bcrypt hash stored for a new key. Used by
// provisioning tooling when inserting api_keys rows.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// KeyPrefix returns the lookup prefix of a key.
func KeyPrefix(key string) string {
	if len(key) < keyPrefixLen {
		return key
	}
	return key[:keyPrefixLen]
}
