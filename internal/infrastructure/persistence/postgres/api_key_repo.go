// Package postgres implements the PostgreSQL persistence layer for
// Campus Course Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// API KEY REPOSITORY
// Bearer keys identify the calling account. Only the bcrypt hash is stored;
// the key prefix narrows the lookup before the hash comparison.
// ══════════════════════════════════════════════════════════════════════════════

// APIKey is a stored credential row.
type APIKey struct {
	ID        string
	Account   shared.AccountID
	KeyPrefix string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the key has been revoked.
func (k APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// APIKeyRepository stores API keys in PostgreSQL.
type APIKeyRepository struct {
	conn *Connection
}

// NewAPIKeyRepository creates a new APIKeyRepository.
func NewAPIKeyRepository(conn *Connection) *APIKeyRepository {
	return &APIKeyRepository{conn: conn}
}

// Create stores a new key hash for an account.
func (r *APIKeyRepository) Create(ctx context.Context, account shared.AccountID, prefix, hash string) error {
	query := `
		INSERT INTO api_keys (account, key_prefix, key_hash)
		VALUES ($1, $2, $3)
	`

	_, err := r.conn.Exec(ctx, query, account.String(), prefix, hash)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("postgres", "CreateAPIKey", shared.ErrAlreadyExists, "key prefix already in use")
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// FindByPrefix returns the active key with the given prefix.
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	query := `
		SELECT id, account, key_prefix, key_hash, created_at, revoked_at
		FROM api_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL
	`

	var (
		key     APIKey
		account string
	)
	err := r.conn.QueryRow(ctx, query, prefix).Scan(
		&key.ID,
		&account,
		&key.KeyPrefix,
		&key.KeyHash,
		&key.CreatedAt,
		&key.RevokedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "FindByPrefix", shared.ErrNotFound, "api key not found")
		}
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}

	key.Account = shared.AccountID(account)
	return &key, nil
}

// Revoke marks a key revoked. Revoked keys stop authenticating immediately.
func (r *APIKeyRepository) Revoke(ctx context.Context, prefix string) error {
	tag, err := r.conn.Exec(ctx,
		"UPDATE api_keys SET revoked_at = NOW() WHERE key_prefix = $1 AND revoked_at IS NULL",
		prefix,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "Revoke", shared.ErrNotFound, "api key not found")
	}
	return nil
}
