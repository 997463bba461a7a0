package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// ChangeListener is notified after any credential mutation so cached
// provider instances can be dropped.
type ChangeListener func(providerID, userID string)

// CredentialRepository stores per-user provider credentials. Writes fan
// out to registered change listeners after the row is committed.
type CredentialRepository struct {
	db *sqlx.DB

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewCredentialRepository creates a credential repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// OnChange registers a listener invoked after every credential mutation.
func (r *CredentialRepository) OnChange(fn func(providerID, userID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *CredentialRepository) notify(providerID, userID string) {
	r.mu.RLock()
	listeners := make([]ChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(providerID, userID)
	}
}

// GetActive returns the user's active credential for a provider.
func (r *CredentialRepository) GetActive(ctx context.Context, providerID, userID string) (*domain.Credential, error) {
	query := `
		SELECT id, provider_id, user_id, secret, active, created_at, updated_at
		FROM credentials
		WHERE provider_id = $1 AND user_id = $2 AND active = TRUE`

	var cred domain.Credential
	if err := r.db.GetContext(ctx, &cred, query, providerID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get active credential: %w", err)
	}
	return &cred, nil
}

// Upsert stores a credential, replacing any existing one for the same
// provider and user, and notifies listeners.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO credentials (id, provider_id, user_id, secret, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (provider_id, user_id)
		DO UPDATE SET secret = EXCLUDED.secret, active = TRUE, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, cred.ID, cred.ProviderID, cred.UserID, cred.Secret); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}

	r.notify(cred.ProviderID, cred.UserID)
	return nil
}

// Deactivate disables a credential without removing it.
func (r *CredentialRepository) Deactivate(ctx context.Context, providerID, userID string) error {
	query := `
		UPDATE credentials
		SET active = FALSE, updated_at = NOW()
		WHERE provider_id = $1 AND user_id = $2 AND active = TRUE`

	result, err := r.db.ExecContext(ctx, query, providerID, userID)
	if err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate credential: get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	r.notify(providerID, userID)
	return nil
}

// Delete removes a credential entirely.
func (r *CredentialRepository) Delete(ctx context.Context, providerID, userID string) error {
	query := `DELETE FROM credentials WHERE provider_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, providerID, userID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	r.notify(providerID, userID)
	return nil
}
