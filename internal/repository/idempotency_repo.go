package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealerops/incentive-engine/internal/db"
)

// IdempotencyResult holds the outcome of an atomic claim attempt.
type IdempotencyResult struct {
	// AlreadyExists is true when the key was already claimed.
	AlreadyExists bool
	// ResourceID is the resource_id associated with the key (existing or newly claimed).
	ResourceID uuid.UUID
}

// IdempotencyRepository handles atomic idempotency key operations.
type IdempotencyRepository struct {
	db db.DBTX
}

// NewIdempotencyRepository creates a new idempotency repository.
func NewIdempotencyRepository(conn db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: conn}
}

// Claim atomically claims an idempotency key for a resource. If the user
// already used the key for this resource type, it returns AlreadyExists=true
// with the original resource_id. The INSERT ... ON CONFLICT on the
// (user_id, key, resource_type) primary key makes concurrent claims safe.
func (r *IdempotencyRepository) Claim(
	ctx context.Context,
	userID uuid.UUID,
	key string,
	resourceType string,
	resourceID uuid.UUID,
) (*IdempotencyResult, error) {
	if key == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}

	query := `
		WITH inserted AS (
			INSERT INTO idempotency_keys (key, user_id, resource_type, resource_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, key, resource_type) DO NOTHING
			RETURNING resource_id, FALSE AS already_exists
		)
		SELECT resource_id, already_exists FROM inserted
		UNION ALL
		SELECT resource_id, TRUE AS already_exists
		FROM idempotency_keys
		WHERE user_id = $2 AND key = $1 AND resource_type = $3
		  AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	var result IdempotencyResult
	err := r.db.QueryRow(ctx, query, key, userID, resourceType, resourceID).Scan(
		&result.ResourceID,
		&result.AlreadyExists,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("unexpected empty result from idempotency claim")
		}
		return nil, err
	}

	return &result, nil
}

// CleanExpired removes expired idempotency keys.
func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
