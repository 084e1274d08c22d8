package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/collab-sessions/internal/persistence"
)

const grantColumns = `id, user_a, user_b, plan_id, role, active, created_at, updated_at`

// GrantRepository implements persistence.GrantRepository using SQLite.
type GrantRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

func NewGrantRepository(pool *ConnectionPool) *GrantRepository {
	return &GrantRepository{pool: pool, mapper: NewErrorMapper()}
}

// PutGrant inserts the grant, or updates role and active flag of the existing
// grant for the same pair and plan in either direction.
func (r *GrantRepository) PutGrant(ctx context.Context, grant persistence.CollaborationGrant) error {
	if strings.TrimSpace(grant.ID) == "" || grant.UserA == "" || grant.UserB == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM collaboration_grants
			WHERE ((user_a = ? AND user_b = ?) OR (user_a = ? AND user_b = ?))
			AND COALESCE(plan_id, '') = COALESCE(?, '')`,
			grant.UserA, grant.UserB, grant.UserB, grant.UserA, nullString(grant.PlanID),
		).Scan(&existingID)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx, `UPDATE collaboration_grants
				SET role = ?, active = ?, updated_at = ? WHERE id = ?`,
				grant.Role, boolInt(grant.Active), formatTime(grant.UpdatedAt), existingID)
			return r.mapper.MapError(err)
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `INSERT INTO collaboration_grants (`+grantColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				grant.ID, grant.UserA, grant.UserB, nullString(grant.PlanID), grant.Role,
				boolInt(grant.Active), formatTime(grant.CreatedAt), formatTime(grant.UpdatedAt))
			return r.mapper.MapError(err)
		default:
			return r.mapper.MapError(err)
		}
	})
}

// HasActiveGrant reports whether an active grant links the two users. A grant
// without a plan covers every plan.
func (r *GrantRepository) HasActiveGrant(ctx context.Context, userA, userB string, planID *string) (bool, error) {
	var exists int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM collaboration_grants
			WHERE active = 1
			AND ((user_a = ? AND user_b = ?) OR (user_a = ? AND user_b = ?))
			AND (? IS NULL OR plan_id IS NULL OR plan_id = ?)
		)`,
		userA, userB, userB, userA, nullString(planID), nullString(planID),
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

// ListGrantsForUser returns every grant naming userID on either side.
func (r *GrantRepository) ListGrantsForUser(ctx context.Context, userID string) ([]persistence.CollaborationGrant, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+grantColumns+` FROM collaboration_grants
		WHERE user_a = ? OR user_b = ? ORDER BY created_at ASC, id ASC`, userID, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var grants []persistence.CollaborationGrant
	for rows.Next() {
		var (
			g                    persistence.CollaborationGrant
			planID               sql.NullString
			active               int
			createdAt, updatedAt string
		)
		if err := rows.Scan(&g.ID, &g.UserA, &g.UserB, &planID, &g.Role, &active, &createdAt, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		g.PlanID = stringPtr(planID)
		g.Active = active != 0
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return grants, nil
}
