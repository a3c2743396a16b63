package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coffeestatsweb/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActionStore persists single-use capability codes for account activation
// and email changes.
type ActionStore struct {
	pool *pgxpool.Pool
}

func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

const actionCols = `id, user_id, code, atype, data, created, validuntil`

func scanAction(row userRowScanner) (domain.Action, error) {
	var (
		a          domain.Action
		idUUID     pgtype.UUID
		userIDUUID pgtype.UUID
	)
	err := row.Scan(&idUUID, &userIDUUID, &a.Code, &a.AType, &a.Data, &a.Created, &a.ValidUntil)
	if err != nil {
		return domain.Action{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.UserID = uuidOrEmpty(userIDUUID)
	return a, nil
}

func (s *ActionStore) CreateAction(ctx context.Context, userID string, atype domain.ActionType, code, data string, validUntil time.Time) (domain.Action, error) {
	const q = `
		INSERT INTO actions (user_id, atype, code, data, validuntil)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + actionCols

	a, err := scanAction(s.pool.QueryRow(ctx, q, userID, atype, code, data, validUntil))
	if err != nil {
		return domain.Action{}, fmt.Errorf("create action: %w", err)
	}
	return a, nil
}

// DeleteActionsForUser removes the user's outstanding codes of one type,
// so a re-request invalidates earlier mails.
func (s *ActionStore) DeleteActionsForUser(ctx context.Context, userID string, atype domain.ActionType) error {
	const q = `DELETE FROM actions WHERE user_id = $1 AND atype = $2`
	if _, err := s.pool.Exec(ctx, q, userID, atype); err != nil {
		return fmt.Errorf("delete actions for user: %w", err)
	}
	return nil
}

// ClaimAction atomically deletes the action with the given code and returns
// it. A second claim of the same code gets ErrNotFound, which makes the
// codes single use even under concurrent confirmation.
func (s *ActionStore) ClaimAction(ctx context.Context, code string) (domain.Action, error) {
	const q = `DELETE FROM actions WHERE code = $1 RETURNING ` + actionCols

	a, err := scanAction(s.pool.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Action{}, domain.ErrNotFound
		}
		return domain.Action{}, fmt.Errorf("claim action: %w", err)
	}
	return a, nil
}

// DeleteExpiredActions prunes codes whose validity window has passed.
func (s *ActionStore) DeleteExpiredActions(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM actions WHERE validuntil < $1`
	ct, err := s.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired actions: %w", err)
	}
	return ct.RowsAffected(), nil
}
