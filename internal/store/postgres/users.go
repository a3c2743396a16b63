package postgres

import (
	"context"
	"errors"
	"fmt"

	"coffeestatsweb/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userCols = `id, username, email, first_name, last_name, location, public, timezone, token, is_active, is_admin, date_joined, updated_at`

type userRowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row userRowScanner) (domain.User, error) {
	var (
		u      domain.User
		idUUID pgtype.UUID
	)
	err := row.Scan(
		&idUUID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Location,
		&u.Public,
		&u.Timezone,
		&u.Token,
		&u.IsActive,
		&u.IsAdmin,
		&u.DateJoined,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, p domain.CreateUserParams) (domain.User, error) {
	const q = `
		INSERT INTO users (username, email, password_hash, cryptsum, token, first_name, last_name, location, is_active, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userCols

	u, err := scanUser(s.pool.QueryRow(ctx, q,
		p.Username, p.Email, p.PasswordHash, p.Cryptsum, p.Token,
		p.FirstName, p.LastName, p.Location, p.IsActive, p.IsAdmin))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(username) = lower($1)`

	u, err := scanUser(s.pool.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetUserByLogin resolves a username or email address to the user row
// including both password digests, preferring an exact username match.
func (s *UsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithCredentials, error) {
	const q = `
		SELECT ` + userCols + `, password_hash, cryptsum
		FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(username) = lower($1)) DESC
		LIMIT 1
	`
	return s.getWithCredentials(ctx, q, login)
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithCredentials, error) {
	const q = `
		SELECT ` + userCols + `, password_hash, cryptsum
		FROM users
		WHERE lower(email) = lower($1)
		LIMIT 1
	`
	return s.getWithCredentials(ctx, q, email)
}

func (s *UsersStore) getWithCredentials(ctx context.Context, q, arg string) (domain.UserWithCredentials, error) {
	var (
		u      domain.UserWithCredentials
		idUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&idUUID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Location,
		&u.Public,
		&u.Timezone,
		&u.Token,
		&u.IsActive,
		&u.IsAdmin,
		&u.DateJoined,
		&u.UpdatedAt,
		&u.PasswordHash,
		&u.Cryptsum,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithCredentials{}, domain.ErrNotFound
		}
		return domain.UserWithCredentials{}, fmt.Errorf("get user with credentials: %w", err)
	}
	u.ID = uuidOrEmpty(idUUID)
	return u, nil
}

// GetUserByToken resolves an on-the-run credential pair. A wrong pair is
// indistinguishable from an unknown user.
func (s *UsersStore) GetUserByToken(ctx context.Context, username, token string) (domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(username) = lower($1) AND token = $2 AND is_active`

	u, err := scanUser(s.pool.QueryRow(ctx, q, username, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by token: %w", err)
	}
	return u, nil
}

func (s *UsersStore) ActivateUser(ctx context.Context, userID string) error {
	const q = `UPDATE users SET is_active = true, updated_at = now() WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID, firstName, lastName, location string) error {
	const q = `
		UPDATE users
		SET first_name = $2, last_name = $3, location = $4, updated_at = now()
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, userID, firstName, lastName, location)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetEmail(ctx context.Context, userID, email string) error {
	const q = `UPDATE users SET email = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, userID, email)
	if err != nil {
		return mapUserWriteError(err)
	}
	return nil
}

func (s *UsersStore) SetTimezone(ctx context.Context, userID, tz string) error {
	const q = `UPDATE users SET timezone = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, userID, tz)
	if err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

// MigrateLegacyPassword installs the primary hash and clears the legacy
// digest in one statement, so the legacy path can succeed at most once.
func (s *UsersStore) MigrateLegacyPassword(ctx context.Context, userID, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, cryptsum = '', updated_at = now()
		WHERE id = $1 AND cryptsum <> ''
	`
	ct, err := s.pool.Exec(ctx, q, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("migrate legacy password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUser removes the account and everything it owns. The foreign keys
// are RESTRICT; this is the one sanctioned cascade path.
func (s *UsersStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, q := range []string{
		`DELETE FROM caffeine WHERE user_id = $1`,
		`DELETE FROM actions WHERE user_id = $1`,
		`DELETE FROM sessions WHERE user_id = $1`,
		`UPDATE oauth2_applications SET approved_by = NULL WHERE approved_by = $1`,
		`DELETE FROM oauth2_applications WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *UsersStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + userCols + ` FROM users ORDER BY username LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// RandomUsers returns up to count random active public profiles with their
// per-drink totals, for the explore page and the v1 random-users endpoint.
func (s *UsersStore) RandomUsers(ctx context.Context, count int) ([]domain.UserCard, error) {
	if count <= 0 || count > 50 {
		count = 5
	}

	const q = `
		SELECT u.username, u.first_name, u.last_name, u.location, u.date_joined,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'coffee') AS coffees,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'mate') AS mate
		FROM users u
		WHERE u.is_active AND u.public
		ORDER BY RANDOM()
		LIMIT $1
	`
	return s.queryUserCards(ctx, q, count)
}

func (s *UsersStore) RecentlyJoined(ctx context.Context, count int) ([]domain.UserCard, error) {
	if count <= 0 || count > 50 {
		count = 5
	}

	const q = `
		SELECT u.username, u.first_name, u.last_name, u.location, u.date_joined,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'coffee') AS coffees,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'mate') AS mate
		FROM users u
		WHERE u.is_active AND u.public
		ORDER BY u.date_joined DESC
		LIMIT $1
	`
	return s.queryUserCards(ctx, q, count)
}

// LongestJoined returns the longest-registered active public users. When
// days > 0, only users with at least one drink in the trailing window
// qualify, so abandoned accounts drop off the list.
func (s *UsersStore) LongestJoined(ctx context.Context, count, days int) ([]domain.UserCard, error) {
	if count <= 0 || count > 50 {
		count = 5
	}

	if days > 0 {
		const q = `
			SELECT u.username, u.first_name, u.last_name, u.location, u.date_joined,
			       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'coffee') AS coffees,
			       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'mate') AS mate
			FROM users u
			WHERE u.is_active AND u.public
			  AND EXISTS (
			    SELECT c.id FROM caffeine c
			    WHERE c.user_id = u.id
			      AND c.date >= CURRENT_DATE - make_interval(days => $2)
			  )
			ORDER BY u.date_joined
			LIMIT $1
		`
		return s.queryUserCards(ctx, q, count, days)
	}

	const q = `
		SELECT u.username, u.first_name, u.last_name, u.location, u.date_joined,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'coffee') AS coffees,
		       (SELECT COUNT(c.id) FROM caffeine c WHERE c.user_id = u.id AND c.ctype = 'mate') AS mate
		FROM users u
		WHERE u.is_active AND u.public
		ORDER BY u.date_joined
		LIMIT $1
	`
	return s.queryUserCards(ctx, q, count)
}

func (s *UsersStore) queryUserCards(ctx context.Context, q string, args ...any) ([]domain.UserCard, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query user cards: %w", err)
	}
	defer rows.Close()

	var out []domain.UserCard
	for rows.Next() {
		var (
			card      domain.UserCard
			firstName string
			lastName  string
		)
		if err := rows.Scan(&card.Username, &firstName, &lastName, &card.Location, &card.DateJoined, &card.Coffees, &card.Mate); err != nil {
			return nil, fmt.Errorf("scan user card: %w", err)
		}
		card.Name = firstName
		if lastName != "" {
			if card.Name != "" {
				card.Name += " "
			}
			card.Name += lastName
		}
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query user cards: %w", err)
	}
	return out, nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq", "users_username_lower_idx":
			return domain.ErrUsernameTaken
		case "users_email_uq", "users_email_lower_idx":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("write user: %w", err)
}
