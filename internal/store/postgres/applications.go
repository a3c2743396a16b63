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

// ApplicationStore persists OAuth2 client registrations and their approval
// state.
type ApplicationStore struct {
	pool *pgxpool.Pool
}

func NewApplicationStore(pool *pgxpool.Pool) *ApplicationStore {
	return &ApplicationStore{pool: pool}
}

const applicationCols = `id, user_id, name, description, website, logo_url,
	client_id, client_secret, client_type, grant_type, redirect_uris,
	agree, approved, approved_by, approved_on, created`

func scanApplication(row userRowScanner) (domain.Application, error) {
	var (
		a          domain.Application
		idUUID     pgtype.UUID
		userIDUUID pgtype.UUID
		approvedBy pgtype.UUID
		approvedOn pgtype.Timestamptz
	)
	err := row.Scan(&idUUID, &userIDUUID, &a.Name, &a.Description, &a.Website,
		&a.LogoURL, &a.ClientID, &a.ClientSecret, &a.ClientType, &a.GrantType,
		&a.RedirectURIs, &a.Agree, &a.Approved, &approvedBy, &approvedOn, &a.Created)
	if err != nil {
		return domain.Application{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.UserID = uuidOrEmpty(userIDUUID)
	a.ApprovedBy = uuidOrEmpty(approvedBy)
	a.ApprovedOn = timestamptzPtr(approvedOn)
	return a, nil
}

func (s *ApplicationStore) CreateApplication(ctx context.Context, p domain.CreateApplicationParams) (domain.Application, error) {
	const q = `
		INSERT INTO oauth2_applications
			(user_id, name, description, website, logo_url, client_id,
			 client_secret, client_type, grant_type, redirect_uris, agree)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + applicationCols

	a, err := scanApplication(s.pool.QueryRow(ctx, q,
		p.UserID, p.Name, p.Description, p.Website, p.LogoURL, p.ClientID,
		p.ClientSecret, p.ClientType, p.GrantType, p.RedirectURIs, p.Agree))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Application{}, &domain.ValidationError{Fields: map[string]string{
				"client_id": "client id already registered",
			}}
		}
		return domain.Application{}, fmt.Errorf("create application: %w", err)
	}
	return a, nil
}

func (s *ApplicationStore) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	const q = `SELECT ` + applicationCols + ` FROM oauth2_applications WHERE id = $1`

	a, err := scanApplication(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Application{}, domain.ErrNotFound
		}
		return domain.Application{}, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (s *ApplicationStore) ListApplications(ctx context.Context) ([]domain.Application, error) {
	const q = `SELECT ` + applicationCols + ` FROM oauth2_applications ORDER BY created`
	return s.queryApplications(ctx, q)
}

func (s *ApplicationStore) ListApplicationsForUser(ctx context.Context, userID string) ([]domain.Application, error) {
	const q = `SELECT ` + applicationCols + ` FROM oauth2_applications WHERE user_id = $1 ORDER BY created`
	return s.queryApplications(ctx, q, userID)
}

func (s *ApplicationStore) queryApplications(ctx context.Context, q string, args ...any) ([]domain.Application, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	return out, nil
}

// UpdateApplicationDetails overwrites the reviewable fields, used when an
// admin amends an application during approval.
func (s *ApplicationStore) UpdateApplicationDetails(ctx context.Context, id, name, description, website, clientType, grantType string) error {
	const q = `
		UPDATE oauth2_applications
		SET name = $2, description = $3, website = $4, client_type = $5, grant_type = $6
		WHERE id = $1
	`
	ct, err := s.pool.Exec(ctx, q, id, name, description, website, clientType, grantType)
	if err != nil {
		return fmt.Errorf("update application details: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApproveApplication marks a pending application approved. Approving an
// already approved application returns ErrNotPending.
func (s *ApplicationStore) ApproveApplication(ctx context.Context, id, approverID string) (domain.Application, error) {
	const q = `
		UPDATE oauth2_applications
		SET approved = TRUE, approved_by = $2, approved_on = CURRENT_TIMESTAMP
		WHERE id = $1 AND NOT approved
		RETURNING ` + applicationCols

	a, err := scanApplication(s.pool.QueryRow(ctx, q, id, approverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetApplication(ctx, id); getErr != nil {
				return domain.Application{}, getErr
			}
			return domain.Application{}, domain.ErrNotPending
		}
		return domain.Application{}, fmt.Errorf("approve application: %w", err)
	}
	return a, nil
}

// DeleteApplication removes a registration, used both for rejection and for
// owners withdrawing their own applications.
func (s *ApplicationStore) DeleteApplication(ctx context.Context, id string) error {
	const q = `DELETE FROM oauth2_applications WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
