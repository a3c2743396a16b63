package service

import (
	"context"
	"strings"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
)

type ApplicationsStore interface {
	CreateApplication(ctx context.Context, p domain.CreateApplicationParams) (domain.Application, error)
	GetApplication(ctx context.Context, id string) (domain.Application, error)
	ListApplications(ctx context.Context) ([]domain.Application, error)
	ListApplicationsForUser(ctx context.Context, userID string) ([]domain.Application, error)
	UpdateApplicationDetails(ctx context.Context, id, name, description, website, clientType, grantType string) error
	ApproveApplication(ctx context.Context, id, approverID string) (domain.Application, error)
	DeleteApplication(ctx context.Context, id string) error
}

type ApplicationMailer interface {
	SendApplicationNotice(ctx context.Context, app domain.Application, applicant domain.User) error
	SendApplicationApproved(ctx context.Context, toEmail, name, appName string) error
	SendApplicationRejected(ctx context.Context, toEmail, name, appName, reasoning string) error
}

type ApplicantUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

// ApplicationService manages OAuth2 client registrations: users submit them,
// admins approve or reject.
type ApplicationService struct {
	Store  ApplicationsStore
	Users  ApplicantUsersStore
	Mailer ApplicationMailer
}

type RegisterApplicationInput struct {
	Name         string
	Description  string
	Website      string
	LogoURL      string
	ClientType   string
	GrantType    string
	RedirectURIs string
	Agree        bool
}

// Register stores a new pending application and notifies the operators.
func (s *ApplicationService) Register(ctx context.Context, applicant domain.User, in RegisterApplicationInput) (domain.Application, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Website = strings.TrimSpace(in.Website)

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if len(in.Name) > 255 {
		fields["name"] = "must be at most 255 characters"
	}
	if in.Website == "" {
		fields["website"] = "is required"
	}
	if !in.Agree {
		fields["agree"] = "you have to agree to the site rules"
	}
	switch in.ClientType {
	case "":
		in.ClientType = "confidential"
	case "confidential", "public":
	default:
		fields["client_type"] = "must be confidential or public"
	}
	if in.GrantType == "" {
		in.GrantType = "authorization-code"
	}
	if len(fields) > 0 {
		return domain.Application{}, domain.NewValidationError(fields)
	}

	clientID, clientSecret, err := auth.NewClientCredentials()
	if err != nil {
		return domain.Application{}, err
	}

	app, err := s.Store.CreateApplication(ctx, domain.CreateApplicationParams{
		UserID:       applicant.ID,
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		Website:      in.Website,
		LogoURL:      strings.TrimSpace(in.LogoURL),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		ClientType:   in.ClientType,
		GrantType:    in.GrantType,
		RedirectURIs: strings.TrimSpace(in.RedirectURIs),
		Agree:        in.Agree,
	})
	if err != nil {
		return domain.Application{}, err
	}

	// Operator notification is best effort.
	_ = s.Mailer.SendApplicationNotice(ctx, app, applicant)

	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, id string) (domain.Application, error) {
	return s.Store.GetApplication(ctx, id)
}

func (s *ApplicationService) List(ctx context.Context) ([]domain.Application, error) {
	return s.Store.ListApplications(ctx)
}

func (s *ApplicationService) ListForUser(ctx context.Context, userID string) ([]domain.Application, error) {
	return s.Store.ListApplicationsForUser(ctx, userID)
}

// ApplicationAmendments are admin edits applied during approval. Empty
// fields keep the submitted value.
type ApplicationAmendments struct {
	Name        string
	Description string
	Website     string
	ClientType  string
	GrantType   string
}

func (a ApplicationAmendments) isZero() bool {
	return a == ApplicationAmendments{}
}

// Approve marks a pending application approved and mails the applicant,
// optionally amending its details first. Approving twice reports
// ErrNotPending.
func (s *ApplicationService) Approve(ctx context.Context, id, approverID string, amend ApplicationAmendments) (domain.Application, error) {
	if !amend.isZero() {
		app, err := s.Store.GetApplication(ctx, id)
		if err != nil {
			return domain.Application{}, err
		}
		if app.Approved {
			return domain.Application{}, domain.ErrNotPending
		}
		name := app.Name
		if amend.Name != "" {
			name = strings.TrimSpace(amend.Name)
		}
		description := app.Description
		if amend.Description != "" {
			description = strings.TrimSpace(amend.Description)
		}
		website := app.Website
		if amend.Website != "" {
			website = strings.TrimSpace(amend.Website)
		}
		clientType := app.ClientType
		if amend.ClientType != "" {
			if amend.ClientType != "confidential" && amend.ClientType != "public" {
				return domain.Application{}, domain.NewValidationError(map[string]string{"client_type": "must be confidential or public"})
			}
			clientType = amend.ClientType
		}
		grantType := app.GrantType
		if amend.GrantType != "" {
			grantType = amend.GrantType
		}
		if err := s.Store.UpdateApplicationDetails(ctx, id, name, description, website, clientType, grantType); err != nil {
			return domain.Application{}, err
		}
	}

	app, err := s.Store.ApproveApplication(ctx, id, approverID)
	if err != nil {
		return domain.Application{}, err
	}

	applicant, err := s.Users.GetUserByID(ctx, app.UserID)
	if err == nil {
		_ = s.Mailer.SendApplicationApproved(ctx, applicant.Email, applicant.DisplayName(), app.Name)
	}

	return app, nil
}

// Reject deletes the application and mails the required reasoning to the
// applicant. Only pending applications can be rejected.
func (s *ApplicationService) Reject(ctx context.Context, id, reasoning string) error {
	reasoning = strings.TrimSpace(reasoning)
	if len(reasoning) < 10 || len(reasoning) > 4000 {
		return domain.NewValidationError(map[string]string{"reasoning": "must be between 10 and 4000 characters"})
	}

	app, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if app.Approved {
		return domain.ErrNotPending
	}

	applicant, err := s.Users.GetUserByID(ctx, app.UserID)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteApplication(ctx, id); err != nil {
		return err
	}

	_ = s.Mailer.SendApplicationRejected(ctx, applicant.Email, applicant.DisplayName(), app.Name, reasoning)
	return nil
}

// Withdraw lets the owner delete their own registration.
func (s *ApplicationService) Withdraw(ctx context.Context, ownerID, id string) error {
	app, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if app.UserID != ownerID {
		return domain.ErrForbidden
	}
	return s.Store.DeleteApplication(ctx, id)
}
