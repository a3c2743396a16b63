package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"time"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/email"
)

type ProfileUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName, location string) error
	SetEmail(ctx context.Context, userID, email string) error
	SetTimezone(ctx context.Context, userID, tz string) error
	DeleteUser(ctx context.Context, userID string) error
}

type ExportCaffeineStore interface {
	DatesForExport(ctx context.Context, userID string, ctype domain.DrinkType) ([]time.Time, error)
}

type ProfileMailer interface {
	SendEmailChange(ctx context.Context, toEmail, name, confirmURL string, validDays int) error
	SendDataExport(ctx context.Context, toEmail, name string, attachments []email.Attachment) error
}

type UserService struct {
	Users    ProfileUsersStore
	Actions  ActionsStore
	Caffeine ExportCaffeineStore
	Mailer   ProfileMailer
	// EmailChangeValidity is the confirmation link lifetime in days.
	EmailChangeValidity int
	// ConfirmURL turns an action code into the absolute link for the
	// email change mail.
	ConfirmURL func(code string) string
	Now        func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName, location string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	location = strings.TrimSpace(location)

	fields := map[string]string{}
	if len(firstName) > 50 {
		fields["first_name"] = "must be at most 50 characters"
	}
	if len(lastName) > 50 {
		fields["last_name"] = "must be at most 50 characters"
	}
	if len(location) > 128 {
		fields["location"] = "must be at most 128 characters"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}

	return s.Users.UpdateProfile(ctx, userID, firstName, lastName, location)
}

// SetTimezone validates the name against the zoneinfo database.
func (s *UserService) SetTimezone(ctx context.Context, userID, tz string) error {
	tz = strings.TrimSpace(tz)
	if _, err := time.LoadLocation(tz); err != nil || tz == "" {
		return domain.NewValidationError(map[string]string{"timezone": "unknown timezone"})
	}
	return s.Users.SetTimezone(ctx, userID, tz)
}

// RequestEmailChange records the wanted address in a single-use action and
// mails a confirmation link there. The account email only changes when the
// link is confirmed, so a typo cannot lock the user out. A new request
// replaces any outstanding one.
func (s *UserService) RequestEmailChange(ctx context.Context, user domain.User, newEmail string) error {
	newEmail = strings.TrimSpace(strings.ToLower(newEmail))
	if !strings.Contains(newEmail, "@") {
		return domain.NewValidationError(map[string]string{"email": "must be a valid email address"})
	}
	if newEmail == strings.ToLower(user.Email) {
		return nil
	}

	if err := s.Actions.DeleteActionsForUser(ctx, user.ID, domain.ActionChangeEmail); err != nil {
		return err
	}

	code, err := auth.NewActionCode()
	if err != nil {
		return err
	}
	validUntil := s.now().AddDate(0, 0, s.EmailChangeValidity)
	if _, err := s.Actions.CreateAction(ctx, user.ID, domain.ActionChangeEmail, code, newEmail, validUntil); err != nil {
		return err
	}

	return s.Mailer.SendEmailChange(ctx, newEmail, user.DisplayName(), s.ConfirmURL(code), s.EmailChangeValidity)
}

// ConfirmEmailChange consumes a confirmation code and applies the stored
// address. Unknown, expired or already-used codes report ErrNotFound.
func (s *UserService) ConfirmEmailChange(ctx context.Context, code string) (domain.User, error) {
	action, err := s.Actions.ClaimAction(ctx, code)
	if err != nil {
		return domain.User{}, err
	}
	if action.AType != domain.ActionChangeEmail || action.ValidUntil.Before(s.now()) {
		return domain.User{}, domain.ErrNotFound
	}

	if err := s.Users.SetEmail(ctx, action.UserID, action.Data); err != nil {
		return domain.User{}, err
	}
	return s.Users.GetUserByID(ctx, action.UserID)
}

// ExportData mails the user's complete consumption history as one CSV file
// per drink type.
func (s *UserService) ExportData(ctx context.Context, user domain.User) error {
	var attachments []email.Attachment
	for _, ctype := range []domain.DrinkType{domain.DrinkCoffee, domain.DrinkMate} {
		dates, err := s.Caffeine.DatesForExport(ctx, user.ID, ctype)
		if err != nil {
			return err
		}
		attachments = append(attachments, email.Attachment{
			Filename:    string(ctype) + ".csv",
			ContentType: "text/csv",
			Data:        exportCSV(dates),
		})
	}
	return s.Mailer.SendDataExport(ctx, user.Email, user.DisplayName(), attachments)
}

func exportCSV(dates []time.Time) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"date"})
	for _, d := range dates {
		_ = w.Write([]string{d.Format("2006-01-02 15:04:05")})
	}
	w.Flush()
	return buf.Bytes()
}

// DeleteAccount removes the user and everything attached to them.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	return s.Users.DeleteUser(ctx, userID)
}
