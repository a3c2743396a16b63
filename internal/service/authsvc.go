package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, p domain.CreateUserParams) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.UserWithCredentials, error)
	ActivateUser(ctx context.Context, userID string) error
	MigrateLegacyPassword(ctx context.Context, userID, passwordHash string) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
	RevokeSessionsForUser(ctx context.Context, userID string, when time.Time) error
}

type ActionsStore interface {
	CreateAction(ctx context.Context, userID string, atype domain.ActionType, code, data string, validUntil time.Time) (domain.Action, error)
	DeleteActionsForUser(ctx context.Context, userID string, atype domain.ActionType) error
	ClaimAction(ctx context.Context, code string) (domain.Action, error)
}

type ActivationMailer interface {
	SendActivation(ctx context.Context, toEmail, username, activationURL string, validDays int) error
	SendRegistrationNotice(ctx context.Context, username, userEmail string) error
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,30}$`)

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	Actions    ActionsStore
	Mailer     ActivationMailer
	SessionTTL time.Duration
	// ActivationValidity is the activation link lifetime in days.
	ActivationValidity int
	// ActivationURL turns an action code into the absolute link for the
	// activation mail.
	ActivationURL func(code string) string
	Now           func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Register creates an inactive account and mails an activation link. The
// account cannot log in until the link is used.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	fields := map[string]string{}
	if !usernameRe.MatchString(username) {
		fields["username"] = "must be 2 to 30 letters, digits, dashes or underscores"
	}
	if !strings.Contains(email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if len(password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	token, err := auth.NewAPIToken()
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Users.CreateUser(ctx, domain.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Token:        token,
	})
	if err != nil {
		return domain.User{}, err
	}

	code, err := auth.NewActionCode()
	if err != nil {
		return domain.User{}, err
	}
	validUntil := s.now().AddDate(0, 0, s.ActivationValidity)
	if _, err := s.Actions.CreateAction(ctx, u.ID, domain.ActionActivate, code, "", validUntil); err != nil {
		return domain.User{}, err
	}

	if err := s.Mailer.SendActivation(ctx, u.Email, u.Username, s.ActivationURL(code), s.ActivationValidity); err != nil {
		return domain.User{}, err
	}
	// Operator notification is best effort.
	_ = s.Mailer.SendRegistrationNotice(ctx, u.Username, u.Email)

	return u, nil
}

// Activate consumes an activation code and enables the account. Expired or
// unknown codes report ErrNotFound.
func (s *AuthService) Activate(ctx context.Context, code string) (domain.User, error) {
	action, err := s.Actions.ClaimAction(ctx, code)
	if err != nil {
		return domain.User{}, err
	}
	if action.AType != domain.ActionActivate || action.ValidUntil.Before(s.now()) {
		return domain.User{}, domain.ErrNotFound
	}

	if err := s.Users.ActivateUser(ctx, action.UserID); err != nil {
		return domain.User{}, err
	}
	return s.Users.GetUserByID(ctx, action.UserID)
}

// Login accepts username or email. Accounts imported from the legacy site
// carry only a bcrypt digest; the first successful login verifies against
// that digest and upgrades the account to an argon2id hash.
func (s *AuthService) Login(ctx context.Context, login, password, ip, userAgent string) (domain.User, string, error) {
	login = strings.TrimSpace(login)

	u, err := s.Users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	ok, err := s.verifyPassword(ctx, u, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if !u.IsActive {
		return domain.User{}, "", domain.ErrUserInactive
	}

	sessID, err := s.StartSession(ctx, u.ID, ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	return u.User, sessID, nil
}

// StartSession issues a session for an already-verified user.
func (s *AuthService) StartSession(ctx context.Context, userID, ip, userAgent string) (string, error) {
	return s.Sessions.CreateSession(ctx, userID, s.now().Add(s.SessionTTL), ip, userAgent)
}

func (s *AuthService) verifyPassword(ctx context.Context, u domain.UserWithCredentials, password string) (bool, error) {
	if u.PasswordHash != "" {
		return auth.VerifyPassword(u.PasswordHash, password)
	}
	if u.Cryptsum == "" {
		return false, nil
	}

	ok, err := auth.VerifyLegacyPassword(u.Cryptsum, password)
	if err != nil || !ok {
		return ok, err
	}

	newHash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := s.Users.MigrateLegacyPassword(ctx, u.ID, newHash); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrForbidden
	}

	return u, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	cred, err := s.Users.GetUserByLogin(ctx, u.Username)
	if err != nil {
		return err
	}

	ok, err := s.verifyPassword(ctx, cred, current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError(map[string]string{"current_password": "does not match"})
	}
	if len(newPassword) < 8 {
		return domain.NewValidationError(map[string]string{"password": "must be at least 8 characters"})
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Users.SetPasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	// Existing sessions stop working; the caller re-issues one for the
	// current browser.
	return s.Sessions.RevokeSessionsForUser(ctx, userID, s.now())
}
