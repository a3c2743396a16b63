package service

import (
	"context"
	"fmt"
	"strings"

	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/email"
)

// EmailService renders and sends all transactional mail. Send defaults to
// email.SendSMTP and is swappable in tests.
type EmailService struct {
	SMTP        email.SMTPSettings
	FromEmail   string
	SiteName    string
	AdminEmails []string
	Send        func(email.SMTPSettings, email.Message) error
}

func (s *EmailService) send(toEmail, subject, body string, attachments []email.Attachment) error {
	send := s.Send
	if send == nil {
		send = email.SendSMTP
	}
	return send(s.SMTP, email.Message{
		FromName:    s.SiteName,
		FromEmail:   s.FromEmail,
		ToEmail:     toEmail,
		Subject:     subject,
		TextBody:    body,
		Attachments: attachments,
	})
}

func (s *EmailService) sendAdmins(subject, body string) error {
	var firstErr error
	for _, admin := range s.AdminEmails {
		if err := s.send(admin, subject, body, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *EmailService) SendActivation(ctx context.Context, toEmail, username, activationURL string, validDays int) error {
	subject := fmt.Sprintf("Activate your %s account", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", username),
		"",
		fmt.Sprintf("welcome to %s. Activate your account using this link:", s.SiteName),
		activationURL,
		"",
		fmt.Sprintf("The link is valid for %d days. If you did not register, you can ignore this email.", validDays),
	}, "\n")
	return s.send(toEmail, subject, body, nil)
}

func (s *EmailService) SendEmailChange(ctx context.Context, toEmail, name, confirmURL string, validDays int) error {
	subject := fmt.Sprintf("Confirm your new %s email address", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		"confirm your new email address using this link:",
		confirmURL,
		"",
		fmt.Sprintf("The link is valid for %d days. If you did not request this change, you can ignore this email.", validDays),
	}, "\n")
	return s.send(toEmail, subject, body, nil)
}

// SendRegistrationNotice tells the site operators about a new account.
func (s *EmailService) SendRegistrationNotice(ctx context.Context, username, userEmail string) error {
	subject := fmt.Sprintf("New user registered on %s", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("User %s <%s> just registered.", username, userEmail),
	}, "\n")
	return s.sendAdmins(subject, body)
}

// SendApplicationNotice tells the site operators about a client application
// waiting for review.
func (s *EmailService) SendApplicationNotice(ctx context.Context, app domain.Application, applicant domain.User) error {
	subject := fmt.Sprintf("New client application on %s", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("%s <%s> registered the client application %q.", applicant.Username, applicant.Email, app.Name),
		"",
		"Website: " + app.Website,
		"Description: " + app.Description,
		"",
		"Please review and approve or reject it in the admin interface.",
	}, "\n")
	return s.sendAdmins(subject, body)
}

func (s *EmailService) SendApplicationApproved(ctx context.Context, toEmail, name, appName string) error {
	subject := fmt.Sprintf("Your %s client application was approved", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		fmt.Sprintf("your client application %q was approved. You can start using its credentials now.", appName),
	}, "\n")
	return s.send(toEmail, subject, body, nil)
}

func (s *EmailService) SendApplicationRejected(ctx context.Context, toEmail, name, appName, reasoning string) error {
	subject := fmt.Sprintf("Your %s client application was rejected", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		fmt.Sprintf("your client application %q was rejected:", appName),
		"",
		reasoning,
		"",
		"You are welcome to submit a new application that addresses the points above.",
	}, "\n")
	return s.send(toEmail, subject, body, nil)
}

// SendDataExport delivers the requested CSV files as mail attachments.
func (s *EmailService) SendDataExport(ctx context.Context, toEmail, name string, attachments []email.Attachment) error {
	subject := fmt.Sprintf("Your %s data export", s.SiteName)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		"attached you find the caffeine data you requested.",
	}, "\n")
	return s.send(toEmail, subject, body, attachments)
}
