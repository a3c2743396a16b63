package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserInactive       = errors.New("user_inactive")
	ErrNotPending         = errors.New("application_not_pending")
	ErrValidation         = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// DrinkFrequencyError rejects a caffeine submission that falls within the
// minimum drink distance of an existing entry of the same type. It carries the
// conflicting entry's timestamp and timezone for display.
type DrinkFrequencyError struct {
	Drink    DrinkType
	Minutes  int
	At       time.Time
	Timezone string
}

func (e *DrinkFrequencyError) Error() string {
	msg := fmt.Sprintf("your last %s was less than %d minutes ago at %s",
		strings.ToLower(e.Drink.Label()), e.Minutes, e.At.Format("2006-01-02 15:04:05"))
	if e.Timezone != "" {
		msg += " " + e.Timezone
	}
	return msg
}

func (e *DrinkFrequencyError) Unwrap() error { return ErrValidation }
