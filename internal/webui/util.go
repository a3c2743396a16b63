package webui

import (
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"coffeestatsweb/internal/domain"
)

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return ""
}

func drinkTypeFromPath(path string) (domain.DrinkType, bool) {
	name, _, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok {
		return "", false
	}
	return domain.ParseDrinkType(name)
}

// parseDrinkTime combines the date and time form fields into a naive wall
// clock timestamp. Empty fields default to the current time in the user's
// timezone.
func parseDrinkTime(dateStr, timeStr, timezone string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	localNow := now.In(loc)

	if dateStr == "" && timeStr == "" {
		return time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
			localNow.Hour(), localNow.Minute(), localNow.Second(), 0, time.UTC), nil
	}

	if dateStr == "" {
		dateStr = localNow.Format("2006-01-02")
	}
	if timeStr == "" {
		timeStr = localNow.Format("15:04")
	}

	t, err := time.Parse("2006-01-02 15:04", dateStr+" "+timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func localNow(timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02 15:04")
}

// validationMessage flattens a validation error into one user-facing line.
func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, strings.ReplaceAll(f, "_", " ")+" "+verr.Fields[f])
		}
		return strings.Join(parts, ". ") + "."
	}

	var freqErr *domain.DrinkFrequencyError
	if errors.As(err, &freqErr) {
		return freqErr.Error()
	}
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	return "Invalid input."
}
