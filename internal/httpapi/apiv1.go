package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coffeestatsweb/internal/domain"
)

// v1 error and warning message texts. Clients match on these strings, so
// they are part of the API contract.
const (
	v1ErrAuthRequired       = "API operations require authentication"
	v1ErrNoUsername         = "no username provided"
	v1ErrNoToken            = "no API token provided"
	v1ErrInvalidCredentials = "API query with invalid credentials"
	v1ErrMissingBeverage    = "no beverage submitted"
	v1ErrInvalidBeverage    = "invalid beverage submitted"
	v1ErrMissingTime        = "no time submitted"
	v1ErrInvalidTime        = "invalid time submitted"
	v1WarnTimezoneNotSet    = "no timezone set, assuming UTC"
)

const defaultRandomUserCount = 5

// v1Envelope is the classic API response shape. Error and Warning are
// message lists; both are omitted when empty.
type v1Envelope struct {
	Success bool     `json:"success"`
	Error   []string `json:"error,omitempty"`
	Warning []string `json:"warning,omitempty"`
}

func writeV1Error(w http.ResponseWriter, status int, errs, warnings []string) {
	WriteJSON(w, status, v1Envelope{Success: false, Error: errs, Warning: warnings})
}

type v1Handler func(w http.ResponseWriter, r *http.Request, u domain.User, warnings []string)

// apiTokenAuth implements the POST-body credential scheme: the form fields
// "u" (username) and "t" (API token) authenticate the request. Missing
// fields are a 403, a pair that does not match an active user is a 400.
// Users without a timezone pass but collect a warning for the response.
func (a *api) apiTokenAuth(next v1Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeV1Error(w, http.StatusBadRequest, []string{"invalid form data"}, nil)
			return
		}

		username := r.PostFormValue("u")
		token := r.PostFormValue("t")
		if username == "" || token == "" {
			errs := []string{}
			if username == "" {
				errs = append(errs, v1ErrNoUsername)
			}
			if token == "" {
				errs = append(errs, v1ErrNoToken)
			}
			errs = append(errs, v1ErrAuthRequired)
			writeV1Error(w, http.StatusForbidden, errs, nil)
			return
		}

		u, err := a.caffeineSvc.ResolveOnTheRun(r.Context(), username, token)
		if err != nil {
			writeV1Error(w, http.StatusBadRequest, []string{v1ErrInvalidCredentials}, nil)
			return
		}

		var warnings []string
		if u.Timezone == "" {
			warnings = append(warnings, v1WarnTimezoneNotSet)
		}
		next(w, r, u, warnings)
	}
}

type v1UserCard struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Profile  string `json:"profile"`
	Coffees  int    `json:"coffees"`
	Mate     int    `json:"mate"`
}

func (a *api) handleV1RandomUsers(w http.ResponseWriter, r *http.Request, _ domain.User, _ []string) {
	count := defaultRandomUserCount
	if raw := r.PostFormValue("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeV1Error(w, http.StatusBadRequest, []string{"invalid parameter count"}, nil)
			return
		}
		count = n
	}

	cards, err := a.caffeineSvc.RandomUsers(r.Context(), count)
	if err != nil {
		a.logger.Error("random users", "error", err)
		writeV1Error(w, http.StatusInternalServerError, []string{"internal error"}, nil)
		return
	}

	out := make([]v1UserCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, v1UserCard{
			Username: c.Username,
			Name:     c.Name,
			Location: c.Location,
			Profile:  absoluteURL(r, "/profile/"+c.Username+"/"),
			Coffees:  c.Coffees,
			Mate:     c.Mate,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleV1AddDrink(w http.ResponseWriter, r *http.Request, u domain.User, warnings []string) {
	var errs []string

	beverage := r.PostFormValue("beverage")
	ctype, ctypeOK := domain.ParseDrinkType(beverage)
	switch {
	case beverage == "":
		errs = append(errs, v1ErrMissingBeverage)
	case !ctypeOK:
		errs = append(errs, v1ErrInvalidBeverage)
	}

	var date time.Time
	rawTime := r.PostFormValue("time")
	if rawTime == "" {
		errs = append(errs, v1ErrMissingTime)
	} else {
		var err error
		date, err = parseV1Time(rawTime)
		if err != nil {
			errs = append(errs, v1ErrInvalidTime)
		}
	}

	if len(errs) > 0 {
		writeV1Error(w, http.StatusBadRequest, errs, warnings)
		return
	}

	// Users without a timezone still get to submit; the naive timestamp is
	// taken as UTC and the auth layer already queued a warning.
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}

	if _, err := a.caffeineSvc.Submit(r.Context(), u, ctype, date); err != nil {
		var freqErr *domain.DrinkFrequencyError
		var valErr *domain.ValidationError
		switch {
		case errors.As(err, &freqErr):
			writeV1Error(w, http.StatusBadRequest, []string{freqErr.Error()}, warnings)
		case errors.As(err, &valErr):
			for _, field := range []string{"date", "timezone"} {
				if msg, ok := valErr.Fields[field]; ok {
					errs = append(errs, msg)
				}
			}
			if len(errs) == 0 {
				errs = append(errs, "invalid input")
			}
			writeV1Error(w, http.StatusBadRequest, errs, warnings)
		default:
			a.logger.Error("add drink", "error", err)
			writeV1Error(w, http.StatusInternalServerError, []string{"internal error"}, warnings)
		}
		return
	}

	WriteJSON(w, http.StatusOK, v1Envelope{Success: true, Warning: warnings})
}

// parseV1Time accepts "YYYY-mm-dd HH:MM" with optional seconds, as a naive
// wall clock value.
func parseV1Time(raw string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.UTC)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04", raw, time.UTC)
	}
	return t, err
}

func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
