package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"coffeestatsweb/internal/domain"
)

// The v2 API is resource oriented: every representation carries the URLs of
// the resources it relates to, so clients navigate by link instead of
// building paths themselves.

const v2NaiveTimeFormat = "2006-01-02T15:04:05"

type v2User struct {
	URL       string `json:"url"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Location  string `json:"location"`
	Caffeine  string `json:"caffeine"`
}

type v2Caffeine struct {
	URL       string `json:"url"`
	User      string `json:"user"`
	Date      string `json:"date"`
	EntryTime string `json:"entrytime"`
	Timezone  string `json:"timezone"`
	CType     string `json:"ctype"`
}

func v2UserURL(r *http.Request, username string) string {
	return absoluteURL(r, "/api/v2/users/"+username+"/")
}

func v2UserView(r *http.Request, u domain.User) v2User {
	return v2User{
		URL:       v2UserURL(r, u.Username),
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Location:  u.Location,
		Caffeine:  absoluteURL(r, "/api/v2/users/"+u.Username+"/caffeine/"),
	}
}

func v2CaffeineView(r *http.Request, c domain.Caffeine, username string) v2Caffeine {
	return v2Caffeine{
		URL:       absoluteURL(r, "/api/v2/caffeine/"+c.ID+"/"),
		User:      v2UserURL(r, username),
		Date:      c.Date.Format(v2NaiveTimeFormat),
		EntryTime: c.EntryTime.UTC().Format(time.RFC3339),
		Timezone:  c.Timezone,
		CType:     string(c.CType),
	}
}

func queryInt(r *http.Request, name, fallback string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		raw = fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func (a *api) handleV2UsersList(w http.ResponseWriter, r *http.Request) {
	users, err := a.caffeineSvc.ListUsers(r.Context(), queryInt(r, "limit", "50"), queryInt(r, "offset", "0"))
	if err != nil {
		a.logger.Error("list users", "error", err)
		WriteDomainError(w, err)
		return
	}

	out := make([]v2User, 0, len(users))
	for _, u := range users {
		out = append(out, v2UserView(r, u))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleV2UsersGet(w http.ResponseWriter, r *http.Request) {
	u, err := a.caffeineSvc.GetUser(r.Context(), r.PathValue("username"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, v2UserView(r, u))
}

func (a *api) handleV2CaffeineList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.caffeineSvc.ListAll(r.Context(), queryInt(r, "limit", "50"), queryInt(r, "offset", "0"))
	if err != nil {
		a.logger.Error("list caffeine", "error", err)
		WriteDomainError(w, err)
		return
	}

	out := make([]v2Caffeine, 0, len(entries))
	for _, e := range entries {
		out = append(out, v2CaffeineView(r, e.Caffeine, e.Username))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleV2CaffeineGet(w http.ResponseWriter, r *http.Request) {
	e, err := a.caffeineSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, v2CaffeineView(r, e.Caffeine, e.Username))
}

func (a *api) handleV2UserCaffeineList(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	u, entries, err := a.caffeineSvc.ListForUsername(r.Context(), username, queryInt(r, "limit", "50"), queryInt(r, "offset", "0"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]v2Caffeine, 0, len(entries))
	for _, e := range entries {
		out = append(out, v2CaffeineView(r, e, u.Username))
	}
	WriteJSON(w, http.StatusOK, out)
}

type v2CreateCaffeineRequest struct {
	CType string `json:"ctype"`
	Date  string `json:"date"`
}

func (a *api) handleV2UserCaffeineCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	if u.Username != r.PathValue("username") {
		WriteDomainError(w, domain.ErrForbidden)
		return
	}

	var req v2CreateCaffeineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctype, ok := domain.ParseDrinkType(req.CType)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_ctype", "ctype must be coffee or mate")
		return
	}
	date, err := time.ParseInLocation(v2NaiveTimeFormat, req.Date, time.UTC)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-mm-ddTHH:MM:SS")
		return
	}

	c, err := a.caffeineSvc.Submit(r.Context(), u, ctype, date)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, v2CaffeineView(r, c, u.Username))
}

func (a *api) handleV2UserCaffeineGet(w http.ResponseWriter, r *http.Request) {
	e, err := a.caffeineSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if e.Username != r.PathValue("username") {
		WriteDomainError(w, domain.ErrNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, v2CaffeineView(r, e.Caffeine, e.Username))
}

func (a *api) handleV2UserCaffeineDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	if u.Username != r.PathValue("username") {
		WriteDomainError(w, domain.ErrForbidden)
		return
	}

	if err := a.caffeineSvc.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
