package webui

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/service"
)

func (a *app) base(title string, u *domain.User) baseViewData {
	return baseViewData{Site: a.siteName, Title: title, User: u}
}

func (a *app) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.currentUser(r); ok {
		http.Redirect(w, r, "/profile/", http.StatusFound)
		return
	}
	data := homeViewData{baseViewData: a.base(a.siteName, nil)}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	render(w, a.templates.home, http.StatusOK, data)
}

func (a *app) handleRegisterGet(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.currentUser(r); ok {
		http.Redirect(w, r, "/profile/", http.StatusFound)
		return
	}
	render(w, a.templates.register, http.StatusOK, registerViewData{baseViewData: a.base("Register", nil)})
}

func (a *app) handleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, a.templates.register, http.StatusBadRequest, registerViewData{baseViewData: a.base("Register", nil)})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	email := normalizeEmail(r.FormValue("email"))
	password := r.FormValue("password")
	password2 := r.FormValue("password2")

	data := registerViewData{baseViewData: a.base("Register", nil), Username: username, Email: email}

	if password != password2 {
		data.Error = "The passwords do not match."
		render(w, a.templates.register, http.StatusBadRequest, data)
		return
	}

	_, err := a.authSvc.Register(r.Context(), username, email, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			data.Error = "That username is already taken."
		case errors.Is(err, domain.ErrEmailTaken):
			data.Error = "That email address is already in use."
		case errors.Is(err, domain.ErrValidation):
			data.Error = validationMessage(err)
		default:
			a.logger.Error("webui: register failed", "err", err)
			data.Error = "Registration failed. Please try again later."
		}
		render(w, a.templates.register, http.StatusBadRequest, data)
		return
	}

	http.Redirect(w, r, "/auth/login/?notice=registered", http.StatusFound)
}

func (a *app) handleActivate(w http.ResponseWriter, r *http.Request) {
	_, err := a.authSvc.Activate(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.templates.renderError(w, http.StatusNotFound, a.base("Activation", nil), "This activation link is invalid or has expired.")
			return
		}
		a.logger.Error("webui: activation failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Activation", nil), "Activation failed. Please try again later.")
		return
	}
	http.Redirect(w, r, "/auth/login/?notice=activated", http.StatusFound)
}

func (a *app) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.currentUser(r); ok {
		http.Redirect(w, r, "/profile/", http.StatusFound)
		return
	}
	data := loginViewData{baseViewData: a.base("Login", nil), Next: safeNext(r.URL.Query().Get("next"))}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	render(w, a.templates.login, http.StatusOK, data)
}

func (a *app) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, a.templates.login, http.StatusBadRequest, loginViewData{baseViewData: a.base("Login", nil)})
		return
	}

	login := strings.TrimSpace(r.FormValue("login"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	data := loginViewData{baseViewData: a.base("Login", nil), Login: login, Next: next}

	if !a.loginLimiter.Allow(clientIP(r), time.Now()) {
		data.Error = "Too many login attempts. Please wait a few minutes."
		render(w, a.templates.login, http.StatusTooManyRequests, data)
		return
	}

	_, sessID, err := a.authSvc.Login(r.Context(), login, password, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			data.Error = "Invalid username or password."
			render(w, a.templates.login, http.StatusUnauthorized, data)
		case errors.Is(err, domain.ErrUserInactive):
			data.Error = "This account has not been activated yet. Please check your mail for the activation link."
			render(w, a.templates.login, http.StatusForbidden, data)
		default:
			a.logger.Error("webui: login failed", "err", err)
			data.Error = "Login failed. Please try again later."
			render(w, a.templates.login, http.StatusInternalServerError, data)
		}
		return
	}

	auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(sessID), a.sessionTTL, a.cookieSecure)
	if next == "" {
		next = "/profile/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, sessID, ok := a.currentUser(r); ok {
		_ = a.authSvc.Logout(r.Context(), sessID)
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *app) handleOwnProfile(w http.ResponseWriter, r *http.Request, u domain.User) {
	a.renderProfile(w, r, u, u.Username, "")
}

func (a *app) handleProfile(w http.ResponseWriter, r *http.Request) {
	var viewer domain.User
	if u, _, ok := a.currentUser(r); ok {
		viewer = u
	}
	a.renderProfile(w, r, viewer, r.PathValue("username"), "")
}

func (a *app) renderProfile(w http.ResponseWriter, r *http.Request, viewer domain.User, username, freqError string) {
	stats, err := a.caffeineSvc.Profile(r.Context(), viewer.ID, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.templates.renderError(w, http.StatusNotFound, a.base("Profile", userPtr(viewer)), "No such user.")
			return
		}
		a.logger.Error("webui: profile failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Profile", userPtr(viewer)), "Something went wrong.")
		return
	}

	data := profileViewData{
		baseViewData: a.base(stats.User.DisplayName(), userPtr(viewer)),
		Stats:        stats,
		FreqError:    freqError,
	}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	if stats.IsOwner {
		data.OnTheRun = "/ontherun/" + url.PathEscape(stats.User.Username) + "/" + url.PathEscape(stats.User.Token) + "/"
		data.NowLocal = localNow(stats.User.Timezone)
	}

	status := http.StatusOK
	if freqError != "" {
		status = http.StatusBadRequest
	}
	render(w, a.templates.profile, status, data)
}

func (a *app) handleSettingsGet(w http.ResponseWriter, r *http.Request, u domain.User) {
	data := settingsViewData{
		baseViewData: a.base("Settings", &u),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Location:     u.Location,
		Email:        u.Email,
		Token:        u.Token,
	}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	render(w, a.templates.settings, http.StatusOK, data)
}

// handleSettingsPost dispatches on the form field to keep profile, password
// and email changes on a single page like the original settings screen.
func (a *app) handleSettingsPost(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := r.ParseForm(); err != nil {
		a.renderSettingsError(w, r, u, "Invalid form.")
		return
	}

	switch r.FormValue("form") {
	case "profile":
		err := a.userSvc.UpdateProfile(r.Context(), u.ID, r.FormValue("first_name"), r.FormValue("last_name"), r.FormValue("location"))
		if err != nil {
			a.renderSettingsError(w, r, u, validationMessage(err))
			return
		}
		http.Redirect(w, r, "/settings/?notice=profile_saved", http.StatusFound)
	case "password":
		err := a.authSvc.ChangePassword(r.Context(), u.ID, r.FormValue("current_password"), r.FormValue("password"))
		if err != nil {
			a.renderSettingsError(w, r, u, validationMessage(err))
			return
		}
		// The change revoked every session, so issue a new one for this
		// browser before redirecting.
		sessID, err := a.authSvc.StartSession(r.Context(), u.ID, clientIP(r), r.UserAgent())
		if err != nil {
			http.Redirect(w, r, "/auth/login/?notice=password_changed", http.StatusFound)
			return
		}
		auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(sessID), a.sessionTTL, a.cookieSecure)
		http.Redirect(w, r, "/settings/?notice=password_changed", http.StatusFound)
	case "email":
		err := a.userSvc.RequestEmailChange(r.Context(), u, r.FormValue("email"))
		if err != nil {
			a.renderSettingsError(w, r, u, validationMessage(err))
			return
		}
		http.Redirect(w, r, "/settings/?notice=email_requested", http.StatusFound)
	default:
		a.renderSettingsError(w, r, u, "Unknown form.")
	}
}

func (a *app) renderSettingsError(w http.ResponseWriter, r *http.Request, u domain.User, msg string) {
	data := settingsViewData{
		baseViewData: a.base("Settings", &u),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Location:     u.Location,
		Email:        u.Email,
		Token:        u.Token,
	}
	data.Error = msg
	render(w, a.templates.settings, http.StatusBadRequest, data)
}

func (a *app) handleSelectTimezoneGet(w http.ResponseWriter, r *http.Request, u domain.User) {
	data := timezoneViewData{
		baseViewData: a.base("Select timezone", &u),
		Timezone:     u.Timezone,
		Next:         safeNext(r.URL.Query().Get("next")),
	}
	render(w, a.templates.timezone, http.StatusOK, data)
}

func (a *app) handleSelectTimezonePost(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/selecttimezone/", http.StatusFound)
		return
	}

	tz := r.FormValue("timezone")
	next := safeNext(r.FormValue("next"))

	if err := a.userSvc.SetTimezone(r.Context(), u.ID, tz); err != nil {
		data := timezoneViewData{
			baseViewData: a.base("Select timezone", &u),
			Timezone:     tz,
			Next:         next,
		}
		data.Error = validationMessage(err)
		render(w, a.templates.timezone, http.StatusBadRequest, data)
		return
	}

	if next == "" {
		next = "/profile/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (a *app) handleSubmitDrink(w http.ResponseWriter, r *http.Request, u domain.User) {
	ctype, ok := drinkTypeFromPath(r.URL.Path)
	if !ok {
		a.templates.renderError(w, http.StatusNotFound, a.base("Submit", &u), "Unknown drink.")
		return
	}
	if err := r.ParseForm(); err != nil {
		a.renderProfile(w, r, u, u.Username, "Invalid form.")
		return
	}

	date, err := parseDrinkTime(r.FormValue("date"), r.FormValue("time"), u.Timezone, time.Now())
	if err != nil {
		a.renderProfile(w, r, u, u.Username, "Invalid date or time.")
		return
	}

	if _, err := a.caffeineSvc.Submit(r.Context(), u, ctype, date); err != nil {
		var freqErr *domain.DrinkFrequencyError
		if errors.As(err, &freqErr) || errors.Is(err, domain.ErrValidation) {
			a.renderProfile(w, r, u, u.Username, validationMessage(err))
			return
		}
		a.logger.Error("webui: submit drink failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Submit", &u), "Something went wrong.")
		return
	}

	http.Redirect(w, r, "/profile/?notice=recorded", http.StatusFound)
}

func (a *app) handleOnTheRun(w http.ResponseWriter, r *http.Request) {
	username, token := r.PathValue("username"), r.PathValue("token")

	u, err := a.caffeineSvc.ResolveOnTheRun(r.Context(), username, token)
	if err != nil {
		a.templates.renderError(w, http.StatusNotFound, a.base("On the run", nil), "No such user or token.")
		return
	}

	data := onTheRunViewData{
		baseViewData: a.base("On the run", nil),
		Username:     u.Username,
		Token:        token,
		NowLocal:     localNow(u.Timezone),
	}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	render(w, a.templates.ontherun, http.StatusOK, data)
}

func (a *app) handleSubmitOnTheRun(w http.ResponseWriter, r *http.Request) {
	username, token := r.PathValue("username"), r.PathValue("token")

	ctype, ok := drinkTypeFromPath(r.URL.Path)
	if !ok {
		a.templates.renderError(w, http.StatusNotFound, a.base("Submit", nil), "Unknown drink.")
		return
	}

	u, err := a.caffeineSvc.ResolveOnTheRun(r.Context(), username, token)
	if err != nil {
		a.templates.renderError(w, http.StatusNotFound, a.base("On the run", nil), "No such user or token.")
		return
	}

	if err := r.ParseForm(); err != nil {
		a.templates.renderError(w, http.StatusBadRequest, a.base("On the run", nil), "Invalid form.")
		return
	}

	date, err := parseDrinkTime(r.FormValue("date"), r.FormValue("time"), u.Timezone, time.Now())
	if err != nil {
		a.templates.renderError(w, http.StatusBadRequest, a.base("On the run", nil), "Invalid date or time.")
		return
	}

	if _, err := a.caffeineSvc.Submit(r.Context(), u, ctype, date); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			data := onTheRunViewData{
				baseViewData: a.base("On the run", nil),
				Username:     u.Username,
				Token:        token,
				NowLocal:     localNow(u.Timezone),
			}
			data.Error = validationMessage(err)
			render(w, a.templates.ontherun, http.StatusBadRequest, data)
			return
		}
		a.logger.Error("webui: on-the-run submit failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("On the run", nil), "Something went wrong.")
		return
	}

	http.Redirect(w, r, "/ontherun/"+url.PathEscape(u.Username)+"/"+url.PathEscape(token)+"/?notice=recorded", http.StatusFound)
}

func (a *app) handleDeleteDrink(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := a.caffeineSvc.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.templates.renderError(w, http.StatusNotFound, a.base("Delete", &u), "No such entry.")
			return
		}
		a.logger.Error("webui: delete drink failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Delete", &u), "Something went wrong.")
		return
	}
	http.Redirect(w, r, "/profile/?notice=deleted", http.StatusFound)
}

// handleConfirmAction applies an email change code. Unknown or expired codes
// redirect home without detail.
func (a *app) handleConfirmAction(w http.ResponseWriter, r *http.Request) {
	if _, err := a.userSvc.ConfirmEmailChange(r.Context(), r.PathValue("code")); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.Error("webui: confirm action failed", "err", err)
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/?notice=email_changed", http.StatusFound)
}

func (a *app) handleExplore(w http.ResponseWriter, r *http.Request) {
	var viewer *domain.User
	if u, _, ok := a.currentUser(r); ok {
		viewer = &u
	}

	ed, err := a.caffeineSvc.Explore(r.Context())
	if err != nil {
		a.logger.Error("webui: explore failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Explore", viewer), "Something went wrong.")
		return
	}

	render(w, a.templates.explore, http.StatusOK, exploreViewData{baseViewData: a.base("Explore", viewer), Data: ed})
}

func (a *app) handleOverall(w http.ResponseWriter, r *http.Request) {
	var viewer *domain.User
	if u, _, ok := a.currentUser(r); ok {
		viewer = &u
	}

	os, err := a.caffeineSvc.Overall(r.Context())
	if err != nil {
		a.logger.Error("webui: overall failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Overall", viewer), "Something went wrong.")
		return
	}

	render(w, a.templates.overall, http.StatusOK, overallViewData{baseViewData: a.base("Overall", viewer), Stats: os})
}

func (a *app) handleExport(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := a.userSvc.ExportData(r.Context(), u); err != nil {
		a.logger.Error("webui: export failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Export", &u), "Export failed. Please try again later.")
		return
	}
	http.Redirect(w, r, "/settings/?notice=export_sent", http.StatusFound)
}

func (a *app) handleDeleteAccountGet(w http.ResponseWriter, r *http.Request, u domain.User) {
	render(w, a.templates.deleteAcct, http.StatusOK, a.base("Delete account", &u))
}

func (a *app) handleDeleteAccountPost(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := a.userSvc.DeleteAccount(r.Context(), u.ID); err != nil {
		a.logger.Error("webui: delete account failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Delete account", &u), "Something went wrong.")
		return
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	http.Redirect(w, r, "/?notice=account_deleted", http.StatusFound)
}

func (a *app) handleApplicationsList(w http.ResponseWriter, r *http.Request, u domain.User) {
	apps, err := a.appSvc.ListForUser(r.Context(), u.ID)
	if err != nil {
		a.logger.Error("webui: list applications failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Applications", &u), "Something went wrong.")
		return
	}

	data := applicationsViewData{baseViewData: a.base("Applications", &u), Applications: apps}
	data.Notice = mapNoticeCode(r.URL.Query().Get("notice"))
	render(w, a.templates.applications, http.StatusOK, data)
}

func (a *app) handleApplicationRegisterGet(w http.ResponseWriter, r *http.Request, u domain.User) {
	render(w, a.templates.appRegister, http.StatusOK, appRegisterViewData{baseViewData: a.base("Register application", &u)})
}

func (a *app) handleApplicationRegisterPost(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := r.ParseForm(); err != nil {
		render(w, a.templates.appRegister, http.StatusBadRequest, appRegisterViewData{baseViewData: a.base("Register application", &u)})
		return
	}

	in := service.RegisterApplicationInput{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		Website:      r.FormValue("website"),
		LogoURL:      r.FormValue("logo_url"),
		ClientType:   r.FormValue("client_type"),
		RedirectURIs: r.FormValue("redirect_uris"),
		Agree:        r.FormValue("agree") == "on",
	}

	if _, err := a.appSvc.Register(r.Context(), u, in); err != nil {
		data := appRegisterViewData{baseViewData: a.base("Register application", &u), Input: in}
		if errors.Is(err, domain.ErrValidation) {
			data.Error = validationMessage(err)
			render(w, a.templates.appRegister, http.StatusBadRequest, data)
			return
		}
		a.logger.Error("webui: register application failed", "err", err)
		data.Error = "Registration failed. Please try again later."
		render(w, a.templates.appRegister, http.StatusInternalServerError, data)
		return
	}

	http.Redirect(w, r, "/applications/?notice=application_submitted", http.StatusFound)
}

func (a *app) handleApplicationWithdraw(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := a.appSvc.Withdraw(r.Context(), u.ID, r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			a.templates.renderError(w, http.StatusNotFound, a.base("Applications", &u), "No such application.")
			return
		}
		a.logger.Error("webui: withdraw application failed", "err", err)
		a.templates.renderError(w, http.StatusInternalServerError, a.base("Applications", &u), "Something went wrong.")
		return
	}
	http.Redirect(w, r, "/applications/?notice=application_withdrawn", http.StatusFound)
}

func userPtr(u domain.User) *domain.User {
	if u.ID == "" {
		return nil
	}
	return &u
}

func mapNoticeCode(code string) string {
	switch code {
	case "registered":
		return "Welcome! Check your mail for the activation link."
	case "activated":
		return "Your account is active. You can log in now."
	case "recorded":
		return "Your drink was recorded."
	case "deleted":
		return "The entry was deleted."
	case "profile_saved":
		return "Your profile was saved."
	case "password_changed":
		return "Your password was changed."
	case "email_requested":
		return "Check your new mailbox for the confirmation link."
	case "email_changed":
		return "Your email address was changed."
	case "export_sent":
		return "Your data export is on its way to your mailbox."
	case "account_deleted":
		return "Your account was deleted. So long, and thanks for all the caffeine."
	case "application_submitted":
		return "Your application was submitted and is waiting for approval."
	case "application_withdrawn":
		return "The application was withdrawn."
	default:
		return ""
	}
}
