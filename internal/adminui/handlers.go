package adminui

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/service"
)

func (a *app) handleDashboard(w http.ResponseWriter, r *http.Request, _ domain.User) {
	data := dashboardViewData{viewData: viewData{Title: "Admin", Notice: noticeMessage(r)}}

	if apps, err := a.appSvc.List(r.Context()); err == nil {
		data.TotalApplications = len(apps)
		for _, app := range apps {
			if !app.Approved {
				data.PendingApplications++
			}
		}
	}
	if users, err := a.adminSvc.ListUsers(r.Context(), 1000, 0); err == nil {
		data.TotalUsers = len(users)
	}

	a.templates.renderDashboard(w, http.StatusOK, data)
}

func (a *app) handleLoginGet(w http.ResponseWriter, _ *http.Request) {
	a.templates.renderLogin(w, http.StatusOK, viewData{Title: "Admin Login"})
}

func (a *app) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.templates.renderLogin(w, http.StatusBadRequest, viewData{Title: "Admin Login", Error: "Invalid form"})
		return
	}

	login := strings.TrimSpace(r.Form.Get("login"))
	password := r.Form.Get("password")
	if login == "" || password == "" {
		a.templates.renderLogin(w, http.StatusBadRequest, viewData{Title: "Admin Login", Error: "Login and password are required"})
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), login, password, clientIP(r), r.UserAgent())
	if err != nil {
		a.templates.renderLogin(w, http.StatusUnauthorized, viewData{Title: "Admin Login", Error: "Invalid credentials"})
		return
	}
	if !u.IsAdmin {
		_ = a.authSvc.Logout(r.Context(), sessID)
		a.templates.renderLogin(w, http.StatusForbidden, viewData{Title: "Admin Login", Error: "Not allowed"})
		return
	}

	cookieValue := a.cookieCodec.EncodeSessionID(sessID)
	auth.SetSessionCookie(w, cookieValue, a.sessionTTL, a.cookieSecure)
	http.Redirect(w, r, "/admin/", http.StatusFound)
}

func (a *app) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	_, sessID, ok := a.currentUser(r)
	if ok {
		_ = a.authSvc.Logout(r.Context(), sessID)
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

func (a *app) handleUsersList(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := a.adminSvc.ListUsers(r.Context(), 100, 0)
	if err != nil {
		a.templates.renderError(w, http.StatusInternalServerError, "Error", "Failed to load users")
		return
	}
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "pending activation"
		}
		rows = append(rows, userRow{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Status:   status,
			Admin:    u.IsAdmin,
			Joined:   u.DateJoined,
		})
	}
	a.templates.renderUsers(w, http.StatusOK, usersViewData{viewData: viewData{Title: "Users"}, Users: rows})
}

func (a *app) handleApplicationsList(w http.ResponseWriter, r *http.Request, _ domain.User) {
	apps, err := a.appSvc.List(r.Context())
	if err != nil {
		a.templates.renderError(w, http.StatusInternalServerError, "Error", "Failed to load applications")
		return
	}
	rows := make([]appRow, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, appRow{
			ID:      app.ID,
			Name:    app.Name,
			Website: app.Website,
			Status:  appStatus(app),
			Created: app.Created,
		})
	}
	a.templates.renderApplications(w, http.StatusOK, appsViewData{
		viewData:     viewData{Title: "Applications", Notice: noticeMessage(r)},
		Applications: rows,
	})
}

func (a *app) handleApplicationDetail(w http.ResponseWriter, r *http.Request, _ domain.User) {
	app, err := a.appSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.templates.renderError(w, http.StatusNotFound, "Not Found", "No such application.")
		return
	}
	a.templates.renderApplicationDetail(w, http.StatusOK, appDetailViewData{
		viewData: viewData{Title: app.Name, Error: errorMessage(r)},
		App: appDetail{
			ID:           app.ID,
			Name:         app.Name,
			Description:  app.Description,
			Website:      app.Website,
			LogoURL:      app.LogoURL,
			ClientType:   app.ClientType,
			GrantType:    app.GrantType,
			RedirectURIs: app.RedirectURIs,
			Status:       appStatus(app),
			Created:      app.Created,
		},
	})
}

// handleApplicationApprove approves a pending application, optionally with
// amendments from the review form. Blank form fields keep the submitted
// values.
func (a *app) handleApplicationApprove(w http.ResponseWriter, r *http.Request, admin domain.User) {
	if err := r.ParseForm(); err != nil {
		a.templates.renderError(w, http.StatusBadRequest, "Error", "Invalid form")
		return
	}

	id := r.PathValue("id")
	amend := service.ApplicationAmendments{
		Name:        strings.TrimSpace(r.Form.Get("name")),
		Description: strings.TrimSpace(r.Form.Get("description")),
		Website:     strings.TrimSpace(r.Form.Get("website")),
		ClientType:  strings.TrimSpace(r.Form.Get("client_type")),
		GrantType:   strings.TrimSpace(r.Form.Get("grant_type")),
	}

	if _, err := a.appSvc.Approve(r.Context(), id, admin.ID, amend); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.templates.renderError(w, http.StatusNotFound, "Not Found", "No such application.")
		case errors.Is(err, domain.ErrNotPending):
			http.Redirect(w, r, "/admin/applications/"+id+"?error=not_pending", http.StatusFound)
		case errors.Is(err, domain.ErrValidation):
			http.Redirect(w, r, "/admin/applications/"+id+"?error=invalid_amendments", http.StatusFound)
		default:
			a.templates.renderError(w, http.StatusInternalServerError, "Error", "Approval failed")
		}
		return
	}
	http.Redirect(w, r, "/admin/applications?notice=approved", http.StatusFound)
}

func (a *app) handleApplicationReject(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := r.ParseForm(); err != nil {
		a.templates.renderError(w, http.StatusBadRequest, "Error", "Invalid form")
		return
	}

	id := r.PathValue("id")
	if err := a.appSvc.Reject(r.Context(), id, r.Form.Get("reasoning")); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.templates.renderError(w, http.StatusNotFound, "Not Found", "No such application.")
		case errors.Is(err, domain.ErrNotPending):
			http.Redirect(w, r, "/admin/applications/"+id+"?error=not_pending", http.StatusFound)
		case errors.Is(err, domain.ErrValidation):
			http.Redirect(w, r, "/admin/applications/"+id+"?error=reasoning", http.StatusFound)
		default:
			a.templates.renderError(w, http.StatusInternalServerError, "Error", "Rejection failed")
		}
		return
	}
	http.Redirect(w, r, "/admin/applications?notice=rejected", http.StatusFound)
}

func appStatus(app domain.Application) string {
	if app.Approved {
		return "approved"
	}
	return "pending"
}

func noticeMessage(r *http.Request) string {
	switch r.URL.Query().Get("notice") {
	case "approved":
		return "Application approved."
	case "rejected":
		return "Application rejected and removed."
	default:
		return ""
	}
}

func errorMessage(r *http.Request) string {
	switch r.URL.Query().Get("error") {
	case "not_pending":
		return "This application has already been approved."
	case "reasoning":
		return "Rejection reasoning must be between 10 and 4000 characters."
	case "invalid_amendments":
		return "Invalid amendment values."
	default:
		return ""
	}
}

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
