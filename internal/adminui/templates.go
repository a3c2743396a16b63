package adminui

import (
	"fmt"
	"html/template"
	"net/http"
	"time"
)

type templates struct {
	login     *template.Template
	dashboard *template.Template
	users     *template.Template
	apps      *template.Template
	appDetail *template.Template
	errorT    *template.Template
}

type viewData struct {
	Title  string
	Error  string
	Notice string
}

type dashboardViewData struct {
	viewData
	PendingApplications int
	TotalApplications   int
	TotalUsers          int
}

type usersViewData struct {
	viewData
	Users []userRow
}

type userRow struct {
	ID       string
	Username string
	Email    string
	Status   string
	Admin    bool
	Joined   time.Time
}

type appsViewData struct {
	viewData
	Applications []appRow
}

type appRow struct {
	ID      string
	Name    string
	Website string
	Status  string
	Created time.Time
}

type appDetailViewData struct {
	viewData
	App appDetail
}

type appDetail struct {
	ID           string
	Name         string
	Description  string
	Website      string
	LogoURL      string
	ClientType   string
	GrantType    string
	RedirectURIs string
	Status       string
	Created      time.Time
}

func parseTemplates() (*templates, error) {
	funcs := template.FuncMap{
		"datefmt": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}

	parse := func(files ...string) (*template.Template, error) {
		t, err := template.New("base").Funcs(funcs).ParseFS(assets, files...)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	login, err := parse("templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login: %w", err)
	}
	dashboard, err := parse("templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard: %w", err)
	}
	users, err := parse("templates/layout.html", "templates/users.html")
	if err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}
	apps, err := parse("templates/layout.html", "templates/applications.html")
	if err != nil {
		return nil, fmt.Errorf("parse applications: %w", err)
	}
	appDetail, err := parse("templates/layout.html", "templates/application_detail.html")
	if err != nil {
		return nil, fmt.Errorf("parse application detail: %w", err)
	}
	errorT, err := parse("templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &templates{
		login:     login,
		dashboard: dashboard,
		users:     users,
		apps:      apps,
		appDetail: appDetail,
		errorT:    errorT,
	}, nil
}

func render(w http.ResponseWriter, t *template.Template, name string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = t.ExecuteTemplate(w, name, data)
}

func (t *templates) renderLogin(w http.ResponseWriter, status int, data any) {
	render(w, t.login, "login.html", status, data)
}

func (t *templates) renderDashboard(w http.ResponseWriter, status int, data any) {
	render(w, t.dashboard, "layout.html", status, data)
}

func (t *templates) renderUsers(w http.ResponseWriter, status int, data any) {
	render(w, t.users, "layout.html", status, data)
}

func (t *templates) renderApplications(w http.ResponseWriter, status int, data any) {
	render(w, t.apps, "layout.html", status, data)
}

func (t *templates) renderApplicationDetail(w http.ResponseWriter, status int, data any) {
	render(w, t.appDetail, "layout.html", status, data)
}

func (t *templates) renderError(w http.ResponseWriter, status int, title, msg string) {
	render(w, t.errorT, "error.html", status, viewData{Title: title, Error: msg})
}
