package webui

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/service"
)

type templates struct {
	home         *template.Template
	login        *template.Template
	register     *template.Template
	profile      *template.Template
	settings     *template.Template
	timezone     *template.Template
	ontherun     *template.Template
	explore      *template.Template
	overall      *template.Template
	applications *template.Template
	appRegister  *template.Template
	deleteAcct   *template.Template
	errorT       *template.Template
}

// baseViewData is embedded in every page's view data. User is nil for
// anonymous visitors.
type baseViewData struct {
	Site   string
	Title  string
	User   *domain.User
	Error  string
	Notice string
}

type homeViewData struct {
	baseViewData
}

// seriesView pairs a caption with a histogram for the shared timeseries
// template block.
type seriesView struct {
	Caption string
	Series  domain.TimeSeries
}

type loginViewData struct {
	baseViewData
	Login string
	Next  string
}

type registerViewData struct {
	baseViewData
	Username string
	Email    string
}

type profileViewData struct {
	baseViewData
	Stats     service.ProfileStats
	OnTheRun  string
	NowLocal  string
	FreqError string
}

type settingsViewData struct {
	baseViewData
	FirstName string
	LastName  string
	Location  string
	Email     string
	Token     string
}

type timezoneViewData struct {
	baseViewData
	Timezone string
	Next     string
}

type onTheRunViewData struct {
	baseViewData
	Username string
	Token    string
	NowLocal string
}

type exploreViewData struct {
	baseViewData
	Data service.ExploreData
}

type overallViewData struct {
	baseViewData
	Stats service.OverallStats
}

type applicationsViewData struct {
	baseViewData
	Applications []domain.Application
}

type appRegisterViewData struct {
	baseViewData
	Input service.RegisterApplicationInput
}

func parseTemplates() (*templates, error) {
	parse := func(page string) (*template.Template, error) {
		return template.New("layout").Funcs(template.FuncMap{
			"drinktime": func(t time.Time) string {
				return t.Format("2006-01-02 15:04")
			},
			"series": func(caption string, ts domain.TimeSeries) seriesView {
				return seriesView{Caption: caption, Series: ts}
			},
		}).ParseFS(assets, "templates/layout.html", "templates/"+page)
	}

	t := &templates{}
	for _, p := range []struct {
		dst  **template.Template
		page string
	}{
		{&t.home, "home.html"},
		{&t.login, "login.html"},
		{&t.register, "register.html"},
		{&t.profile, "profile.html"},
		{&t.settings, "settings.html"},
		{&t.timezone, "timezone.html"},
		{&t.ontherun, "ontherun.html"},
		{&t.explore, "explore.html"},
		{&t.overall, "overall.html"},
		{&t.applications, "applications.html"},
		{&t.appRegister, "application_register.html"},
		{&t.deleteAcct, "deleteaccount.html"},
		{&t.errorT, "error.html"},
	} {
		parsed, err := parse(p.page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p.page, err)
		}
		*p.dst = parsed
	}
	return t, nil
}

func render(w http.ResponseWriter, t *template.Template, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = t.ExecuteTemplate(w, "layout.html", data)
}

func (t *templates) renderError(w http.ResponseWriter, status int, base baseViewData, msg string) {
	base.Error = msg
	if base.Title == "" {
		base.Title = "Error"
	}
	render(w, t.errorT, status, base)
}
