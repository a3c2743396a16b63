package webui

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/service"
)

type Opts struct {
	Logger *slog.Logger

	Auth         *service.AuthService
	Users        *service.UserService
	Caffeine     *service.CaffeineService
	Applications *service.ApplicationService
	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration
	SiteName     string
}

func New(opts Opts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &app{
		logger:       logger,
		authSvc:      opts.Auth,
		userSvc:      opts.Users,
		caffeineSvc:  opts.Caffeine,
		appSvc:       opts.Applications,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		siteName:     opts.SiteName,
		loginLimiter: newLoginLimiter(10, 5*time.Minute),
	}
	if app.siteName == "" {
		app.siteName = "coffeestats"
	}

	t, err := parseTemplates()
	if err != nil {
		logger.Error("webui: parse templates failed", "err", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		})
	}
	app.templates = t

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", app.handleHome)
	mux.HandleFunc("GET /auth/register/", app.handleRegisterGet)
	mux.HandleFunc("POST /auth/register/", app.handleRegisterPost)
	mux.HandleFunc("GET /auth/activate/{key}/", app.handleActivate)
	mux.HandleFunc("GET /auth/login/", app.handleLoginGet)
	mux.HandleFunc("POST /auth/login/", app.handleLoginPost)
	mux.HandleFunc("GET /auth/logout/", app.handleLogout)

	mux.HandleFunc("GET /profile/", app.requireAuth(app.handleOwnProfile))
	mux.HandleFunc("GET /profile/{username}/", app.handleProfile)
	mux.HandleFunc("GET /settings/", app.requireAuth(app.handleSettingsGet))
	mux.HandleFunc("POST /settings/", app.requireAuth(app.handleSettingsPost))
	mux.HandleFunc("POST /settings/export/", app.requireAuth(app.handleExport))
	mux.HandleFunc("GET /settings/deleteaccount/", app.requireAuth(app.handleDeleteAccountGet))
	mux.HandleFunc("POST /settings/deleteaccount/", app.requireAuth(app.handleDeleteAccountPost))
	mux.HandleFunc("GET /selecttimezone/", app.requireLogin(app.handleSelectTimezoneGet))
	mux.HandleFunc("POST /selecttimezone/", app.requireLogin(app.handleSelectTimezonePost))

	mux.HandleFunc("POST /coffee/submit/", app.requireAuth(app.handleSubmitDrink))
	mux.HandleFunc("POST /mate/submit/", app.requireAuth(app.handleSubmitDrink))
	mux.HandleFunc("GET /ontherun/{username}/{token}/", app.handleOnTheRun)
	mux.HandleFunc("POST /coffee/submit/{username}/{token}/", app.handleSubmitOnTheRun)
	mux.HandleFunc("POST /mate/submit/{username}/{token}/", app.handleSubmitOnTheRun)
	mux.HandleFunc("POST /delete/{id}/", app.requireAuth(app.handleDeleteDrink))

	mux.HandleFunc("GET /action/confirm/{code}/", app.handleConfirmAction)
	mux.HandleFunc("GET /explore/", app.handleExplore)
	mux.HandleFunc("GET /overall/", app.handleOverall)

	mux.HandleFunc("GET /applications/", app.requireAuth(app.handleApplicationsList))
	mux.HandleFunc("GET /applications/register/", app.requireAuth(app.handleApplicationRegisterGet))
	mux.HandleFunc("POST /applications/register/", app.requireAuth(app.handleApplicationRegisterPost))
	mux.HandleFunc("POST /applications/{id}/delete/", app.requireAuth(app.handleApplicationWithdraw))

	static := http.StripPrefix("/static/", http.FileServerFS(staticFS()))
	mux.Handle("GET /static/", static)
	mux.Handle("HEAD /static/", static)

	return mux
}

type app struct {
	logger *slog.Logger

	authSvc     *service.AuthService
	userSvc     *service.UserService
	caffeineSvc *service.CaffeineService
	appSvc      *service.ApplicationService

	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration
	siteName     string

	loginLimiter *loginLimiter

	templates *templates
}

// requireLogin redirects anonymous visitors to the login page with a next
// parameter back to the requested path.
func (a *app) requireLogin(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _, ok := a.currentUser(r)
		if !ok {
			http.Redirect(w, r, "/auth/login/?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
			return
		}
		next(w, r, u)
	}
}

// requireAuth is requireLogin plus timezone enforcement: users without a
// timezone are sent to the timezone picker before they can do anything else.
func (a *app) requireAuth(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return a.requireLogin(func(w http.ResponseWriter, r *http.Request, u domain.User) {
		if u.Timezone == "" {
			http.Redirect(w, r, "/selecttimezone/?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
			return
		}
		next(w, r, u)
	})
}

func (a *app) currentUser(r *http.Request) (domain.User, string, bool) {
	if a.authSvc == nil {
		return domain.User{}, "", false
	}
	c, err := r.Cookie(auth.SessionCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, "", false
	}
	sessID, ok := a.cookieCodec.DecodeSessionID(c.Value)
	if !ok {
		return domain.User{}, "", false
	}
	u, err := a.authSvc.GetUserForSession(r.Context(), sessID)
	if err != nil {
		return domain.User{}, "", false
	}
	return u, sessID, true
}
