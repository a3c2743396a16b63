package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger

	DBPing func(context.Context) error

	Auth         *service.AuthService
	Caffeine     *service.CaffeineService
	CookieCodec  auth.CookieCodec
	CookieSecure bool
}

// NewRouter builds the handler for everything under /api/. Mount it on the
// site mux with that prefix; the patterns here carry the full path.
func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		caffeineSvc:  opts.Caffeine,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthz", api.handleHealthz)

	mux.HandleFunc("POST /api/v1/random-users", api.apiTokenAuth(api.handleV1RandomUsers))
	mux.HandleFunc("POST /api/v1/add-drink", api.apiTokenAuth(api.handleV1AddDrink))

	mux.HandleFunc("GET /api/v2/users/{$}", api.handleV2UsersList)
	mux.HandleFunc("GET /api/v2/users/{username}/{$}", api.handleV2UsersGet)
	mux.HandleFunc("GET /api/v2/caffeine/{$}", api.handleV2CaffeineList)
	mux.HandleFunc("GET /api/v2/caffeine/{id}/{$}", api.handleV2CaffeineGet)
	mux.HandleFunc("GET /api/v2/users/{username}/caffeine/{$}", api.handleV2UserCaffeineList)
	mux.HandleFunc("POST /api/v2/users/{username}/caffeine/{$}", api.requireAuth(api.handleV2UserCaffeineCreate))
	mux.HandleFunc("GET /api/v2/users/{username}/caffeine/{id}/{$}", api.handleV2UserCaffeineGet)
	mux.HandleFunc("DELETE /api/v2/users/{username}/caffeine/{id}/{$}", api.requireAuth(api.handleV2UserCaffeineDelete))

	mux.HandleFunc("/api/", handleAPINotFound)

	return mux
}

func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	caffeineSvc  *service.CaffeineService
	cookieCodec  auth.CookieCodec
	cookieSecure bool
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
