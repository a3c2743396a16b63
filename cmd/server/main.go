package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"coffeestatsweb/internal/adminui"
	"coffeestatsweb/internal/auth"
	"coffeestatsweb/internal/config"
	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/email"
	"coffeestatsweb/internal/httpapi"
	"coffeestatsweb/internal/service"
	"coffeestatsweb/internal/store/postgres"
	"coffeestatsweb/internal/webui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	users := postgres.NewUsersStore(pgPool)
	sessions := postgres.NewSessionsStore(pgPool)
	caffeine := postgres.NewCaffeineStore(pgPool)
	actions := postgres.NewActionStore(pgPool)
	applications := postgres.NewApplicationStore(pgPool)

	if err := bootstrapAdminUser(context.Background(), logger, users, cfg.AdminBootstrapEmail, cfg.AdminBootstrapUsername, cfg.AdminBootstrapPassword); err != nil {
		logger.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	mailer := &service.EmailService{
		SMTP: email.SMTPSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLSMode:  cfg.SMTPTLSMode,
		},
		FromEmail:   cfg.FromEmail,
		SiteName:    cfg.SiteName,
		AdminEmails: cfg.AdminEmails,
	}

	authSvc := &service.AuthService{
		Users:              users,
		Sessions:           sessions,
		Actions:            actions,
		Mailer:             mailer,
		SessionTTL:         cfg.SessionTTL,
		ActivationValidity: cfg.ActivationValidity,
		ActivationURL: func(code string) string {
			return cfg.AbsoluteURL("/auth/activate/" + code + "/")
		},
	}
	userSvc := &service.UserService{
		Users:               users,
		Actions:             actions,
		Caffeine:            caffeine,
		Mailer:              mailer,
		EmailChangeValidity: cfg.EmailChangeValidity,
		ConfirmURL: func(code string) string {
			return cfg.AbsoluteURL("/action/confirm/" + code + "/")
		},
	}
	caffeineSvc := &service.CaffeineService{
		Store:                caffeine,
		Users:                users,
		MinimumDrinkDistance: cfg.MinimumDrinkDistance,
	}
	appSvc := &service.ApplicationService{
		Store:  applications,
		Users:  users,
		Mailer: mailer,
	}
	adminSvc := &service.AdminService{Users: users}

	cookieCodec := auth.NewCookieCodec([]byte(cfg.CookieSecret))

	webRouter := webui.New(webui.Opts{
		Logger:       logger,
		Auth:         authSvc,
		Users:        userSvc,
		Caffeine:     caffeineSvc,
		Applications: appSvc,
		CookieCodec:  cookieCodec,
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
		SiteName:     cfg.SiteName,
	})
	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		DBPing:       pgPool.Ping,
		Auth:         authSvc,
		Caffeine:     caffeineSvc,
		CookieCodec:  cookieCodec,
		CookieSecure: cfg.CookieSecure(),
	})
	adminRouter := adminui.New(adminui.Opts{
		Logger:       logger,
		Auth:         authSvc,
		Admin:        adminSvc,
		Applications: appSvc,
		CookieCodec:  cookieCodec,
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
	})

	root := http.NewServeMux()
	root.Handle("/", webRouter)
	root.Handle("/api/", apiRouter)
	root.Handle("/admin", adminRouter)
	root.Handle("/admin/", adminRouter)

	var handler http.Handler = root
	handler = httpapi.RequestLogger(logger)(handler)
	handler = httpapi.RequestID()(handler)
	handler = httpapi.Recoverer(logger, cfg.IsProd())(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go expiredActionJanitor(janitorCtx, logger, actions)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// expiredActionJanitor periodically removes expired activation and email
// change codes. Claiming already checks validity, so this is housekeeping
// only and any error is just logged.
func expiredActionJanitor(ctx context.Context, logger *slog.Logger, actions *postgres.ActionStore) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := actions.DeleteExpiredActions(ctx, time.Now())
			if err != nil {
				logger.Error("expired action cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("expired actions removed", "count", n)
			}
		}
	}
}

func bootstrapAdminUser(ctx context.Context, logger *slog.Logger, users *postgres.UsersStore, emailAddr, username, password string) error {
	if password == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(password) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}
	if emailAddr == "" || username == "" {
		return errors.New("admin bootstrap: email and username are required")
	}

	_, err := users.GetUserByEmail(ctx, emailAddr)
	if err == nil {
		logger.Info("admin bootstrap: user already exists", "email", emailAddr)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}
	token, err := auth.NewAPIToken()
	if err != nil {
		return fmt.Errorf("admin bootstrap: generate token: %w", err)
	}

	_, err = users.CreateUser(ctx, domain.CreateUserParams{
		Username:     username,
		Email:        emailAddr,
		PasswordHash: hash,
		Token:        token,
		IsActive:     true,
		IsAdmin:      true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrUsernameTaken) {
			logger.Info("admin bootstrap: user already exists", "email", emailAddr)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	logger.Info("admin bootstrap: created admin user", "email", emailAddr)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
