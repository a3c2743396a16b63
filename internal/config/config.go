package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	SiteName     string
	DBDSN        string
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	// AdminEmails receive new-application notifications.
	AdminEmails []string
	FromEmail   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLSMode  string

	// MinimumDrinkDistance is the duplicate-submission guard window in
	// minutes.
	MinimumDrinkDistance int
	// ActivationValidity and EmailChangeValidity are action lifetimes in
	// days.
	ActivationValidity  int
	EmailChangeValidity int

	AdminBootstrapEmail    string
	AdminBootstrapUsername string
	AdminBootstrapPassword string
}

func Load() (Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV"),
		Addr:         getenv("APP_ADDR"),
		SiteName:     getenv("APP_SITE_NAME"),
		DBDSN:        getenv("APP_DB_DSN"),
		LogLevel:     getenv("APP_LOG_LEVEL"),
		CookieSecret: getenv("APP_COOKIE_SECRET"),
		FromEmail:    strings.TrimSpace(strings.ToLower(getenv("APP_FROM_EMAIL"))),
		SMTPHost:     getenv("APP_SMTP_HOST"),
		SMTPUsername: getenv("APP_SMTP_USERNAME"),
		SMTPPassword: getenv("APP_SMTP_PASSWORD"),
		SMTPTLSMode:  getenv("APP_SMTP_TLS_MODE"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "coffeestats"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	ttlRaw := getenv("APP_SESSION_TTL")
	if ttlRaw == "" {
		cfg.SessionTTL = 30 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
		}
		cfg.SessionTTL = ttl
	}

	var err error
	if cfg.MinimumDrinkDistance, err = intOrDefault(getenv("APP_MINIMUM_DRINK_DISTANCE"), 5); err != nil {
		return Config{}, fmt.Errorf("APP_MINIMUM_DRINK_DISTANCE: %w", err)
	}
	if cfg.MinimumDrinkDistance <= 0 {
		return Config{}, errors.New("APP_MINIMUM_DRINK_DISTANCE: must be > 0")
	}
	if cfg.ActivationValidity, err = intOrDefault(getenv("APP_ACTIVATION_VALIDITY_DAYS"), 2); err != nil {
		return Config{}, fmt.Errorf("APP_ACTIVATION_VALIDITY_DAYS: %w", err)
	}
	if cfg.EmailChangeValidity, err = intOrDefault(getenv("APP_EMAIL_CHANGE_VALIDITY_DAYS"), 2); err != nil {
		return Config{}, fmt.Errorf("APP_EMAIL_CHANGE_VALIDITY_DAYS: %w", err)
	}
	if cfg.SMTPPort, err = intOrDefault(getenv("APP_SMTP_PORT"), 25); err != nil {
		return Config{}, fmt.Errorf("APP_SMTP_PORT: %w", err)
	}

	cfg.AdminEmails = parseCSV(getenv("APP_ADMIN_EMAILS"))
	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapUsername = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_USERNAME"))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapUsername == "" {
		cfg.AdminBootstrapUsername = "admin"
	}
	if cfg.AdminBootstrapEmail != "" && !contains(cfg.AdminEmails, cfg.AdminBootstrapEmail) {
		cfg.AdminEmails = append(cfg.AdminEmails, cfg.AdminBootstrapEmail)
	}

	// Database, secret, site URL and admin contact must be present; running
	// without them is never meaningful, regardless of environment.
	if cfg.DBDSN == "" {
		return Config{}, errors.New("APP_DB_DSN: required")
	}
	if cfg.PublicURL == nil {
		return Config{}, errors.New("APP_PUBLIC_URL: required")
	}
	if cfg.FromEmail == "" {
		return Config{}, errors.New("APP_FROM_EMAIL: required")
	}
	if len(cfg.AdminEmails) == 0 {
		return Config{}, errors.New("APP_ADMIN_EMAILS: required")
	}
	if cfg.CookieSecret == "" {
		return Config{}, errors.New("APP_COOKIE_SECRET: required")
	}
	if cfg.IsProd() && len(cfg.CookieSecret) < 32 {
		return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

// AbsoluteURL joins a site-relative path onto the public URL.
func (c Config) AbsoluteURL(path string) string {
	u := *c.PublicURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func intOrDefault(s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func contains(ss []string, needle string) bool {
	for _, s := range ss {
		if s == needle {
			return true
		}
	}
	return false
}
