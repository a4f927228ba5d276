package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultCatalogURL = "https://store-site-backend-static.ak.epicgames.com/freeGamesPromotions"

	BackendFirestore = "firestore"
	BackendPebble    = "pebble"
)

type Config struct {
	ProjectID           string
	StoreBackend        string
	PebbleDir           string
	FirestoreCollection string
	Port                string

	CatalogURL   string
	FetchTimeout time.Duration
	RunTimeout   time.Duration

	ScheduleEnabled  bool
	ScheduleHour     int
	ScheduleMinute   int
	ScheduleLocation *time.Location

	MailSender    string
	MailPassword  string
	MailRecipient string
	SMTPHost      string
	SMTPPort      int

	DiscordWebhookURL string
}

// EmailEnabled reports whether all values needed to send mail are present.
func (c *Config) EmailEnabled() bool {
	return c.MailSender != "" && c.MailPassword != "" && c.MailRecipient != ""
}

func Load() (*Config, error) {
	// A missing .env file is the normal case in production.
	_ = godotenv.Load()

	backend := strings.ToLower(envOr("STORE_BACKEND", BackendFirestore))
	if backend != BackendFirestore && backend != BackendPebble {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be %q or %q", backend, BackendFirestore, BackendPebble)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" && backend == BackendFirestore {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parseDuration("RUN_TIMEOUT", "4m")
	if err != nil {
		return nil, err
	}

	scheduleEnabled := true
	if v := os.Getenv("SCHEDULE_ENABLED"); v != "" {
		scheduleEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SCHEDULE_ENABLED %q: %w", v, err)
		}
	}

	scheduleTime := envOr("SCHEDULE_TIME", "09:00")
	hour, minute, err := parseClock(scheduleTime)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIME %q: %w", scheduleTime, err)
	}

	tz := envOr("SCHEDULE_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", tz, err)
	}

	smtpPort := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		smtpPort, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
	}

	cfg := &Config{
		ProjectID:           projectID,
		StoreBackend:        backend,
		PebbleDir:           envOr("PEBBLE_DIR", "data/promotions"),
		FirestoreCollection: envOr("FIRESTORE_COLLECTION", "games"),
		Port:                port,
		CatalogURL:          envOr("CATALOG_URL", DefaultCatalogURL),
		FetchTimeout:        fetchTimeout,
		RunTimeout:          runTimeout,
		ScheduleEnabled:     scheduleEnabled,
		ScheduleHour:        hour,
		ScheduleMinute:      minute,
		ScheduleLocation:    loc,
		MailSender:          os.Getenv("MAIL_SENDER"),
		MailPassword:        os.Getenv("MAIL_PASSWORD"),
		MailRecipient:       os.Getenv("MAIL_RECIPIENT"),
		SMTPHost:            envOr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:            smtpPort,
		DiscordWebhookURL:   os.Getenv("DISCORD_WEBHOOK_URL"),
	}

	if !cfg.EmailEnabled() {
		slog.Warn("MAIL_SENDER, MAIL_PASSWORD or MAIL_RECIPIENT not set, email notifications will be skipped")
	}
	if cfg.DiscordWebhookURL == "" {
		slog.Info("DISCORD_WEBHOOK_URL not set, Discord notifications will be skipped")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOr(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

// parseClock parses a 24h "HH:MM" wall-clock time.
func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
