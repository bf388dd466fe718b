package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// DropPendingUpdates discards updates queued while the bot was offline (long polling only).
	DropPendingUpdates bool `yaml:"drop_pending_updates" envconfig:"TELEGRAM_DROP_PENDING_UPDATES"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text and contact messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SessionConfig controls lifetime of in-progress lead sessions.
type SessionConfig struct {
	TTLMinutes             int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes" envconfig:"SESSION_CLEANUP_INTERVAL_MINUTES"`
}

// IntakeConfig describes the lead intake endpoint and the fixed payload fields sent with every lead.
type IntakeConfig struct {
	URL            string `yaml:"url" envconfig:"API_URL"`
	UserAgent      string `yaml:"user_agent" envconfig:"INTAKE_USER_AGENT"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"INTAKE_TIMEOUT_SECONDS"`

	Affiliate string `yaml:"affiliate" envconfig:"INTAKE_AFFILIATE"`
	Country   string `yaml:"country" envconfig:"INTAKE_COUNTRY"`
	Landing   string `yaml:"landing" envconfig:"INTAKE_LANDING"`
	Language  string `yaml:"language" envconfig:"INTAKE_LANGUAGE"`
	IP        string `yaml:"ip" envconfig:"INTAKE_IP"`
	Source    string `yaml:"source" envconfig:"INTAKE_SOURCE"`
}

// PitchConfig points to the media shown on /start.
type PitchConfig struct {
	PhotoPath string `yaml:"photo_path" envconfig:"PITCH_PHOTO_PATH"`
}

// DatabaseConfig holds lead journal connection settings. An empty Driver disables the journal.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	// DriverPostgres selects the PostgreSQL journal backend.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded SQLite journal backend.
	DriverSQLite = "sqlite"
)

// Defaults applied by Normalize when values are left empty.
const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultSessionCleanup    = 10 * time.Minute
	DefaultIntakeTimeout     = 15 * time.Second
	DefaultIntakeUserAgent   = "GPT-investBot/1.0"
	DefaultPitchPhotoPath    = "img2.jpg"
	DefaultMigrationsDir     = "migrations"
	defaultIntakeAffiliate   = "dmitriy"
	defaultIntakeLocale      = "ru"
	defaultIntakeIP          = "0.0.0.0"
	defaultIntakeSource      = "gpt-invest-bot"
	defaultDBMaxConnections  = 5
	defaultPostgresSSLMode   = "disable"
	defaultSQLiteJournalPath = "leads.db"
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Intake    IntakeConfig    `yaml:"intake"`
	Pitch     PitchConfig     `yaml:"pitch"`
	Database  DatabaseConfig  `yaml:"database"`
}

// Load reads configuration from an optional .env file, a YAML file and environment variables.
// A missing YAML file is tolerated so the bot can run from environment alone.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	if err := normalizeRateLimit(cfg); err != nil {
		return err
	}
	if err := normalizeIntake(&cfg.Intake); err != nil {
		return err
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}

	if cfg.Session.TTLMinutes < 0 || cfg.Session.CleanupIntervalMinutes < 0 {
		return fmt.Errorf("session durations must be >= 0")
	}
	if strings.TrimSpace(cfg.Pitch.PhotoPath) == "" {
		cfg.Pitch.PhotoPath = DefaultPitchPhotoPath
	}
	return nil
}

func normalizeRunMode(cfg *Config) error {
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

func normalizeRateLimit(cfg *Config) error {
	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeIntake(in *IntakeConfig) error {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return fmt.Errorf("intake url is required (API_URL)")
	}
	if in.TimeoutSeconds < 0 {
		return fmt.Errorf("intake.timeout_seconds must be >= 0")
	}
	setDefault(&in.UserAgent, DefaultIntakeUserAgent)
	setDefault(&in.Affiliate, defaultIntakeAffiliate)
	setDefault(&in.Country, defaultIntakeLocale)
	setDefault(&in.Landing, defaultIntakeLocale)
	setDefault(&in.Language, defaultIntakeLocale)
	setDefault(&in.IP, defaultIntakeIP)
	setDefault(&in.Source, defaultIntakeSource)
	return nil
}

func normalizeDatabase(db *DatabaseConfig) error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.Driver {
	case "":
		return nil
	case DriverPostgres:
		if strings.TrimSpace(db.Host) == "" || strings.TrimSpace(db.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for driver %q", db.Driver)
		}
		setDefault(&db.Port, "5432")
		setDefault(&db.SSLMode, defaultPostgresSSLMode)
	case DriverSQLite:
		setDefault(&db.Path, defaultSQLiteJournalPath)
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", db.Driver)
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = defaultDBMaxConnections
	}
	setDefault(&db.MigrationsDir, DefaultMigrationsDir)
	return nil
}

func setDefault(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

// Enabled reports whether the lead journal should be opened.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

// SessionTTL returns the idle lifetime of a session.
func (c *Config) SessionTTL() time.Duration {
	if c == nil || c.Session.TTLMinutes <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SessionCleanupInterval returns how often expired sessions are swept.
func (c *Config) SessionCleanupInterval() time.Duration {
	if c == nil || c.Session.CleanupIntervalMinutes <= 0 {
		return DefaultSessionCleanup
	}
	return time.Duration(c.Session.CleanupIntervalMinutes) * time.Minute
}

// IntakeTimeout returns the deadline applied to a single intake call.
func (c *Config) IntakeTimeout() time.Duration {
	if c == nil || c.Intake.TimeoutSeconds <= 0 {
		return DefaultIntakeTimeout
	}
	return time.Duration(c.Intake.TimeoutSeconds) * time.Second
}
