// Package config loads settings from a YAML file and GARDEROBA_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/erazemk/garderoba/internal/ledger"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/permission"
)

// Config represents the complete application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Departments DepartmentsConfig `mapstructure:"departments"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds login and session settings.
type AuthConfig struct {
	// JWTSecret signs API sessions. When empty a secret is generated and
	// kept in the database.
	JWTSecret       string            `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration     `mapstructure:"token_ttl"`
	MaxAttempts     int               `mapstructure:"max_attempts"`
	LockoutDuration time.Duration     `mapstructure:"lockout_duration"`
	LockoutScope    string            `mapstructure:"lockout_scope"`
	RoleSecrets     map[string]string `mapstructure:"role_secrets"`
	BcryptCost      int               `mapstructure:"bcrypt_cost"`
	LoginRate       float64           `mapstructure:"login_rate"`
	LoginBurst      int               `mapstructure:"login_burst"`
}

// DepartmentsConfig holds capacity limits.
type DepartmentsConfig struct {
	Limits map[string]int `mapstructure:"limits"`
}

// PermissionsConfig holds the tier and role tables.
type PermissionsConfig struct {
	Tiers map[string][]string `mapstructure:"tiers"`
	Roles map[string]string   `mapstructure:"roles"`
}

// NotifyConfig holds delivery settings for custody events.
type NotifyConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Redis        RedisConfig   `mapstructure:"redis"`
	Billing      BillingConfig `mapstructure:"billing"`
}

// RedisConfig holds the announcement channel connection.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// BillingConfig holds the payment endpoint.
type BillingConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Loader reads configuration and can watch the file for changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a viper instance. An empty configPath searches for
// garderoba.yaml in the working directory and /etc/garderoba.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GARDEROBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("garderoba")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/garderoba")
	}
	return &Loader{v: v}
}

// Load reads the file (if any) and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ConfigFile returns the file in use, or "" when running on defaults and
// environment only.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the new configuration whenever the config file
// changes. Invalid edits are logged and skipped.
func (l *Loader) Watch(logger *slog.Logger, onChange func(*Config)) {
	if l.ConfigFile() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			logger.Error("ignoring config change", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load is a shorthand for NewLoader(configPath).Load().
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "garderoba.sqlite3")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.max_attempts", 3)
	v.SetDefault("auth.lockout_duration", 90*time.Second)
	v.SetDefault("auth.lockout_scope", "global")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_rate", 1.0)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("departments.limits", map[string]int{
		string(model.DepartmentDocuments): 100,
		string(model.DepartmentPhotos):    100,
		string(model.DepartmentOther):     1000,
	})

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.retry_backoff", 500*time.Millisecond)
	v.SetDefault("notify.redis.enabled", false)
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.channel", "garderoba:released")
	v.SetDefault("notify.billing.url", "")
	v.SetDefault("notify.billing.timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.path", "")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.MaxAttempts < 1 {
		return fmt.Errorf("auth.max_attempts must be at least 1")
	}
	if c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("auth.lockout_duration must be positive")
	}
	switch c.Auth.LockoutScope {
	case "global", "identity":
	default:
		return fmt.Errorf("auth.lockout_scope must be 'global' or 'identity'")
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst < 1 {
		return fmt.Errorf("auth.login_rate and auth.login_burst must be positive")
	}
	if _, ok := c.Auth.RoleSecrets[model.RoleClient]; ok {
		return fmt.Errorf("auth.role_secrets must not contain %q", model.RoleClient)
	}
	if _, err := c.DepartmentLimits(); err != nil {
		return err
	}
	if _, err := c.PermissionMatrix(); err != nil {
		return err
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	if c.Notify.Redis.Enabled && c.Notify.Redis.Channel == "" {
		return fmt.Errorf("notify.redis.channel is required when redis is enabled")
	}
	return nil
}

// DepartmentLimits converts the configured limits.
func (c *Config) DepartmentLimits() (ledger.Limits, error) {
	limits := make(ledger.Limits, len(c.Departments.Limits))
	for name, n := range c.Departments.Limits {
		limits[model.Department(strings.ToLower(name))] = n
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("departments.limits: %w", err)
	}
	return limits, nil
}

// PermissionMatrix builds the matrix from config, falling back to the
// defaults for whichever table is empty.
func (c *Config) PermissionMatrix() (*permission.Matrix, error) {
	tiers := permission.DefaultTiers
	if len(c.Permissions.Tiers) > 0 {
		tiers = make(map[string][]permission.Action, len(c.Permissions.Tiers))
		for tier, actions := range c.Permissions.Tiers {
			for _, a := range actions {
				tiers[tier] = append(tiers[tier], permission.Action(a))
			}
			if _, ok := tiers[tier]; !ok {
				tiers[tier] = []permission.Action{}
			}
		}
	}
	roles := permission.DefaultRoles
	if len(c.Permissions.Roles) > 0 {
		roles = c.Permissions.Roles
	}
	m, err := permission.New(tiers, roles)
	if err != nil {
		return nil, fmt.Errorf("permissions: %w", err)
	}
	return m, nil
}

// SlogLevel maps logging.level to a slog level.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
