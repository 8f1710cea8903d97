// Package config loads the process-wide configuration. The configuration is
// resolved once at startup, validated, and passed explicitly into component
// constructors; nothing mutates it at runtime.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/reviewd/internal/core"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string
}

// GitHubConfig holds the credentials used to talk to GitHub, either as an
// App installation (server) or with a personal access token (CLI).
type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
	Token          string
}

// DBConfig holds the Postgres connection settings for the publication store.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// BackendConfig describes one configured model backend. The slice order in
// Config.Backends, after sorting by Priority, defines the fallback sequence.
type BackendConfig struct {
	Name string `yaml:"name"`
	// Provider selects the client implementation: anthropic, openai, ollama.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the credential. The
	// key itself is resolved at startup and never logged.
	APIKeyEnv string `yaml:"api_key_env"`
	// Host is the server URL for self-hosted providers such as Ollama.
	Host      string        `yaml:"host"`
	Priority  int           `yaml:"priority"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// PolicyConfig holds the review policy thresholds and the sender trust
// predicate inputs.
type PolicyConfig struct {
	SeverityFloor     core.Severity
	AllowPaths        []string
	DenyPaths         []string
	TrustDenyLogins   []string
	TrustDenySuffixes []string
}

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	GitHub   GitHubConfig
	Database DBConfig
	Backends []BackendConfig
	Policy   PolicyConfig

	// TokenBudget bounds the estimated size of the assembled review context.
	TokenBudget int
	// RequestTimeout bounds the total processing time of one review request.
	RequestTimeout time.Duration
	MaxWorkers     int

	LogLevel  slog.Level
	LogFormat string
}

type backendsFile struct {
	Backends []BackendConfig `yaml:"backends"`
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. The model backend
// list lives in a separate YAML file because an ordered list does not map
// cleanly onto flat environment keys.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("TOKEN_BUDGET", 24000)
	viper.SetDefault("REQUEST_TIMEOUT", "5m")
	viper.SetDefault("SEVERITY_FLOOR", "low")
	viper.SetDefault("TRUST_DENY_SUFFIXES", "[bot]")
	viper.SetDefault("BACKENDS_FILE", "backends.yml")
	viper.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/reviewd-app.private-key.pem")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "reviewd")
	viper.SetDefault("DB_NAME", "reviewd")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "10m")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				slog.Error("failed to read config file", "error", err)
			}
		}
	}

	if viper.GetInt64("GITHUB_APP_ID") == 0 && viper.GetString("GITHUB_TOKEN") == "" {
		return nil, fmt.Errorf("either GITHUB_APP_ID or GITHUB_TOKEN must be set")
	}
	if viper.GetInt64("GITHUB_APP_ID") != 0 && viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set for app mode")
	}

	backends, err := loadBackends(viper.GetString("BACKENDS_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		GitHub: GitHubConfig{
			AppID:          viper.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  viper.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: viper.GetString("GITHUB_PRIVATE_KEY_PATH"),
			Token:          viper.GetString("GITHUB_TOKEN"),
		},
		Database: DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Backends: backends,
		Policy: PolicyConfig{
			SeverityFloor:     core.ParseSeverity(viper.GetString("SEVERITY_FLOOR")),
			AllowPaths:        splitList(viper.GetString("ALLOW_PATHS")),
			DenyPaths:         splitList(viper.GetString("DENY_PATHS")),
			TrustDenyLogins:   splitList(viper.GetString("TRUST_DENY_LOGINS")),
			TrustDenySuffixes: splitList(viper.GetString("TRUST_DENY_SUFFIXES")),
		},
		TokenBudget:    viper.GetInt("TOKEN_BUDGET"),
		RequestTimeout: viper.GetDuration("REQUEST_TIMEOUT"),
		MaxWorkers:     viper.GetInt("MAX_WORKERS"),
		LogLevel:       parseLogLevel(viper.GetString("LOG_LEVEL")),
		LogFormat:      viper.GetString("LOG_FORMAT"),
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if cfg.TokenBudget <= 0 {
		return nil, fmt.Errorf("TOKEN_BUDGET must be positive")
	}

	return cfg, nil
}

// TrustPolicy builds the sender trust predicate from the policy settings.
func (c *Config) TrustPolicy() core.TrustPolicy {
	return core.TrustPolicy{
		DenyLogins:   c.Policy.TrustDenyLogins,
		DenySuffixes: c.Policy.TrustDenySuffixes,
	}
}

// loadBackends reads the ordered model backend list. Each entry's credential
// is resolved from the named environment variable here, once, so the rest of
// the process never touches the environment.
func loadBackends(path string) ([]BackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backends file %s not found: at least one model backend must be configured", path)
		}
		return nil, fmt.Errorf("failed to read backends file %s: %w", path, err)
	}

	var f backendsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse backends file %s: %w", path, err)
	}
	if len(f.Backends) == 0 {
		return nil, fmt.Errorf("backends file %s lists no backends", path)
	}

	for i := range f.Backends {
		b := &f.Backends[i]
		if b.Name == "" {
			return nil, fmt.Errorf("backend %d has no name", i)
		}
		switch b.Provider {
		case "anthropic", "openai", "ollama":
		default:
			return nil, fmt.Errorf("backend %s: unsupported provider %q", b.Name, b.Provider)
		}
		if b.Timeout <= 0 {
			b.Timeout = 90 * time.Second
		}
		if b.MaxTokens <= 0 {
			b.MaxTokens = 4096
		}
	}
	return f.Backends, nil
}

// APIKey resolves the backend credential from the environment. Returns an
// empty string when no variable is configured, which self-hosted providers
// allow.
func (b *BackendConfig) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
