package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendJSON     = "json"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	Locale      string `yaml:"locale"`
	Theme       string `yaml:"theme"`

	// Data collaborator
	Backend      string        `yaml:"backend"`
	DataPath     string        `yaml:"data_path"`
	AWSRegion    string        `yaml:"aws_region"`
	AWSEndpoint  string        `yaml:"aws_endpoint"` // local DynamoDB, tests
	TodoTable    string        `yaml:"todo_table"`
	PollInterval time.Duration `yaml:"poll_interval"`

	MutationTimeout time.Duration `yaml:"mutation_timeout"`

	Identity Identity `yaml:"identity"`
}

// Identity configures the hosted sign-in UI and token validation.
type Identity struct {
	Domain      string `yaml:"domain"` // hosted UI domain, e.g. auth.example.com
	ClientID    string `yaml:"client_id"`
	RedirectURI string `yaml:"redirect_uri"`
	LogoutURI   string `yaml:"logout_uri"`
	Provider    string `yaml:"provider"`
	Scopes      string `yaml:"scopes"`

	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`
	SecretKey    string `yaml:"secret_key"`     // HS256
	PublicKeyPEM string `yaml:"public_key_pem"` // RS256

	TokenEnv string `yaml:"token_env"`
	CredsDir string `yaml:"creds_dir"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	dir := defaultDir()
	return &Config{
		Environment:  "development",
		LogLevel:     "info",
		LogFile:      filepath.Join(dir, "cloudtodo.log"),
		Locale:       "en",
		Theme:        "classic",
		Backend:      BackendJSON,
		DataPath:     "todos.json",
		AWSRegion:    "us-east-1",
		TodoTable:    "Todo",
		PollInterval: 2 * time.Second,

		MutationTimeout: 10 * time.Second,
		Identity: Identity{
			Provider: "Auth0",
			Scopes:   "openid email profile",
			TokenEnv: "CLOUDTODO_TOKEN",
			CredsDir: dir,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and the environment,
// in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CLOUDTODO_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("CLOUDTODO_ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("CLOUDTODO_LOG_FILE", c.LogFile)
	c.Locale = getEnv("CLOUDTODO_LOCALE", c.Locale)
	c.Theme = getEnv("CLOUDTODO_THEME", c.Theme)

	c.Backend = strings.ToLower(getEnv("CLOUDTODO_BACKEND", c.Backend))
	c.DataPath = getEnv("CLOUDTODO_DATA", c.DataPath)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.AWSEndpoint = getEnv("DYNAMODB_ENDPOINT", c.AWSEndpoint)
	c.TodoTable = getEnv("TODO_TABLE", c.TodoTable)
	c.PollInterval = getEnvDuration("CLOUDTODO_POLL_INTERVAL", c.PollInterval)
	c.MutationTimeout = getEnvDuration("CLOUDTODO_MUTATION_TIMEOUT", c.MutationTimeout)

	id := &c.Identity
	id.Domain = getEnv("AUTH_DOMAIN", id.Domain)
	id.ClientID = getEnv("AUTH_CLIENT_ID", id.ClientID)
	id.RedirectURI = getEnv("AUTH_REDIRECT_URI", id.RedirectURI)
	id.LogoutURI = getEnv("AUTH_LOGOUT_URI", id.LogoutURI)
	id.Provider = getEnv("AUTH_PROVIDER", id.Provider)
	id.Issuer = getEnv("JWT_ISSUER", id.Issuer)
	id.Audience = getEnv("JWT_AUDIENCE", id.Audience)
	id.SecretKey = getEnv("JWT_SECRET", id.SecretKey)
	id.PublicKeyPEM = getEnv("JWT_PUBLIC_KEY", id.PublicKeyPEM)
}

// Validate checks that the selected backend can be constructed.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendJSON:
	case BackendDynamoDB:
		if c.TodoTable == "" {
			return errors.New("TODO_TABLE is required for the dynamodb backend")
		}
		if c.AWSRegion == "" {
			return errors.New("AWS_REGION is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want memory, json or dynamodb)", c.Backend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MutationTimeout < 0 {
		return fmt.Errorf("mutation timeout must not be negative, got %s", c.MutationTimeout)
	}
	if c.Identity.SecretKey != "" && c.Identity.PublicKeyPEM != "" {
		return errors.New("set either JWT_SECRET or JWT_PUBLIC_KEY, not both")
	}
	return nil
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cloudtodo"
	}
	return filepath.Join(home, ".cloudtodo")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or plain seconds ("2").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
