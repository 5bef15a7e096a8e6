package sessionkit

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a [Client]. Zero values are filled in
// from defaults by [Builder.Build]; a Config loaded through [LoadConfig]
// starts from the same defaults.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Validation ValidationConfig `yaml:"validation"`
	Attempts   AttemptsConfig   `yaml:"attempts"`
	Biometric  BiometricConfig  `yaml:"biometric"`
	Storage    StorageConfig    `yaml:"storage"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// HTTPConfig describes the backend endpoint.
type HTTPConfig struct {
	BaseURL   string        `yaml:"base_url"`
	LoginPath string        `yaml:"login_path"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ValidationConfig holds the per-field debounce quiet windows.
type ValidationConfig struct {
	EmailDebounce    time.Duration `yaml:"email_debounce"`
	PasswordDebounce time.Duration `yaml:"password_debounce"`
}

// AttemptsConfig holds the login lockout threshold.
type AttemptsConfig struct {
	MaxLoginAttempts int `yaml:"max_login_attempts"`
}

// BiometricConfig holds the stored-credential validity window.
type BiometricConfig struct {
	CredentialTTL time.Duration `yaml:"credential_ttl"`
}

// StorageConfig namespaces the device key-value entries.
type StorageConfig struct {
	Prefix string `yaml:"prefix"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls the counter set.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			LoginPath: "/auth/login",
			Timeout:   15 * time.Second,
		},
		Validation: ValidationConfig{
			EmailDebounce:    500 * time.Millisecond,
			PasswordDebounce: 300 * time.Millisecond,
		},
		Attempts: AttemptsConfig{
			MaxLoginAttempts: 3,
		},
		Biometric: BiometricConfig{
			CredentialTTL: 30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency. BaseURL is mandatory; everything else
// has a working default.
func (c Config) Validate() error {
	if c.HTTP.BaseURL == "" {
		return errors.New("http base_url required")
	}
	if _, err := url.ParseRequestURI(c.HTTP.BaseURL); err != nil {
		return fmt.Errorf("http base_url invalid: %w", err)
	}
	if c.HTTP.LoginPath == "" {
		return errors.New("http login_path required")
	}
	if c.Validation.EmailDebounce <= 0 || c.Validation.PasswordDebounce <= 0 {
		return errors.New("validation debounce windows must be positive")
	}
	if c.Attempts.MaxLoginAttempts <= 0 {
		return errors.New("attempts max_login_attempts must be positive")
	}
	if c.Biometric.CredentialTTL <= 0 {
		return errors.New("biometric credential_ttl must be positive")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types; a plain copy is a deep copy.
	return c
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
