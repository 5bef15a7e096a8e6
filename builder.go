package sessionkit

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/tijariwise/sessionkit/biometric"
	internalaudit "github.com/tijariwise/sessionkit/internal/audit"
	"github.com/tijariwise/sessionkit/internal/limiters"
	"github.com/tijariwise/sessionkit/session"
	"github.com/tijariwise/sessionkit/transport"
)

// Builder assembles a [Client]. A Builder is single-use: Build consumes it.
type Builder struct {
	config       Config
	kv           redis.UniversalClient
	baseRT       http.RoundTripper
	prober       biometric.Prober
	auditSink    AuditSink
	deviceSecret []byte
	built        bool
}

// New creates a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration. Zero-valued fields fall back to
// defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	defaults := defaultConfig()
	if cfg.HTTP.LoginPath == "" {
		cfg.HTTP.LoginPath = defaults.HTTP.LoginPath
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if cfg.Validation.EmailDebounce <= 0 {
		cfg.Validation.EmailDebounce = defaults.Validation.EmailDebounce
	}
	if cfg.Validation.PasswordDebounce <= 0 {
		cfg.Validation.PasswordDebounce = defaults.Validation.PasswordDebounce
	}
	if cfg.Attempts.MaxLoginAttempts <= 0 {
		cfg.Attempts.MaxLoginAttempts = defaults.Attempts.MaxLoginAttempts
	}
	if cfg.Biometric.CredentialTTL <= 0 {
		cfg.Biometric.CredentialTTL = defaults.Biometric.CredentialTTL
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = defaults.Audit.BufferSize
	}
	b.config = cfg
	return b
}

// WithBaseURL sets the backend base URL without replacing the rest of the
// configuration.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.HTTP.BaseURL = url
	return b
}

// WithKeyValue sets the device key-value store backing token and credential
// persistence. Required.
func (b *Builder) WithKeyValue(kv redis.UniversalClient) *Builder {
	b.kv = kv
	return b
}

// WithHTTPTransport sets the transport underneath the authorizing round
// tripper. Defaults to http.DefaultTransport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.baseRT = rt
	return b
}

// WithProber sets the biometric sensor prober. Without one every biometric
// path reports unavailable.
func (b *Builder) WithProber(p biometric.Prober) *Builder {
	b.prober = p
	return b
}

// WithAuditSink sets the destination for audit events. Defaults to NoOpSink
// when auditing is enabled without a sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDeviceSecret sets the installation-bound secret that seals stored
// biometric credentials. Required.
func (b *Builder) WithDeviceSecret(secret []byte) *Builder {
	b.deviceSecret = secret
	return b
}

// Build validates the configuration, wires every component, and starts the
// one-time persisted-token load.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("sessionkit: builder already used")
	}
	b.built = true

	if b.kv == nil {
		return nil, errors.New("sessionkit: key-value store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	biometrics, err := biometric.NewStore(b.kv, b.config.Storage.Prefix, b.deviceSecret, b.config.Biometric.CredentialTTL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:     cloneConfig(b.config),
		tokens:     session.NewStore(b.kv, b.config.Storage.Prefix),
		biometrics: biometrics,
		prober:     b.prober,
		governor:   limiters.NewLoginGovernor(limiters.GovernorConfig{MaxAttempts: b.config.Attempts.MaxLoginAttempts}),
		metrics:    NewMetrics(b.config.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, b.auditSink),
		kv:      b.kv,
		loading: true,
		ready:   make(chan struct{}),
	}

	// The authorizer forces logout through the client itself; wiring it here
	// keeps the dependency explicit instead of registered after the fact.
	authorizer := transport.New(b.baseRT, c.tokens, terminator{client: c})
	c.httpClient = &http.Client{
		Transport: authorizer,
		Timeout:   b.config.HTTP.Timeout,
	}

	go c.loadPersistedToken()

	return c, nil
}
