package sessionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tijariwise/sessionkit/biometric"
	internalaudit "github.com/tijariwise/sessionkit/internal/audit"
	"github.com/tijariwise/sessionkit/internal/limiters"
	"github.com/tijariwise/sessionkit/session"
)

// State is a snapshot of the session lifecycle visible to subscribers.
// Loading is true only between construction and the completion of the one-time
// persisted-token read; routing decisions must be deferred while it is set.
type State struct {
	Loading       bool
	Authenticated bool
}

// Client owns the session token, its persistence, and every login path.
// It is the single source of truth for "is the user authenticated".
type Client struct {
	config     Config
	tokens     *session.Store
	biometrics *biometric.Store
	prober     biometric.Prober
	governor   *limiters.LoginGovernor
	metrics    *Metrics
	audit      *internalaudit.Dispatcher
	httpClient *http.Client
	kv         redis.UniversalClient

	mu          sync.Mutex
	token       string
	loading     bool
	ready       chan struct{}
	subscribers []func(State)
}

const genericLoginFailure = "Connexion échouée"

type loginRequest struct {
	Email      string `json:"email"`
	MotDePasse string `json:"motDePasse"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type loginErrorResponse struct {
	Message string `json:"message"`
}

// loadPersistedToken runs exactly once, started by Build. Until it finishes
// the client reports Loading and WaitReady blocks.
func (c *Client) loadPersistedToken() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.HTTP.Timeout)
	defer cancel()

	token, ok, err := c.tokens.Load(ctx)

	c.mu.Lock()
	if err == nil && ok {
		c.token = token
	}
	c.loading = false
	close(c.ready)
	subs, state := c.snapshotLocked()
	c.mu.Unlock()

	notify(subs, state)
}

func (c *Client) snapshotLocked() ([]func(State), State) {
	subs := make([]func(State), len(c.subscribers))
	copy(subs, c.subscribers)
	return subs, State{Loading: c.loading, Authenticated: c.token != ""}
}

func notify(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state)
	}
}

// WaitReady blocks until the one-time persisted-token load finished or ctx is
// done.
func (c *Client) WaitReady(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loading reports whether the persisted-token read is still outstanding.
func (c *Client) Loading() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// IsAuthenticated reports whether an in-memory token is present. It returns
// false while loading; callers gating routing must check [Client.Loading]
// or use [Client.WaitReady] first.
func (c *Client) IsAuthenticated() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Token returns the in-memory bearer token, if any.
func (c *Client) Token() (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

// OnChange registers a subscriber for session state transitions. The returned
// function unsubscribes. Subscribers run synchronously on the goroutine that
// caused the transition.
func (c *Client) OnChange(fn func(State)) func() {
	if c == nil || fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	idx := len(c.subscribers) - 1
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.subscribers) {
			c.subscribers[idx] = func(State) {}
		}
	}
}

// SetToken installs a session token, persisting it and granting authenticated
// state. An empty token is equivalent to Logout.
func (c *Client) SetToken(ctx context.Context, token string) error {
	if c == nil {
		return ErrClientNotReady
	}
	if token == "" {
		return c.Logout(ctx)
	}

	if err := c.tokens.Save(ctx, token); err != nil {
		return mapStoreError(err)
	}

	c.mu.Lock()
	c.token = token
	subs, state := c.snapshotLocked()
	c.mu.Unlock()

	notify(subs, state)
	return nil
}

// Logout clears the persisted and in-memory token. Calling it while already
// logged out is a no-op, not an error.
func (c *Client) Logout(ctx context.Context) error {
	return c.logout(ctx, false)
}

func (c *Client) logout(ctx context.Context, forced bool) error {
	if c == nil {
		return ErrClientNotReady
	}

	// The persisted copy goes first so a crash between the two writes can
	// only leave the in-memory copy stale for the rest of the process.
	if err := c.tokens.Clear(ctx); err != nil {
		return mapStoreError(err)
	}

	c.mu.Lock()
	wasAuthenticated := c.token != ""
	c.token = ""
	subs, state := c.snapshotLocked()
	c.mu.Unlock()

	if wasAuthenticated {
		if forced {
			c.metrics.Inc(MetricForcedLogout)
			c.emitAudit(ctx, auditEventForcedLogout, true, "", nil, nil)
		} else {
			c.metrics.Inc(MetricLogout)
			c.emitAudit(ctx, auditEventLogout, true, "", nil, nil)
		}
		notify(subs, state)
	}
	return nil
}

// terminator adapts the client to transport.Terminator so authorization
// failures observed on any request force a logout.
type terminator struct {
	client *Client
}

func (t terminator) Logout(ctx context.Context) error {
	return t.client.logout(ctx, true)
}

// Login validates the credentials, consults the attempt governor, and calls
// the login endpoint. On success the token is persisted, installed in memory,
// and the attempt counter resets.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if c == nil {
		return ErrClientNotReady
	}

	if verdict := validatorFor(FieldEmail)(email); verdict != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, verdict.Message)
	}
	if verdict := validatorFor(FieldPassword)(password); verdict != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, verdict.Message)
	}

	// The lockout gate runs before any network activity.
	if !c.governor.CanAttempt() {
		c.metrics.Inc(MetricLoginLocked)
		c.emitAudit(ctx, auditEventLoginLocked, false, email, ErrLoginLocked, map[string]string{
			"failures": strconv.Itoa(c.governor.Failures()),
		})
		return ErrLoginLocked
	}

	start := time.Now()
	resp, err := c.postLogin(ctx, email, password)
	if err != nil {
		c.governor.RecordFailure()
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, email, ErrLoginUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrLoginUnavailable, err)
	}
	defer resp.Body.Close()
	c.metrics.Observe(MetricLoginLatency, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := readServerMessage(resp.Body)
		c.governor.RecordFailure()
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, email, ErrInvalidCredentials, map[string]string{
			"status": strconv.Itoa(resp.StatusCode),
		})
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, message)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		c.governor.RecordFailure()
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, email, ErrInvalidCredentials, map[string]string{
			"reason": "malformed_response",
		})
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, genericLoginFailure)
	}

	if err := c.tokens.Save(ctx, body.Token); err != nil {
		return mapStoreError(err)
	}

	c.mu.Lock()
	c.token = body.Token
	subs, state := c.snapshotLocked()
	c.mu.Unlock()

	c.governor.RecordSuccess()
	c.metrics.Inc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLoginSuccess, true, email, nil, nil)
	notify(subs, state)
	return nil
}

func (c *Client) postLogin(ctx context.Context, email, password string) (*http.Response, error) {
	payload, err := json.Marshal(loginRequest{Email: email, MotDePasse: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.HTTP.BaseURL+c.config.HTTP.LoginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if deviceID := deviceIDFromContext(ctx); deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	if userAgent := userAgentFromContext(ctx); userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return c.httpClient.Do(req)
}

// readServerMessage extracts the optional {message} body of a failed login,
// falling back to a generic notice.
func readServerMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return genericLoginFailure
	}
	var body loginErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return genericLoginFailure
	}
	return body.Message
}

// AttemptsRemaining returns how many login submissions are left before
// lockout.
func (c *Client) AttemptsRemaining() int {
	if c == nil {
		return 0
	}
	return c.governor.Remaining()
}

// BiometricCapability recomputes the derived availability state. Probe and
// store failures read as unavailable; nothing here is cached.
func (c *Client) BiometricCapability(ctx context.Context) biometric.Capability {
	if c == nil {
		return biometric.Capability{}
	}

	capability := biometric.Capability{}
	if c.prober != nil {
		if hw, err := c.prober.HasHardware(ctx); err == nil {
			capability.HardwareAvailable = hw
		}
		if enrolled, err := c.prober.IsEnrolled(ctx); err == nil {
			capability.Enrolled = enrolled
		}
	}
	if has, err := c.biometrics.Has(ctx); err == nil {
		capability.HasStoredCredential = has
	}
	return capability
}

// BiometricEnabled reads the externally-owned settings flag. The settings
// surface writes it; this client only consults it.
func (c *Client) BiometricEnabled(ctx context.Context) bool {
	if c == nil || c.kv == nil {
		return false
	}
	key := "biometric_enabled"
	if c.config.Storage.Prefix != "" {
		key = c.config.Storage.Prefix + ":" + key
	}
	val, err := c.kv.Get(ctx, key).Result()
	return err == nil && val == "true"
}

// EnrollBiometrics stores the credentials for biometric re-authentication.
// Intended to be called right after a successful login when the user opts in.
func (c *Client) EnrollBiometrics(ctx context.Context, email, password string) error {
	if c == nil {
		return ErrClientNotReady
	}
	if !biometric.Available(ctx, c.prober) {
		return ErrBiometricUnavailable
	}
	if err := c.biometrics.Save(ctx, email, password); err != nil {
		return mapStoreError(err)
	}
	c.metrics.Inc(MetricBiometricEnrolled)
	c.emitAudit(ctx, auditEventBiometricEnrolled, true, email, nil, nil)
	return nil
}

// DisableBiometrics deletes the stored credential record. Opt-out is
// unconditional and idempotent.
func (c *Client) DisableBiometrics(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	if err := c.biometrics.Clear(ctx); err != nil {
		return mapStoreError(err)
	}
	c.emitAudit(ctx, auditEventBiometricDisabled, true, "", nil, nil)
	return nil
}

// LoginWithBiometrics verifies the user against the device sensor, loads the
// stored credentials, and runs the regular login path with them. An expired
// record surfaces [ErrCredentialExpired] here — and only here — after having
// deleted itself.
func (c *Client) LoginWithBiometrics(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	if !biometric.Available(ctx, c.prober) {
		return ErrBiometricUnavailable
	}
	has, err := c.biometrics.Has(ctx)
	if err != nil {
		return mapStoreError(err)
	}
	if !has {
		return ErrNoStoredCredential
	}

	if err := c.prober.Authenticate(ctx, "Connexion avec biométrie"); err != nil {
		c.metrics.Inc(MetricBiometricLoginFailure)
		c.emitAudit(ctx, auditEventBiometricLoginFailure, false, "", ErrBiometricDenied, nil)
		return fmt.Errorf("%w: %v", ErrBiometricDenied, err)
	}

	record, err := c.biometrics.Read(ctx)
	if err != nil {
		if errors.Is(err, biometric.ErrExpired) {
			c.metrics.Inc(MetricBiometricExpired)
			c.emitAudit(ctx, auditEventBiometricExpired, false, "", ErrCredentialExpired, nil)
			return ErrCredentialExpired
		}
		return mapStoreError(err)
	}
	if record == nil {
		return ErrNoStoredCredential
	}

	if err := c.Login(ctx, record.Email, record.Password); err != nil {
		c.metrics.Inc(MetricBiometricLoginFailure)
		return err
	}
	c.metrics.Inc(MetricBiometricLoginSuccess)
	c.emitAudit(ctx, auditEventBiometricLoginSuccess, true, record.Email, nil, nil)
	return nil
}

// NewForm creates a login form bound to this client's debounce configuration
// and metrics.
func (c *Client) NewForm(listener func(FormEvent)) *Form {
	if c == nil {
		return NewForm(ValidationConfig{}, nil, listener)
	}
	return NewForm(c.config.Validation, c.metrics, listener)
}

// HTTPClient returns the http.Client whose transport attaches the session
// token. Feature code uses it for every backend call.
func (c *Client) HTTPClient() *http.Client {
	if c == nil {
		return nil
	}
	return c.httpClient
}

// MetricsSnapshot copies the current counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return c.metrics.Snapshot()
}

// Close flushes and stops the audit dispatcher.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
}

func mapStoreError(err error) error {
	if errors.Is(err, session.ErrUnavailable) || errors.Is(err, biometric.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
