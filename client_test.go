package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubProber struct {
	hardware bool
	enrolled bool
	authErr  error
}

func (p stubProber) HasHardware(context.Context) (bool, error) { return p.hardware, nil }
func (p stubProber) IsEnrolled(context.Context) (bool, error)  { return p.enrolled, nil }
func (p stubProber) Authenticate(context.Context, string) error {
	return p.authErr
}

func loginHandler(t *testing.T, wantEmail, wantPassword, token string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body loginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"message":"corps invalide"}`, http.StatusBadRequest)
			return
		}
		if body.Email != wantEmail || body.MotDePasse != wantPassword {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Identifiants incorrects"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(loginResponse{Token: token})
	}
}

type clientFixture struct {
	client *Client
	kv     *redis.Client
	mr     *miniredis.Miniredis
	server *httptest.Server
}

func newClientFixture(t *testing.T, handler http.Handler, opts ...func(*Builder)) *clientFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = kv.Close() })

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	b := New().
		WithBaseURL(server.URL).
		WithKeyValue(kv).
		WithDeviceSecret([]byte("device-secret-for-tests")).
		WithProber(stubProber{hardware: true, enrolled: true})
	for _, opt := range opts {
		opt(b)
	}

	client, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(client.Close)

	if err := client.WaitReady(context.Background()); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	return &clientFixture{client: client, kv: kv, mr: mr, server: server}
}

func TestColdStartRestoresPersistedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("token", "persisted-token")
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer kv.Close()

	client, err := New().
		WithBaseURL("https://bank.example").
		WithKeyValue(kv).
		WithDeviceSecret([]byte("device-secret-for-tests")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	if client.Loading() {
		t.Fatal("still loading after ready")
	}
	if !client.IsAuthenticated() {
		t.Fatal("persisted token not restored")
	}
	token, ok := client.Token()
	if !ok || token != "persisted-token" {
		t.Fatalf("token: (%q, %v)", token, ok)
	}
}

func TestColdStartWithoutToken(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())

	if fx.client.IsAuthenticated() {
		t.Fatal("fresh install must start unauthenticated")
	}
}

func TestLoginSuccessPersistsToken(t *testing.T) {
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))

	var notified atomic.Int32
	fx.client.OnChange(func(s State) {
		if s.Authenticated {
			notified.Add(1)
		}
	})

	ctx := WithDeviceID(context.Background(), "device-1")
	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if !fx.client.IsAuthenticated() {
		t.Fatal("not authenticated after login")
	}
	persisted, err := fx.mr.Get("token")
	if err != nil || persisted != "jwt-abc" {
		t.Fatalf("persisted token: (%q, %v)", persisted, err)
	}
	if notified.Load() == 0 {
		t.Fatal("subscriber not notified")
	}
	if got := fx.client.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success counter: %d", got)
	}
}

func TestLoginRejectedSurfacesServerMessage(t *testing.T) {
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))

	err := fx.client.Login(context.Background(), "user@bank.example", "wrong-1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err.Error() != "invalid credentials: Identifiants incorrects" {
		t.Fatalf("message lost: %q", err.Error())
	}
	if fx.client.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if fx.client.AttemptsRemaining() != 2 {
		t.Fatalf("remaining: %d", fx.client.AttemptsRemaining())
	}
}

func TestLoginValidationFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	fx := newClientFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))

	cases := []struct {
		email, password string
	}{
		{"", "secret1"},
		{"no-at-sign", "secret1"},
		{"user@bank.example", ""},
		{"user@bank.example", "short"},
	}
	for _, tc := range cases {
		if err := fx.client.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("(%q, %q): expected ErrValidationFailed, got %v", tc.email, tc.password, err)
		}
	}

	if hits.Load() != 0 {
		t.Fatalf("validation failures reached the network %d times", hits.Load())
	}
	if fx.client.AttemptsRemaining() != 3 {
		t.Fatal("validation failures must not consume attempts")
	}
}

func TestLockoutBlocksBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	fx := newClientFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Identifiants incorrects"}`))
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := fx.client.Login(ctx, "user@bank.example", "wrong-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 backend hits, got %d", hits.Load())
	}

	if err := fx.client.Login(ctx, "user@bank.example", "wrong-1"); !errors.Is(err, ErrLoginLocked) {
		t.Fatalf("expected ErrLoginLocked, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatal("locked submission must not reach the network")
	}
	if got := fx.client.MetricsSnapshot().Counters[MetricLoginLocked]; got != 1 {
		t.Fatalf("locked counter: %d", got)
	}
}

func TestSuccessResetsAttemptCounter(t *testing.T) {
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = fx.client.Login(ctx, "user@bank.example", "wrong-1")
	}
	if fx.client.AttemptsRemaining() != 1 {
		t.Fatalf("remaining before success: %d", fx.client.AttemptsRemaining())
	}

	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if fx.client.AttemptsRemaining() != 3 {
		t.Fatalf("counter not reset: %d", fx.client.AttemptsRemaining())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))
	ctx := context.Background()

	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := fx.client.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if fx.client.IsAuthenticated() {
		t.Fatal("still authenticated after logout")
	}
	if fx.mr.Exists("token") {
		t.Fatal("persisted token survived logout")
	}

	// Second logout is a no-op, not an error, and emits nothing new.
	if err := fx.client.Logout(ctx); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	if got := fx.client.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("logout counter: %d", got)
	}
}

func TestForcedLogoutOnUnauthorizedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/auth/login", loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	fx := newClientFixture(t, mux)
	ctx := context.Background()

	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var sawLogout atomic.Bool
	fx.client.OnChange(func(s State) {
		if !s.Authenticated {
			sawLogout.Store(true)
		}
	})

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fx.server.URL+"/accounts", nil)
	resp, err := fx.client.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status not propagated: %d", resp.StatusCode)
	}

	if fx.client.IsAuthenticated() {
		t.Fatal("session survived 401")
	}
	if fx.mr.Exists("token") {
		t.Fatal("persisted token survived 401")
	}
	if !sawLogout.Load() {
		t.Fatal("subscriber not told about forced logout")
	}
	if got := fx.client.MetricsSnapshot().Counters[MetricForcedLogout]; got != 1 {
		t.Fatalf("forced logout counter: %d", got)
	}
}

func TestAuthorizedRequestCarriesBearer(t *testing.T) {
	var gotAuth string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.Handle("/auth/login", loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	fx := newClientFixture(t, mux)
	ctx := context.Background()

	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fx.server.URL+"/accounts", nil)
	resp, err := fx.client.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer jwt-abc" {
		t.Fatalf("authorization header: %q", gotAuth)
	}
}

func TestSetTokenEmptyEqualsLogout(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())
	ctx := context.Background()

	if err := fx.client.SetToken(ctx, "manual-token"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if !fx.client.IsAuthenticated() {
		t.Fatal("SetToken did not authenticate")
	}

	if err := fx.client.SetToken(ctx, ""); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if fx.client.IsAuthenticated() {
		t.Fatal("empty SetToken must log out")
	}
}

func TestBiometricLoginRoundTrip(t *testing.T) {
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"))
	ctx := context.Background()

	if err := fx.client.EnrollBiometrics(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	capability := fx.client.BiometricCapability(ctx)
	if !capability.Usable() {
		t.Fatalf("capability not usable: %+v", capability)
	}

	if err := fx.client.LoginWithBiometrics(ctx); err != nil {
		t.Fatalf("biometric login: %v", err)
	}
	if !fx.client.IsAuthenticated() {
		t.Fatal("not authenticated after biometric login")
	}
	if got := fx.client.MetricsSnapshot().Counters[MetricBiometricLoginSuccess]; got != 1 {
		t.Fatalf("biometric success counter: %d", got)
	}
}

func TestBiometricLoginWithoutEnrollment(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())

	err := fx.client.LoginWithBiometrics(context.Background())
	if !errors.Is(err, ErrNoStoredCredential) {
		t.Fatalf("expected ErrNoStoredCredential, got %v", err)
	}
}

func TestBiometricLoginDenied(t *testing.T) {
	denied := errors.New("user cancelled")
	fx := newClientFixture(t, http.NotFoundHandler(), func(b *Builder) {
		b.WithProber(stubProber{hardware: true, enrolled: true, authErr: denied})
	})
	ctx := context.Background()

	if err := fx.client.EnrollBiometrics(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	err := fx.client.LoginWithBiometrics(ctx)
	if !errors.Is(err, ErrBiometricDenied) {
		t.Fatalf("expected ErrBiometricDenied, got %v", err)
	}
	if fx.client.IsAuthenticated() {
		t.Fatal("denied prompt must not authenticate")
	}
}

func TestBiometricUnavailableWithoutHardware(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler(), func(b *Builder) {
		b.WithProber(stubProber{hardware: false})
	})
	ctx := context.Background()

	if err := fx.client.EnrollBiometrics(ctx, "user@bank.example", "secret1"); !errors.Is(err, ErrBiometricUnavailable) {
		t.Fatalf("enroll: %v", err)
	}
	if err := fx.client.LoginWithBiometrics(ctx); !errors.Is(err, ErrBiometricUnavailable) {
		t.Fatalf("login: %v", err)
	}
}

func TestDisableBiometricsRemovesRecord(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())
	ctx := context.Background()

	if err := fx.client.EnrollBiometrics(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := fx.client.DisableBiometrics(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}

	capability := fx.client.BiometricCapability(ctx)
	if capability.HasStoredCredential {
		t.Fatal("record survived opt-out")
	}
	// Opt-out is idempotent.
	if err := fx.client.DisableBiometrics(ctx); err != nil {
		t.Fatalf("repeat disable: %v", err)
	}
}

func TestBiometricEnabledFlag(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())
	ctx := context.Background()

	if fx.client.BiometricEnabled(ctx) {
		t.Fatal("flag must default to false")
	}
	fx.mr.Set("biometric_enabled", "true")
	if !fx.client.BiometricEnabled(ctx) {
		t.Fatal("flag not read")
	}
	fx.mr.Set("biometric_enabled", "false")
	if fx.client.BiometricEnabled(ctx) {
		t.Fatal("explicit false misread")
	}
}

func TestLoginUnreachableBackend(t *testing.T) {
	fx := newClientFixture(t, http.NotFoundHandler())
	fx.server.Close()

	err := fx.client.Login(context.Background(), "user@bank.example", "secret1")
	if !errors.Is(err, ErrLoginUnavailable) {
		t.Fatalf("expected ErrLoginUnavailable, got %v", err)
	}
}

func TestAuditEventsDelivered(t *testing.T) {
	sink := NewChannelSink(16)
	fx := newClientFixture(t, loginHandler(t, "user@bank.example", "secret1", "jwt-abc"), func(b *Builder) {
		b.WithAuditSink(sink)
	})
	ctx := WithDeviceID(context.Background(), "device-9")

	if err := fx.client.Login(ctx, "user@bank.example", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := fx.client.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	fx.client.Close()

	var types []string
	for draining := true; draining; {
		select {
		case event := <-sink.Events():
			types = append(types, event.EventType)
			if event.EventType == "login_success" {
				if event.Email != "user@bank.example" || event.DeviceID != "device-9" {
					t.Fatalf("login event fields: %+v", event)
				}
			}
		default:
			draining = false
		}
	}

	want := map[string]bool{"login_success": false, "logout": false}
	for _, typ := range types {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Fatalf("missing audit event %q (got %v)", typ, types)
		}
	}
}

func TestBuilderRejectsMissingPieces(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer kv.Close()

	if _, err := New().WithBaseURL("https://bank.example").WithDeviceSecret([]byte("s")).Build(); err == nil {
		t.Fatal("missing key-value store accepted")
	}
	if _, err := New().WithKeyValue(kv).WithDeviceSecret([]byte("s")).Build(); err == nil {
		t.Fatal("missing base url accepted")
	}
	if _, err := New().WithBaseURL("https://bank.example").WithKeyValue(kv).Build(); err == nil {
		t.Fatal("missing device secret accepted")
	}

	b := New().WithBaseURL("https://bank.example").WithKeyValue(kv).WithDeviceSecret([]byte("s"))
	client, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer client.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder reuse accepted")
	}
}
