package biometric

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrExpired indicates the stored record was past its validity window.
	// The record is deleted as a side effect of the read that detects this.
	ErrExpired = errors.New("biometric credential expired")
	// ErrUnavailable indicates the device key-value store is unreachable.
	ErrUnavailable = errors.New("biometric store unavailable")
	// ErrSecretRequired is returned by NewStore when no device secret is given.
	ErrSecretRequired = errors.New("device secret required")
)

const recordKey = "biometric_credentials"

// DefaultTTL is the credential validity window: 30 days.
const DefaultTTL = 30 * 24 * time.Hour

// Record is a decrypted biometric credential record. EnrolledAt is kept in
// milliseconds since epoch, matching the persisted wire format.
type Record struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	EnrolledAt int64  `json:"timestamp"`
}

// Store persists one encrypted credential record per installation.
type Store struct {
	kv     redis.UniversalClient
	prefix string
	aead   interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a credential store sealing records under a key derived
// from deviceSecret. ttl <= 0 selects [DefaultTTL]; now == nil selects
// time.Now.
func NewStore(kv redis.UniversalClient, prefix string, deviceSecret []byte, ttl time.Duration, now func() time.Time) (*Store, error) {
	if len(deviceSecret) == 0 {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, deviceSecret, nil, []byte("biometric-record"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &Store{kv: kv, prefix: prefix, aead: aead, ttl: ttl, now: now}, nil
}

func (s *Store) key() string {
	if s.prefix == "" {
		return recordKey
	}
	return s.prefix + ":" + recordKey
}

// Save encrypts and persists {email, password, now}, overwriting any prior
// record.
func (s *Store) Save(ctx context.Context, email, password string) error {
	rec := Record{
		Email:      email,
		Password:   password,
		EnrolledAt: s.now().UnixMilli(),
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	blob := s.aead.Seal(nonce, nonce, plain, nil)

	if err := s.kv.Set(ctx, s.key(), blob, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Read loads and decrypts the record. A missing record returns (nil, nil).
// An expired record is deleted and reported as [ErrExpired]; an undecryptable
// record is deleted and treated as absent.
func (s *Store) Read(ctx context.Context) (*Record, error) {
	blob, err := s.kv.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := s.decode(blob)
	if err != nil {
		_ = s.Clear(ctx)
		return nil, nil
	}

	age := s.now().UnixMilli() - rec.EnrolledAt
	if age > s.ttl.Milliseconds() {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	return rec, nil
}

// Has reports whether a record exists, without decrypting or expiring it.
func (s *Store) Has(ctx context.Context) (bool, error) {
	n, err := s.kv.Exists(ctx, s.key()).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Clear deletes the record unconditionally. Used for explicit opt-out.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) decode(blob []byte) (*Record, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	nonce, sealed := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
