// Package crypto provides password hashing, key derivation and authenticated
// encryption for the vault. Passwords are hashed with Argon2id into
// self-describing PHC strings; payloads are sealed with AES-256-GCM and stored
// as nonce || ciphertext.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	// KeySize is the size of a vault key in bytes (AES-256).
	KeySize = 32
	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12
	// SaltSize is the size of Argon2 salts in bytes.
	SaltSize = 16
)

var (
	// ErrInvalidFormat is returned when an encoded password hash cannot be parsed.
	ErrInvalidFormat = errors.New("crypto: invalid hash format")
	// ErrAuthenticationFailed is returned when ciphertext fails authentication
	// (tampered data or wrong key).
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	// ErrTooShort is returned when a ciphertext blob is shorter than a nonce.
	ErrTooShort = errors.New("crypto: ciphertext too short")
	// ErrInvalidKey is returned when a key is not KeySize bytes long.
	ErrInvalidKey = errors.New("crypto: invalid key length")
)

// Params holds Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// String encodes the cost parameters as "m=<mem>,t=<time>,p=<threads>", the
// parameter segment of a PHC string.
func (p Params) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.Memory, p.Time, p.Threads)
}

// ParseParams decodes the output of Params.String. KeyLen is left at KeySize.
func ParseParams(encoded string) (Params, error) {
	var p Params
	if _, err := fmt.Sscanf(encoded, "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return Params{}, fmt.Errorf("%w: parameters: %v", ErrInvalidFormat, err)
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return Params{}, fmt.Errorf("%w: zero cost parameter", ErrInvalidFormat)
	}
	if p.String() != encoded {
		return Params{}, fmt.Errorf("%w: parameters: trailing data", ErrInvalidFormat)
	}
	p.KeyLen = KeySize
	return p, nil
}

// DefaultParams are the OWASP-recommended Argon2id settings.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  KeySize,
}

// Service performs the Argon2id work for the vault. Argon2id is deliberately
// memory hard, so the number of concurrent invocations is bounded.
type Service struct {
	params Params
	sem    *semaphore.Weighted
}

// NewService creates a Service using the given parameters. maxConcurrent caps
// how many Argon2 computations may run at once; values below 1 mean 1.
func NewService(params Params, maxConcurrent int64) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if params.KeyLen == 0 {
		params.KeyLen = KeySize
	}
	return &Service{
		params: params,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// HashPassword derives a salted Argon2id hash of password and returns it in
// PHC string format: $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<hash>.
func (s *Service) HashPassword(ctx context.Context, password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, s.params.Time, s.params.Memory, s.params.Threads, s.params.KeyLen)
	s.sem.Release(1)

	return fmt.Sprintf("$argon2id$v=%d$%s$%s$%s",
		argon2.Version,
		s.params,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches the encoded hash. The cost
// parameters and salt are read from the hash itself. A mismatch is not an
// error; a malformed hash yields ErrInvalidFormat.
func (s *Service) VerifyPassword(ctx context.Context, password, encoded string) (bool, error) {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hash slot: %w", err)
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	s.sem.Release(1)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Params returns the cost parameters new hashes and keys are derived with.
func (s *Service) Params() Params {
	return s.params
}

// DeriveKey derives a KeySize key-encryption key from password and salt using
// the cost parameters p. Callers persist p with the salt so the same key can
// be derived again after the service defaults change.
func (s *Service) DeriveKey(ctx context.Context, password string, salt []byte, p Params) ([]byte, error) {
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("%w: zero cost parameter", ErrInvalidFormat)
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer s.sem.Release(1)
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, KeySize), nil
}

// decodeHash parses a PHC-formatted Argon2id hash.
func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, fmt.Errorf("%w: unexpected layout", ErrInvalidFormat)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: version: %v", ErrInvalidFormat, err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, version)
	}

	p, err := ParseParams(parts[3])
	if err != nil {
		return Params{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: salt", ErrInvalidFormat)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: hash", ErrInvalidFormat)
	}
	p.KeyLen = uint32(len(hash))

	return p, salt, hash, nil
}

// GenerateKey returns a fresh random KeySize key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// GenerateSalt returns a fresh random SaltSize salt.
func GenerateSalt() ([]byte, error) {
	return randomBytes(SaltSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return b, nil
}

// Encrypt seals plaintext with AES-256-GCM under key using a fresh random
// nonce. The result is nonce || ciphertext || tag.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, ErrTooShort
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
