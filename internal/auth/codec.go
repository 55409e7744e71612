package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/hongminglow/dunes-blog/internal/models"
)

const (
	// MinSecretLength is the shortest session secret accepted.
	MinSecretLength = 32
	// DefaultMaxAge is how long an issued session stays valid.
	DefaultMaxAge = 7 * 24 * time.Hour
	// DefaultIssuer identifies cookies minted by this service.
	DefaultIssuer = "atlantic-dunes"

	signKeyInfo = "atlantic-dunes session signing key"
	encKeyInfo  = "atlantic-dunes session encryption key"
)

// placeholderSecrets are defaults that shipped in older deployments and must never be accepted.
var placeholderSecrets = []string{
	"fallback_session_secret_at_least_32_characters_long_for_security_purposes",
	"complex_password_at_least_32_characters_long_super_secret",
	"changeme-changeme-changeme-changeme",
}

var cookieEncoding = base64.RawURLEncoding.Strict()

// ValidateSecret rejects secrets that are too short, known placeholders, or a
// single repeated byte.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: got %d bytes", ErrWeakSecret, len(secret))
	}
	for _, p := range placeholderSecrets {
		if string(secret) == p {
			return fmt.Errorf("%w: placeholder value", ErrWeakSecret)
		}
	}
	if bytes.Count(secret, secret[:1]) == len(secret) {
		return fmt.Errorf("%w: repeated byte", ErrWeakSecret)
	}
	return nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"auth"`
}

// Codec turns sessions into opaque cookie values and back.
//
// A session is expressed as HS256-signed JWT claims, and the compact token is
// then sealed with AES-256-GCM, so the cookie is both unreadable and
// tamper-evident without the secret. Codec is safe for concurrent use.
type Codec struct {
	signKey []byte
	aead    cipher.AEAD
	maxAge  time.Duration
	issuer  string
	now     func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithMaxAge sets the session lifetime.
func WithMaxAge(d time.Duration) CodecOption {
	return func(c *Codec) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer sets the issuer claim written to and required from cookies.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// NewCodec derives signing and encryption keys from secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}

	signKey, err := deriveKey(secret, signKeyInfo)
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(secret, encKeyInfo)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	c := &Codec{
		signKey: signKey,
		aead:    aead,
		maxAge:  DefaultMaxAge,
		issuer:  DefaultIssuer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// MaxAge returns the configured session lifetime.
func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// ExpiresAt returns when s stops decoding.
func (c *Codec) ExpiresAt(s models.Session) time.Time {
	return s.IssuedAt.Add(c.maxAge)
}

// Encode seals an authenticated session into a cookie value. A zero IssuedAt
// is replaced by the current time; timestamps are kept at second precision.
func (c *Codec) Encode(s models.Session) (string, error) {
	if !s.IsAuthenticated || s.UserID == "" {
		return "", fmt.Errorf("%w: only authenticated sessions can be encoded", ErrInvalidSession)
	}

	issuedAt := s.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}
	issuedAt = issuedAt.UTC().Truncate(time.Second)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.maxAge)),
		},
		Username:      s.Username,
		Role:          s.Role,
		Authenticated: s.IsAuthenticated,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(signed), []byte(c.issuer))
	return cookieEncoding.EncodeToString(sealed), nil
}

// Decode opens a cookie value. Every failure, whether bad encoding, failed
// authentication, bad signature, wrong issuer or expiry, returns ErrInvalidSession
// and the anonymous session.
func (c *Codec) Decode(value string) (models.Session, error) {
	raw, err := cookieEncoding.DecodeString(value)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: decode: %w", ErrInvalidSession, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return models.Session{}, fmt.Errorf("%w: value too short", ErrInvalidSession)
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(c.issuer))
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: open: %w", ErrInvalidSession, err)
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(string(plain), claims,
		func(*jwt.Token) (any, error) { return c.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !token.Valid || !claims.Authenticated || claims.Subject == "" || claims.IssuedAt == nil {
		return models.Session{}, fmt.Errorf("%w: incomplete claims", ErrInvalidSession)
	}

	return models.Session{
		ID:              claims.ID,
		UserID:          claims.Subject,
		Username:        claims.Username,
		Role:            claims.Role,
		IsAuthenticated: true,
		IssuedAt:        claims.IssuedAt.Time.UTC(),
	}, nil
}
