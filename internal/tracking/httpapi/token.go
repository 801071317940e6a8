package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAudience = "runboard"
	defaultJWTTTL = 15 * time.Minute
	// refreshSkew renews cached tokens before they actually expire, so a
	// token never goes stale mid-request.
	refreshSkew = 30 * time.Second
)

// TokenSource supplies bearer tokens for tracking API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticToken string

// StaticToken returns a source that always yields the given token.
func StaticToken(token string) TokenSource {
	return staticToken(token)
}

// Token implements TokenSource.
func (s staticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("api token is empty")
	}
	return string(s), nil
}

// APIKey mints short-lived signed JWTs from a runboard API key. Tokens are
// cached and renewed shortly before expiry. Safe for concurrent use.
type APIKey struct {
	keyID  string
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewAPIKey creates a JWT-minting token source from a key id and its HMAC
// secret.
func NewAPIKey(keyID string, secret []byte) (*APIKey, error) {
	if keyID == "" {
		return nil, errors.New("api key id is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("api key secret is required")
	}
	return &APIKey{
		keyID:  keyID,
		secret: secret,
		ttl:    defaultJWTTTL,
		now:    time.Now,
	}, nil
}

// Token implements TokenSource.
func (k *APIKey) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token != "" && k.now().Add(refreshSkew).Before(k.expiry) {
		return k.token, nil
	}

	now := k.now()
	expiry := now.Add(k.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    k.keyID,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", err
	}

	k.token = signed
	k.expiry = expiry
	return signed, nil
}
