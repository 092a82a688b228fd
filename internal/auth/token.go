package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenCodec signs and verifies the two bearer token kinds. Access and
// refresh tokens use distinct secrets, so a token of one kind always
// fails verification as the other.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

type tokenClaims struct {
	Email       string      `json:"email,omitempty"`
	Role        Role        `json:"role,omitempty"`
	Permissions Permissions `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// CodecOption configures TokenCodec behavior.
type CodecOption func(*TokenCodec)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithAudience overrides the audience claim.
func WithAudience(audience string) CodecOption {
	return func(c *TokenCodec) {
		if audience = strings.TrimSpace(audience); audience != "" {
			c.audience = audience
		}
	}
}

// WithAccessTTL configures the access token lifetime from a duration
// string. Unparseable values keep the 15 minute default.
func WithAccessTTL(spec string) CodecOption {
	return func(c *TokenCodec) {
		if ttl, err := ParseTTL(spec); err == nil {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh token lifetime from a duration
// string. Unparseable values keep the 7 day default.
func WithRefreshTTL(spec string) CodecOption {
	return func(c *TokenCodec) {
		if ttl, err := ParseTTL(spec); err == nil {
			c.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec constructs a codec. Both secrets are required and must
// differ; reusing one secret would collapse the two token kinds into
// one, letting a refresh token pass as an access token.
func NewTokenCodec(accessSecret, refreshSecret string, opts ...CodecOption) (*TokenCodec, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("auth: both token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	c := &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		issuer:        "taskhub-api",
		audience:      "taskhub-client",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess signs a short-lived access token for the payload.
func (c *TokenCodec) IssueAccess(p TokenPayload) (string, error) {
	return c.issue(p, c.accessSecret, c.accessTTL)
}

// IssueRefresh signs a refresh token for the payload.
func (c *TokenCodec) IssueRefresh(p TokenPayload) (string, error) {
	return c.issue(p, c.refreshSecret, c.refreshTTL)
}

// VerifyAccess validates signature, issuer, audience and expiry of an
// access token and returns its payload.
func (c *TokenCodec) VerifyAccess(token string) (TokenPayload, error) {
	return c.verify(token, c.accessSecret)
}

// VerifyRefresh is VerifyAccess for the refresh kind.
func (c *TokenCodec) VerifyRefresh(token string) (TokenPayload, error) {
	return c.verify(token, c.refreshSecret)
}

// ExpiresIn returns the access token lifetime in whole seconds.
func (c *TokenCodec) ExpiresIn() int64 {
	return int64(c.accessTTL / time.Second)
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

func (c *TokenCodec) issue(p TokenPayload, secret []byte, ttl time.Duration) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	now := c.now().UTC()
	claims := tokenClaims{
		Email:       p.Email,
		Role:        p.Role,
		Permissions: p.Permissions.Normalize(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

func (c *TokenCodec) verify(token string, secret []byte) (TokenPayload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenPayload{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{},
		func(t *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrTokenExpired
		}
		return TokenPayload{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return TokenPayload{}, ErrInvalidToken
	}
	return TokenPayload{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions.Normalize(),
	}, nil
}

// ParseTTL parses the integer+unit duration grammar used in token
// configuration: "90s", "15m", "12h", "7d".
func ParseTTL(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if len(spec) < 2 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, spec)
	}
	value, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, spec)
	}
	switch spec[len(spec)-1] {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, spec)
}
