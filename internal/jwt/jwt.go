package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Defaults used by New when no option overrides them.
const (
	DefaultExpiration = 30 * time.Minute
	DefaultAlgorithm  = "HS256"
)

var (
	// ErrMissingSubject is returned for a well-signed token without a subject.
	ErrMissingSubject = errors.New("subject not found in token")
	// ErrUnsupportedAlgorithm is returned by ParseAlgorithm for non-HMAC algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// JWT issues and validates HMAC-signed access tokens carrying a username as subject.
type JWT struct {
	secretKey []byte
	exp       time.Duration
	method    *jwt.SigningMethodHMAC
	now       func() time.Time
}

// Opt configures a JWT instance.
type Opt func(*JWT)

// WithSecretKey sets the signing secret.
func WithSecretKey(secret string) Opt {
	return func(j *JWT) {
		j.secretKey = []byte(secret)
	}
}

// WithExpiration sets the lifetime of issued tokens.
func WithExpiration(exp time.Duration) Opt {
	return func(j *JWT) {
		j.exp = exp
	}
}

// WithSigningMethod sets the HMAC algorithm used to sign and accepted on parse.
func WithSigningMethod(method *jwt.SigningMethodHMAC) Opt {
	return func(j *JWT) {
		j.method = method
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Opt {
	return func(j *JWT) {
		j.now = now
	}
}

// New creates a new JWT instance. Without options it signs with HS256 and
// issues tokens valid for DefaultExpiration; the secret must always be set.
func New(opts ...Opt) *JWT {
	j := &JWT{
		exp:    DefaultExpiration,
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ParseAlgorithm resolves an algorithm name such as "HS256" to its HMAC signing method.
func ParseAlgorithm(name string) (*jwt.SigningMethodHMAC, error) {
	method, ok := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(name))).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return method, nil
}

// Generate creates a signed token for the given username.
func (j *JWT) Generate(ctx context.Context, username string) (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.exp)),
	}

	token := jwt.NewWithClaims(j.method, claims)
	return token.SignedString(j.secretKey)
}

// GetClaims parses and validates the token. Expired tokens yield an error
// matching jwt.ErrTokenExpired.
func (j *JWT) GetClaims(ctx context.Context, tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// GetUsername returns the subject of a valid token.
func (j *JWT) GetUsername(ctx context.Context, tokenString string) (string, error) {
	claims, err := j.GetClaims(ctx, tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Validate reports whether the token is well-signed and unexpired.
func (j *JWT) Validate(ctx context.Context, tokenString string) error {
	_, err := j.GetClaims(ctx, tokenString)
	return err
}

// GetTokenFromRequest extracts the token string from the Authorization header
func (j *JWT) GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
