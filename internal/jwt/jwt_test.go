package jwt

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_GenerateAndValidate(t *testing.T) {
	j := New(WithSecretKey("test-secret"), WithExpiration(time.Minute))
	ctx := context.Background()

	token, err := j.Generate(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.NoError(t, j.Validate(ctx, token))

	claims, err := j.GetClaims(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.NotNil(t, claims.IssuedAt)
	assert.NotNil(t, claims.ExpiresAt)

	username, err := j.GetUsername(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestJWT_DefaultExpiration(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	j := New(WithSecretKey("secret"), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	token, err := j.Generate(ctx, "bob")
	require.NoError(t, err)

	claims, err := j.GetClaims(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestJWT_ExpiredToken(t *testing.T) {
	j := New(WithSecretKey("test-secret"), WithExpiration(-time.Minute)) // already expired
	ctx := context.Background()

	token, err := j.Generate(ctx, "alice")
	require.NoError(t, err)

	err = j.Validate(ctx, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := j.GetClaims(ctx, token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestJWT_ExpiresAfterLifetime(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	j := New(WithSecretKey("secret"), WithExpiration(30*time.Minute), WithClock(clock))
	ctx := context.Background()

	token, err := j.Generate(ctx, "alice")
	require.NoError(t, err)
	assert.NoError(t, j.Validate(ctx, token))

	now = now.Add(31 * time.Minute)
	assert.ErrorIs(t, j.Validate(ctx, token), jwt.ErrTokenExpired)
}

func TestJWT_InvalidToken(t *testing.T) {
	j := New(WithSecretKey("secret"))
	ctx := context.Background()

	err := j.Validate(ctx, "invalid.token.string")
	assert.Error(t, err)

	username, err := j.GetUsername(ctx, "invalid.token.string")
	assert.Error(t, err)
	assert.Empty(t, username)
}

func TestJWT_Validate_WrongSecret(t *testing.T) {
	j1 := New(WithSecretKey("secret1"))
	j2 := New(WithSecretKey("secret2"))
	ctx := context.Background()

	token, err := j1.Generate(ctx, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, j2.Validate(ctx, token), jwt.ErrTokenSignatureInvalid)
}

func TestJWT_RejectsOtherAlgorithm(t *testing.T) {
	ctx := context.Background()
	hs512 := New(WithSecretKey("secret"), WithSigningMethod(jwt.SigningMethodHS512))
	hs256 := New(WithSecretKey("secret"))

	token, err := hs512.Generate(ctx, "alice")
	require.NoError(t, err)

	assert.NoError(t, hs512.Validate(ctx, token))
	assert.Error(t, hs256.Validate(ctx, token))
}

func TestJWT_MissingClaims(t *testing.T) {
	ctx := context.Background()
	secret := []byte("secret")
	j := New(WithSecretKey(string(secret)))

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)
	assert.ErrorIs(t, j.Validate(ctx, noSubject), ErrMissingSubject)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString(secret)
	require.NoError(t, err)
	assert.Error(t, j.Validate(ctx, noExpiry))
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		alg     string
		want    jwt.SigningMethod
		wantErr bool
	}{
		{"HS256", "HS256", jwt.SigningMethodHS256, false},
		{"lowercase", "hs384", jwt.SigningMethodHS384, false},
		{"HS512", " HS512 ", jwt.SigningMethodHS512, false},
		{"RS256", "RS256", nil, true},
		{"none", "none", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, err := ParseAlgorithm(tt.alg)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedAlgorithm))
				assert.Nil(t, method)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, method)
		})
	}
}

func TestJWT_GetTokenFromRequest(t *testing.T) {
	j := New()
	ctx := context.Background()

	tests := []struct {
		name          string
		header        string
		expectedToken string
		expectError   bool
	}{
		{"ValidBearer", "Bearer mytoken123", "mytoken123", false},
		{"LowercaseBearer", "bearer mytoken123", "mytoken123", false},
		{"NoHeader", "", "", true},
		{"InvalidFormat", "Token mytoken123", "", true},
		{"TooManyParts", "Bearer a b c", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := j.GetTokenFromRequest(ctx, req)
			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedToken, token)
			}
		})
	}
}
