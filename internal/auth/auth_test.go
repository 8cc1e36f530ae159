package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-signing-key"

func claimsFor(sub string, exp time.Duration, audience ...string) Claims {
	now := time.Now()
	return Claims{
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
	}
}

func TestJWTVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	sign := func(t *testing.T, secret string, claims Claims) string {
		token, err := Sign(secret, claims)
		require.NoError(t, err)
		return token
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, claimsFor("user-1", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name        string
		audience    string
		token       string
		expectID    string
		expectError bool
	}{
		{
			name:     "Valid token",
			token:    sign(t, testSecret, claimsFor("user-1", time.Hour)),
			expectID: "user-1",
		},
		{
			name:     "Valid token with audience",
			audience: "authenticated",
			token:    sign(t, testSecret, claimsFor("user-2", time.Hour, "authenticated")),
			expectID: "user-2",
		},
		{
			name:        "Wrong audience",
			audience:    "authenticated",
			token:       sign(t, testSecret, claimsFor("user-2", time.Hour, "anon")),
			expectError: true,
		},
		{
			name:        "Expired token",
			token:       sign(t, testSecret, claimsFor("user-1", -time.Minute)),
			expectError: true,
		},
		{
			name:        "Wrong secret",
			token:       sign(t, "another-secret", claimsFor("user-1", time.Hour)),
			expectError: true,
		},
		{
			name:        "Missing subject",
			token:       sign(t, testSecret, claimsFor("", time.Hour)),
			expectError: true,
		},
		{
			name:        "Unsigned token",
			token:       noneToken,
			expectError: true,
		},
		{
			name:        "Garbage",
			token:       "not-a-jwt",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewJWTVerifier(testSecret, tt.audience, zerolog.Nop())

			identity, err := verifier.Verify(ctx, tt.token)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectID, identity.ID)
			assert.Equal(t, tt.expectID+"@example.com", identity.Email)
		})
	}
}

func TestNopVerifier(t *testing.T) {
	identity, err := NewNopVerifier().Verify(context.Background(), "anything")
	assert.Error(t, err)
	assert.Nil(t, identity)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expected    string
		expectNoTok bool
		expectError bool
	}{
		{name: "Bearer token", header: "Bearer abc.def.ghi", expected: "abc.def.ghi"},
		{name: "Lowercase scheme", header: "bearer abc", expected: "abc"},
		{name: "No header", header: "", expectNoTok: true, expectError: true},
		{name: "Wrong scheme", header: "Basic dXNlcjpwYXNz", expectError: true},
		{name: "Empty token", header: "Bearer   ", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := BearerToken(req)

			if tt.expectError {
				require.Error(t, err)
				if tt.expectNoTok {
					assert.ErrorIs(t, err, ErrNoToken)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ctx = WithIdentity(ctx, &model.Identity{ID: "user-1"})
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "user-1", FromContext(ctx).ID)
}

func TestJWTVerifier_LogsRejections(t *testing.T) {
	var buf bytes.Buffer
	verifier := NewJWTVerifier(testSecret, "", zerolog.New(&buf).Level(zerolog.DebugLevel))

	forged, err := Sign("another-secret", claimsFor("user-1", time.Hour))
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), forged)
	require.Error(t, err)

	noSubject, err := Sign(testSecret, claimsFor("", time.Hour))
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), noSubject)
	require.Error(t, err)

	logs := buf.String()
	assert.Contains(t, logs, `"component":"jwt-verifier"`)
	assert.Contains(t, logs, `"message":"bearer token rejected"`)
	assert.Contains(t, logs, `"message":"bearer token has no subject"`)
	assert.Contains(t, logs, `"level":"debug"`)
	assert.NotContains(t, logs, forged, "tokens are never logged")
}
