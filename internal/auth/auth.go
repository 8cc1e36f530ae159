package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("no bearer token")

// Verifier resolves a bearer token into the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
	parser *jwt.Parser
	logger zerolog.Logger
}

// NewJWTVerifier verifies HS256 tokens signed with secret. A non-empty audience must be present in the token.
func NewJWTVerifier(secret, audience string, logger zerolog.Logger) Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &jwtVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
		logger: logger.With().Str("component", "jwt-verifier").Logger(),
	}
}

// Verify parses and validates token.
func (v *jwtVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		v.logger.Debug().Err(err).Msg("bearer token rejected")
		return nil, fmt.Errorf("invalid bearer token: %w", err)
	}

	if claims.Subject == "" {
		v.logger.Debug().Msg("bearer token has no subject")
		return nil, fmt.Errorf("invalid bearer token: missing subject")
	}

	return &model.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

type nopVerifier struct{}

// NewNopVerifier returns a verifier that rejects every token, so all callers are guests.
func NewNopVerifier() Verifier {
	return nopVerifier{}
}

func (nopVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	return nil, errors.New("bearer tokens are not accepted")
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("malformed authorization header")
	}

	return strings.TrimSpace(token), nil
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext returns the caller identity, or nil for guests.
func FromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(contextKey{}).(*model.Identity)
	return identity
}

// Sign issues a token for id. The CLI and tests use it to act as a signed-in customer.
func Sign(secret string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
