package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/marmos91/wopihost/internal/clock"
)

// DefaultIssuer is the issuer claim used when none is configured.
const DefaultIssuer = "wopihost"

// Claims are the JWT claims of an access token. The subject is the user ID.
type Claims struct {
	FriendlyName string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Permissions  []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  clock.Clock
}

// JWTResolver issues and verifies HS256 access tokens.
type JWTResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

var _ TokenResolver = (*JWTResolver)(nil)

// NewJWTResolver creates a resolver. The secret is required.
func NewJWTResolver(cfg JWTConfig) (*JWTResolver, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Hour
	}
	return &JWTResolver{
		secret: []byte(cfg.Secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  clock.OrReal(cfg.Clock),
	}, nil
}

// Issue creates a token for p. It returns the token and its expiry, which
// WOPI frontends pass on as access_token_ttl.
func (r *JWTResolver) Issue(p Principal) (string, time.Time, error) {
	if p.UserID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}

	now := r.clock.Now()
	expires := now.Add(r.ttl)
	claims := Claims{
		FriendlyName: p.FriendlyName,
		Email:        p.Email,
		Permissions:  p.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Resolve verifies the signature, issuer and expiry of token.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(r.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Principal{
		UserID:       claims.Subject,
		FriendlyName: claims.FriendlyName,
		Email:        claims.Email,
		Permissions:  claims.Permissions,
	}, nil
}
