// Package auth provides token issuance/validation, password hashing and the
// HTTP middleware that authenticates requests.
//
// TOKENS:
// Two kinds of HS256-signed JWT share one secret:
//
//	access:  {"sub": "<user id>", "exp": 1700003600}
//	refresh: {"sub": "<user id>", "exp": 1700604800, "type": "refresh"}
//
// A token is valid for its whole lifetime once issued. There is no rotation
// and no revocation list.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/product-registry/internal/apperror"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshType = "refresh"
)

// TokenState is the outcome of inspecting a token.
type TokenState int

const (
	TokenValid TokenState = iota
	TokenExpired
	TokenMalformed
	TokenWrongType
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	case TokenMalformed:
		return "malformed"
	case TokenWrongType:
		return "wrong-type"
	default:
		return fmt.Sprintf("TokenState(%d)", int(s))
	}
}

// Claims is the JWT payload. Type is empty for access tokens.
type Claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Zero lifetimes fall back to DefaultAccessTTL and DefaultRefreshTTL.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL is the lifetime given to tokens from CreateAccessToken.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// CreateAccessToken signs an access token for subject with the configured lifetime.
func (s *TokenService) CreateAccessToken(subject string) (string, error) {
	return s.sign(subject, "", s.accessTTL)
}

// CreateAccessTokenWithTTL signs an access token with a custom lifetime.
func (s *TokenService) CreateAccessTokenWithTTL(subject string, ttl time.Duration) (string, error) {
	return s.sign(subject, "", ttl)
}

// CreateRefreshToken signs a refresh token for subject with the configured lifetime.
func (s *TokenService) CreateRefreshToken(subject string) (string, error) {
	return s.sign(subject, refreshType, s.refreshTTL)
}

// CreateRefreshTokenWithTTL signs a refresh token with a custom lifetime.
func (s *TokenService) CreateRefreshTokenWithTTL(subject string, ttl time.Duration) (string, error) {
	return s.sign(subject, refreshType, ttl)
}

func (s *TokenService) sign(subject, typ string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	c := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Inspect parses tokenStr and classifies it. Claims are returned only for
// TokenValid and TokenWrongType; wantRefresh selects which kind is expected.
//
// An access token presented where a refresh token is wanted is TokenWrongType.
// The reverse is accepted: the access decoder only checks signature and expiry.
func (s *TokenService) Inspect(tokenStr string, wantRefresh bool) (*Claims, TokenState) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, TokenExpired
		}
		return nil, TokenMalformed
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, TokenMalformed
	}
	if wantRefresh && c.Type != refreshType {
		return c, TokenWrongType
	}
	return c, TokenValid
}

// DecodeAccessToken returns the claims of a valid, unexpired token.
func (s *TokenService) DecodeAccessToken(tokenStr string) (*Claims, error) {
	return s.decode(tokenStr, false)
}

// DecodeRefreshToken is DecodeAccessToken plus a type="refresh" requirement.
func (s *TokenService) DecodeRefreshToken(tokenStr string) (*Claims, error) {
	return s.decode(tokenStr, true)
}

func (s *TokenService) decode(tokenStr string, wantRefresh bool) (*Claims, error) {
	c, state := s.Inspect(tokenStr, wantRefresh)
	switch state {
	case TokenValid:
		return c, nil
	case TokenExpired:
		return nil, apperror.TokenExpired()
	case TokenWrongType:
		return nil, apperror.TokenInvalid("not a refresh token")
	default:
		return nil, apperror.TokenInvalid("")
	}
}
