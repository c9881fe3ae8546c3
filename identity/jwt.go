package identity

import (
	"errors"
	"time"

	"clubledger/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const tokenTypeAccess = "access"

// Claims are the access token claims. Roles are informational only, the
// resolver always reloads them from the store.
type Claims struct {
	AccountID string        `json:"account_id"`
	Roles     []models.Role `json:"roles"`
	Type      string        `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 access tokens
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenService creates a token service
func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// GenerateAccessToken issues an access token for the account
func (s *TokenService) GenerateAccessToken(accountID string, roles []models.Role) (string, error) {
	now := s.now()
	claims := Claims{
		AccountID: accountID,
		Roles:     roles,
		Type:      tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateAccessToken validates and parses an access token
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != tokenTypeAccess || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccessTTL returns the lifetime of issued tokens
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }
