package identity

import (
	"context"
	"strings"

	"clubledger/models"
)

// CallerLoader loads the current roles of an account
type CallerLoader interface {
	ResolveCaller(ctx context.Context, accountID string) (models.CallerIdentity, error)
}

// Resolver turns bearer tokens into caller identities
type Resolver struct {
	tokens *TokenService
	loader CallerLoader
}

// NewResolver creates a resolver
func NewResolver(tokens *TokenService, loader CallerLoader) *Resolver {
	return &Resolver{tokens: tokens, loader: loader}
}

// Resolve validates the token and reads the account's roles fresh from the
// store, so a revoked role takes effect on the next request
func (r *Resolver) Resolve(ctx context.Context, token string) (models.CallerIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.CallerIdentity{}, ErrInvalidToken
	}
	claims, err := r.tokens.ValidateAccessToken(token)
	if err != nil {
		return models.CallerIdentity{}, err
	}
	return r.loader.ResolveCaller(ctx, claims.AccountID)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
