package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("authentication token is missing")
	ErrInvalidToken = errors.New("authentication token is invalid")
)

// Identity is the caller as vouched for by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	token := header
	if scheme, rest, found := strings.Cut(header, " "); strings.EqualFold(scheme, "bearer") {
		// "Bearer" with nothing after it carries no credential
		token = ""
		if found {
			token = strings.TrimSpace(rest)
		}
	}
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
