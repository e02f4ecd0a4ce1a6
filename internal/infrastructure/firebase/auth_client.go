package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/errors"
)

// AuthClient resolves bearer tokens to identities. Production tokens are
// Firebase ID tokens carrying a `role` custom claim; in development an
// HS256 dev token (see dev_tokens.go) is accepted first so the service runs
// without Firebase credentials.
type AuthClient struct {
	client    *auth.Client
	devSecret string
	devExpiry int64
}

func NewAuthClient(client *auth.Client, devSecret string, devExpiry int64) *AuthClient {
	return &AuthClient{
		client:    client,
		devSecret: devSecret,
		devExpiry: devExpiry,
	}
}

// VerifyToken authenticates a connect-time credential. Failure is fatal for
// the connection attempt; there is no retry here.
func (a *AuthClient) VerifyToken(ctx context.Context, token string) (entity.Identity, error) {
	if token == "" {
		return entity.Identity{}, errors.Unauthorized("Authentication required", nil)
	}

	if a.devSecret != "" {
		if identity, err := a.verifyDevToken(token); err == nil {
			return identity, nil
		}
	}

	if a.client == nil {
		return entity.Identity{}, errors.Unauthorized("Invalid or expired token", nil)
	}

	decoded, err := a.client.VerifyIDToken(ctx, token)
	if err != nil {
		return entity.Identity{}, errors.Unauthorized("Invalid or expired token", err)
	}

	role := entity.RoleCustomer
	if claim, ok := decoded.Claims["role"].(string); ok && claim != "" {
		role = claim
	}

	return entity.Identity{ID: decoded.UID, Role: role}, nil
}
