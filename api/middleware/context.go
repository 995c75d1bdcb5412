package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type identityKey struct{}

// Identity is the authenticated caller as established by Auth.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the zero Identity and false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithUserID sets only the user on top of whatever identity ctx already holds.
func WithUserID(ctx context.Context, userID string) context.Context {
	id, _ := IdentityFromContext(ctx)
	id.UserID, _ = uuid.Parse(userID)
	return WithIdentity(ctx, id)
}

func WithRole(ctx context.Context, role string) context.Context {
	id, _ := IdentityFromContext(ctx)
	id.Role = enums.UserRole(role)
	return WithIdentity(ctx, id)
}

// UserIDFromContext is "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if id := UserUUIDFromContext(ctx); id != uuid.Nil {
		return id.String()
	}
	return ""
}

func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// AuthenticatedUserID fails with CodeUnauthorized when no user is attached.
func AuthenticatedUserID(ctx context.Context) (uuid.UUID, error) {
	if id := UserUUIDFromContext(ctx); id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// AccessIDFromContext is the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.AccessID
}
