package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AccessTokenPayload is what the login flow knows about the caller. An empty
// JTI gets a random one.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the body of an access token. The jti doubles as the
// session id checked against Redis.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.UserRoleAdmin
}

// Validate runs after the registered-claim checks. jwt calls it through the
// ClaimsValidator interface.
func (c *AccessTokenClaims) Validate() error {
	switch {
	case c.UserID == uuid.Nil:
		return errors.New("token has no user_id")
	case c.Subject != c.UserID.String():
		return fmt.Errorf("subject %q does not match user_id", c.Subject)
	case !c.Role.IsValid():
		return fmt.Errorf("token carries unknown role %q", c.Role)
	}
	return nil
}
