package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// GuestCart is the anonymous cart a shopper built before signing in.
type GuestCart struct {
	ID    uuid.UUID           `json:"id" validate:"required"`
	Lines []cart.IncomingLine `json:"lines" validate:"max=100,dive"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required"`
	GuestCart *GuestCart `json:"guest_cart,omitempty"`
}

// RegisterRequest contains the payload required to open a shopper account.
type RegisterRequest struct {
	FirstName string     `json:"first_name" validate:"required,max=100"`
	LastName  string     `json:"last_name" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required,min=8,max=128"`
	Phone     *string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	GuestCart *GuestCart `json:"guest_cart,omitempty"`
}

// LoginResponse contains the tokens and user produced by a successful login.
// Cart is set when a guest cart was merged into the account.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
	Cart         *cart.View     `json:"cart,omitempty"`
}
