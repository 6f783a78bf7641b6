package auth

import (
	"time"

	"github.com/greengrocer/storefront/internal/accounts"
)

// RegisterRequest contains the payload required to open an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest captures the credentials sent to the login endpoint.
// Identifier is either the email or the username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	// SessionID is the guest cart session to fold into the account cart.
	SessionID string `json:"-"`
}

// LoginResponse contains the access token and the account that logged in.
type LoginResponse struct {
	AccessToken string               `json:"access_token"`
	ExpiresAt   time.Time            `json:"expires_at"`
	Account     *accounts.AccountDTO `json:"account"`
	MergedLines int                  `json:"merged_lines"`
}
