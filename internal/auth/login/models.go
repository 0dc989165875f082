package login

import (
	"time"

	"adminguard/internal/auth/models"
	"adminguard/internal/auth/token"
	identity "adminguard/internal/identity/models"
)

// Request is one login attempt as received from the client.
type Request struct {
	Email         string
	Password      string
	MFACode       string
	DeviceID      string
	SourceAddress string
	UserAgent     string

	// RequireMFA rejects identities without MFA enabled. Set for the admin login.
	RequireMFA bool
}

// Result is a successful login.
type Result struct {
	Tokens   *token.Pair
	Session  *models.Session
	Identity *identity.Identity
}

// RefreshResult is a new access token for an existing session.
type RefreshResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
