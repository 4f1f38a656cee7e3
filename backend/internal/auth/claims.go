package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	// AccessToken is used for API authentication
	AccessToken TokenType = "access"
	// RefreshToken is used to refresh access tokens
	RefreshToken TokenType = "refresh"
)

// Role identifies a caller's position in the in-room role matrix (spec
// §6.6): player or dm. The only check on it in this module is httpapi's
// route table, which restricts the /replay audit endpoint to a DM; the
// gatekeeper does not read it, and there is no GM-only engine action
// such as REMOVE. There is no broader account system behind these — no
// password, no email, just a bearer claim.
type Role string

const (
	RolePlayer Role = "player"
	RoleDM     Role = "dm"
)

// Claims represents the JWT claims issued for one room session.
// ActorID identifies the caller within the room (a player's own entity
// ID, or a DM's session identity); it carries no relation to any
// persisted user record since this module has none.
type Claims struct {
	ActorID string    `json:"actor_id"`
	Role    Role      `json:"role"`
	Type    TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NewClaims creates a new Claims instance
func NewClaims(actorID string, role Role, tokenType TokenType, duration time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		ActorID: actorID,
		Role:    role,
		Type:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        GenerateTokenID(),
		},
	}
}

// Validate checks the claims are internally consistent.
func (c *Claims) Validate() error {
	if c.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}

	if c.Role != RolePlayer && c.Role != RoleDM {
		return fmt.Errorf("invalid role %q", c.Role)
	}

	if c.Type != AccessToken && c.Type != RefreshToken {
		return fmt.Errorf("invalid token type")
	}

	return nil
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until access token expires
}
