package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	TenantID uuid.UUID
	DeviceID string
	User     string
}

// AccessTokenClaims represents the typed JWT presented by terminals.
// Token issuance lives with the external auth collaborator; this package only
// mints for tests/tooling and verifies on the server.
type AccessTokenClaims struct {
	TenantID uuid.UUID `json:"tenant_id"`
	DeviceID string    `json:"device_id,omitempty"`
	User     string    `json:"user,omitempty"`
	jwt.RegisteredClaims
}
