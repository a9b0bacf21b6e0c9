package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleMesaPartes UserRole = "MESA_PARTES"
	RoleAreaUser   UserRole = "AREA_USER"
)

// JWTClaims represents the JWT payload for access tokens. AreaID is the
// organizational area the user acts for.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	AreaID   string   `json:"area_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant administrative bypass.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
