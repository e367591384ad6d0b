package security

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vcontests/vscubing-back/internal/platform/config"
)

const (
	issuer    = "vscubing"
	roleClaim = "role"
)

var TokenAuth *jwtauth.JWTAuth

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Role   string
}

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken signs an access token for userID valid for JWT_EXPIRATION_HOURS.
func GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"iss":     issuer,
		roleClaim: role,
		"iat":     now.Unix(),
		"exp":     now.Add(config.AppConfig.JWTExp).Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// IdentityFromClaims reads the subject and role of a decoded token.
func IdentityFromClaims(claims map[string]interface{}) (Identity, error) {
	id, ok := claims["sub"].(string)
	if !ok || id == "" {
		return Identity{}, errors.New("sub claim is missing or not a string")
	}
	role, ok := claims[roleClaim].(string)
	if !ok || role == "" {
		return Identity{}, errors.New("role claim is missing or not a string")
	}
	return Identity{UserID: id, Role: role}, nil
}
