package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrAuthenticationFailed = errors.New("authentication failed")

// Identity is the opaque principal attached to a connection after a
// successful token verification. The ws layer never inspects it beyond
// passing it to entitlement checks.
type Identity struct {
	UserID string
	Role   string // "customer", "courier" or "restaurant"
}

type IIdentityService interface {
	Verify(token string) (Identity, error)
}

type identityService struct {
	secret []byte
}

func NewIdentityService(secret string) IIdentityService {
	return &identityService{secret: []byte(secret)}
}

func (svc *identityService) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return svc.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrAuthenticationFailed
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, ErrAuthenticationFailed
	}
	role, _ := claims["role"].(string)
	return Identity{UserID: sub, Role: role}, nil
}
