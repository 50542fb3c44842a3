package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"campussync/internal/domain/feed"
	"campussync/internal/errs"
)

type tokenClaims struct {
	UserID      string `json:"uid"`
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	jwt.RegisteredClaims
}

// PrincipalFromToken validates an HS256 token and extracts the principal
// claims the rest of the system consumes.
func PrincipalFromToken(tokenString string, secret string) (feed.Principal, error) {
	if strings.TrimSpace(tokenString) == "" {
		return feed.Principal{}, errors.New("token is required")
	}
	if secret == "" {
		return feed.Principal{}, errors.New("token secret is required")
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return feed.Principal{}, errs.Wrap(err, "parse identity token")
	}
	if !token.Valid {
		return feed.Principal{}, errors.New("identity token is not valid")
	}

	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return feed.Principal{}, errors.New("identity token carries no user id")
	}

	role := feed.RoleUser
	if feed.Role(claims.Role) == feed.RoleAdmin {
		role = feed.RoleAdmin
	}

	return feed.Principal{
		ID:          uid,
		Role:        role,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Department:  claims.Department,
	}, nil
}

// NewFromToken builds a signed-in static provider from a token.
func NewFromToken(tokenString string, secret string) (*Static, error) {
	principal, err := PrincipalFromToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	return NewStaticSignedIn(principal), nil
}
