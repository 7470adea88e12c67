package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller's storefront role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier issues and validates HS256 session tokens.
type Verifier struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		nowFunc: time.Now,
	}
}

// Issue signs a token for p. Login lives elsewhere; this exists for tooling and tests.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := v.nowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  p.ID,
		"role": string(p.Role),
		"iss":  v.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}

// Principal resolves the principal carried by a token.
func (v *Verifier) Principal(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFunc),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	p := Principal{ID: sub, Role: Role(role)}
	if p.ID == "" || !p.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: missing subject or unknown role", ErrInvalidToken)
	}
	return p, nil
}
