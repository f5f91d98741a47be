package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims issued by the identity service.
type Claims struct {
	Roles          []string `json:"roles"`
	ProfessionalID string   `json:"professional_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), leeway: 30 * time.Second}, nil
}

// Verify parses the token and returns the caller it authenticates.
func (v *Verifier) Verify(tokenStr string) (*model.Principal, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	p := &model.Principal{
		UserID: userID,
		Roles:  model.ParseRoleSet(claims.Roles),
	}
	if claims.ProfessionalID != "" {
		p.ProfessionalID, err = uuid.Parse(claims.ProfessionalID)
		if err != nil {
			return nil, fmt.Errorf("%w: professional_id is not a uuid", ErrInvalidToken)
		}
	} else if p.Roles.Has(model.RoleProfessional) {
		p.ProfessionalID = userID
	}
	return p, nil
}

// Issue signs a token for the principal. Tokens are normally issued by the
// identity service; this is used by tooling and tests.
func (v *Verifier) Issue(p model.Principal, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.ProfessionalID != uuid.Nil {
		claims.ProfessionalID = p.ProfessionalID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
