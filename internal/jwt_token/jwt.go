package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"custodian/internal/domain"
	domainerrors "custodian/pkg/domain-errors"
)

// Claims are the verified token claims the engine consumes. The subject
// registered claim carries the principal id.
type Claims struct {
	OrgID string   `json:"org_id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the engine's identity context.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{
		PrincipalID: c.Subject,
		OrgID:       c.OrgID,
		Email:       c.Email,
		Roles:       domain.NewRoleSet(c.Roles...),
	}
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken signs a token for the given identity. Used by development
// tooling and tests; production tokens come from the authentication
// collaborator.
func (s *JWTService) GenerateToken(identity domain.Identity, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OrgID: identity.OrgID,
		Email: identity.Email,
		Roles: identity.Roles.Names(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.PrincipalID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
		},
	})
	return newToken.SignedString(s.signingKey)
}

// IdentityFromToken validates a token and returns the identity it asserts.
// Satisfies the auth middleware's TokenValidator.
func (s *JWTService) IdentityFromToken(token string) (domain.Identity, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.Identity(), nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "token has expired")
		}
		return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "invalid token")
	}
	if !parsed.Valid {
		return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeUnauthenticated, "invalid token claims")
	}
	return claims, nil
}
