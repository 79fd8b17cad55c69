package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims carried by access tokens issued by the identity
// provider. Subject is the principal id.
type JWTClaims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier turns bearer tokens into principals.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for HS256 tokens signed with secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify validates the token and returns the principal it identifies. The raw
// token travels with the principal so it can be forwarded to the ledger.
func (v *TokenVerifier) Verify(tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "" && claims.Type != "access" {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Subject == "" {
		return domain.Principal{}, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	return domain.Principal{ID: claims.Subject, Token: tokenString}, nil
}

// Sign issues an access token for subject. Used by local tooling and tests;
// production tokens come from the identity provider.
func (v *TokenVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "globalsend-bfa",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
