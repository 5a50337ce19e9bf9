package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates bearer access tokens issued by an external
// identity provider. It never mints tokens: authentication is an
// external collaborator, specified only at its interface (a shared HMAC
// secret and a subject claim naming the external user id).
type JWTVerifier struct {
	secret []byte
	issuer string
}

// Claims is the subset of an external access token this service reads.
type Claims struct {
	ExternalUserID string `json:"-"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// NewJWTVerifier builds a verifier bound to one HMAC secret and expected
// issuer. issuer may be empty to accept tokens from any issuer.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// ParseAccessToken validates signature and expiry, then returns the
// external user id carried in the token's subject claim.
func (s *JWTVerifier) ParseAccessToken(accessToken string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Claims{}, ErrJWTInvalid
	}

	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(accessToken, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrJWTInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, ErrJWTInvalid
	}
	claims.ExternalUserID = claims.Subject
	return claims, nil
}
