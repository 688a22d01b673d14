package jwt

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims is what an operator token carries. Scope is a space separated
// list as in OAuth 2.0.
type AdminClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

func (c AdminClaims) HasScope(want string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == want {
			return true
		}
	}
	return false
}

// Verifier checks bearer tokens presented to admin endpoints.
type Verifier interface {
	Verify(raw string) (AdminClaims, error)
}

type AdminVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
	scope     string
}

func NewAdminVerifier(publicKeyPath, issuer, audience, scope string) (*AdminVerifier, error) {
	pubPem, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read admin public key")
	}
	return NewAdminVerifierFromPEM(pubPem, issuer, audience, scope)
}

func NewAdminVerifierFromPEM(pubPem []byte, issuer, audience, scope string) (*AdminVerifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse admin public key")
	}
	return &AdminVerifier{
		publicKey: pubKey,
		issuer:    issuer,
		audience:  audience,
		scope:     scope,
	}, nil
}

// Verify returns ErrUnauthorized for a token that does not check out and
// ErrForbidden for a valid token without the admin scope.
func (v *AdminVerifier) Verify(raw string) (AdminClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(2 * time.Minute),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return AdminClaims{}, customErrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok {
		return AdminClaims{}, customErrors.WrapInternal(
			errors.New("claims not AdminClaims"), "Verify",
		)
	}

	if v.scope != "" && !claims.HasScope(v.scope) {
		return AdminClaims{}, customErrors.ErrForbidden
	}
	return *claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
