// Package google verifies Google Sign-In credentials: ID tokens issued to the
// browser and authorization codes exchanged server side.
package google

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid google id token")

var validIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Claims are the ID token claims used to identify an account.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verifier checks ID token signatures and claims for one OAuth client.
type Verifier struct {
	clientID string
	keys     *KeyCache
	opts     []jwt.ParserOption
}

// NewVerifier creates a verifier accepting tokens issued to clientID.
func NewVerifier(clientID string, keys *KeyCache, opts ...jwt.ParserOption) *Verifier {
	return &Verifier{
		clientID: clientID,
		keys:     keys,
		opts:     opts,
	}
}

// Verify parses and validates an ID token.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Claims, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}, v.opts...)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.keys.Key(ctx, kid)
	}, opts...)
	if errors.Is(err, ErrKeysUnavailable) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Email != "" && !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return claims, nil
}

func validIssuer(iss string) bool {
	return slices.Contains(validIssuers, iss)
}
