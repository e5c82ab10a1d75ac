package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/auth"
)

// Provider verifies sign in credentials against Google.
type Provider struct {
	verifier  *Verifier
	exchanger *Exchanger
}

var _ auth.CredentialVerifier = (*Provider)(nil)

// NewProvider creates a provider. exchanger may be nil, in which case
// authorization codes are rejected.
func NewProvider(verifier *Verifier, exchanger *Exchanger) *Provider {
	return &Provider{verifier: verifier, exchanger: exchanger}
}

// VerifyCredentials implements auth.CredentialVerifier.
func (p *Provider) VerifyCredentials(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	idToken := creds.IDToken

	if idToken == "" && creds.AuthorizationCode != "" {
		if p.exchanger == nil {
			return nil, fmt.Errorf("%w: authorization codes are not enabled", auth.ErrInvalidCredentials)
		}
		var err error
		idToken, err = p.exchanger.Exchange(ctx, creds.AuthorizationCode)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Authorization code exchange failed")
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
		}
	}

	claims, err := p.verifier.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("Rejected ID token")
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
		}
		return nil, err
	}

	return &auth.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
