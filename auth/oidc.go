package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tcriess/lightspeed-meet/globals"
)

// verifyOIDC verifies the given ID token against every configured OIDC
// provider. The token's e-mail claim must resolve to a seeded host account,
// OIDC never creates users.
func (s *Service) verifyOIDC(idToken string) (*Identity, error) {
	for _, oidcConf := range s.oidcConfigs {
		provider, err := oidc.NewProvider(context.Background(), oidcConf.ProviderUrl)
		if err != nil {
			globals.AppLogger.Debug("could not reach oidc provider", "provider", oidcConf.Name, "error", err)
			continue
		}
		conf := oidc.Config{}
		if oidcConf.ClientId == "" {
			conf.SkipClientIDCheck = true
		} else {
			conf.ClientID = oidcConf.ClientId
		}
		verifier := provider.Verifier(&conf)
		verifiedIdToken, err := verifier.Verify(context.Background(), idToken)
		if err != nil {
			continue
		}
		claims := struct {
			Email string `json:"email"`
		}{}
		if err := verifiedIdToken.Claims(&claims); err != nil || claims.Email == "" {
			continue
		}
		user, err := s.store.GetUserByEmail(claims.Email)
		if err != nil {
			globals.AppLogger.Debug("oidc token for unknown host", "email", claims.Email)
			continue
		}
		return &Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
	}
	return nil, ErrInvalidCredentials
}
