package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on any authentication failure. It is
// deliberately uniform, callers must not learn which check failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the verified identity of a host.
type Identity struct {
	UserID int64
	Email  string
	Name   string
}

type sessionClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Service performs host authentication: local password login issuing signed
// session tokens, and verification of presented tokens. If OIDC providers
// are configured, an OIDC ID token of a known host is accepted as well.
type Service struct {
	store       persistence.Persister
	secret      []byte
	sessionTTL  time.Duration
	oidcConfigs []config.OIDCConfig
}

func NewService(cfg *config.Config, store persistence.Persister) (*Service, error) {
	if cfg.AuthConfig.JWTSecret == "" {
		return nil, fmt.Errorf("no jwt secret configured")
	}
	sessionHours := cfg.AuthConfig.SessionHours
	if sessionHours <= 0 {
		sessionHours = 24
	}
	return &Service{
		store:       store,
		secret:      []byte(cfg.AuthConfig.JWTSecret),
		sessionTTL:  time.Duration(sessionHours) * time.Hour,
		oidcConfigs: cfg.OIDCConfigs,
	}, nil
}

// SeedHosts creates the configured host accounts if they do not exist yet.
// Existing accounts are left untouched so operator password changes survive
// restarts.
func (s *Service) SeedHosts(cfg *config.Config) error {
	if len(cfg.AuthConfig.Hosts) == 0 {
		return nil
	}
	if cfg.AuthConfig.SeedPassword == "" {
		return fmt.Errorf("host accounts configured but no seed password set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AuthConfig.SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	for _, h := range cfg.AuthConfig.Hosts {
		if _, err := s.store.GetUserByEmail(h.Email); err == nil {
			continue
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
		user := types.User{
			Email:        h.Email,
			Name:         h.Name,
			PasswordHash: string(hash),
		}
		if err := s.store.StoreUser(&user); err != nil {
			return err
		}
		globals.AppLogger.Info("seeded host account", "email", h.Email)
	}
	return nil
}

// Login verifies the password of a host account and issues a session token.
func (s *Service) Login(email, password string) (string, *types.User, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) issueToken(user *types.User) (string, error) {
	claims := sessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks a presented bearer token. A locally issued session token is
// verified against the signing secret, otherwise the token is tried as an
// OIDC ID token of a known host.
func (s *Service) Verify(tokenStr string) (*Identity, error) {
	claims := sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err == nil {
		return &Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
	}
	if len(s.oidcConfigs) > 0 {
		if id, oidcErr := s.verifyOIDC(tokenStr); oidcErr == nil {
			return id, nil
		}
	}
	globals.AppLogger.Debug("token verification failed", "error", err)
	return nil, ErrInvalidCredentials
}
