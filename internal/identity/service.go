package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service orchestrates login, refresh, logout and request authentication.
// It is the only component combining the credential store, the token service
// and the access grid.
type Service struct {
	users   UserStore
	roles   RoleStore
	modules ModuleAccessStore
	tokens  *TokenService
	now     func() time.Time
}

// NewService wires the authentication orchestrator.
func NewService(users UserStore, roles RoleStore, modules ModuleAccessStore, tokens *TokenService) (*Service, error) {
	if users == nil || roles == nil || modules == nil {
		return nil, errors.New("identity: all stores are required")
	}
	if tokens == nil {
		return nil, errors.New("identity: token service is required")
	}
	return &Service{
		users:   users,
		roles:   roles,
		modules: modules,
		tokens:  tokens,
		now:     time.Now,
	}, nil
}

// TokenPair carries freshly minted access and refresh tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Login verifies credentials and starts a refresh chain. Unknown email, wrong
// password and inactive account all collapse to ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	cred, err := s.users.FindCredentialByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if !cred.Active {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	return s.startSession(ctx, cred)
}

// Refresh exchanges a refresh token for a new pair, rotating the stored hash.
// A refresh token verifies only against the most recently stored digest, so
// each token is usable at most once. Two concurrent refreshes race
// last-write-wins: the loser's tokens are invalidated by the winner's
// rotation, which is the intended single-active-chain semantic.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	cred, err := s.users.FindCredential(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if !cred.Active || cred.RefreshTokenHash == nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if !MatchRefreshToken(*cred.RefreshTokenHash, refreshToken) {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	return s.startSession(ctx, cred)
}

// Logout clears the stored refresh hash, ending the refresh chain. It
// succeeds whether or not a session was active.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUnauthorized
	}
	return s.users.SetRefreshTokenHash(ctx, userID, nil)
}

// Authenticate resolves a bearer access token into a Principal. The active
// flag is re-checked here, at point of use: deactivating a user locks them
// out even while previously issued tokens are unexpired.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	cred, err := s.users.FindCredential(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if !cred.Active {
		return Principal{}, ErrInvalidToken
	}
	return s.principal(ctx, cred)
}

// AccessibleModules resolves the module keys a role may reach. Super admins
// short-circuit to the full catalog before the grid is consulted.
func (s *Service) AccessibleModules(ctx context.Context, orgID, roleKey string, superAdmin bool) ([]string, error) {
	if superAdmin {
		return AllModules(), nil
	}
	return s.modules.GrantedModules(ctx, orgID, roleKey)
}

func (s *Service) startSession(ctx context.Context, cred Credential) (TokenPair, Principal, error) {
	pair, err := s.mintTokens(cred)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	hash := HashRefreshToken(pair.RefreshToken)
	if err := s.users.SetRefreshTokenHash(ctx, cred.UserID, &hash); err != nil {
		return TokenPair{}, Principal{}, err
	}
	principal, err := s.principal(ctx, cred)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

func (s *Service) mintTokens(cred Credential) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(cred.UserID, cred.OrganizationID, cred.RoleKey)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(cred.UserID, cred.OrganizationID, cred.RoleKey)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) principal(ctx context.Context, cred Credential) (Principal, error) {
	modules, err := s.AccessibleModules(ctx, cred.OrganizationID, cred.RoleKey, cred.SuperAdmin)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:         cred.UserID,
		OrganizationID: cred.OrganizationID,
		Email:          cred.Email,
		RoleKey:        cred.RoleKey,
		StoreID:        cred.StoreID,
		SuperAdmin:     cred.SuperAdmin,
		PlatformAdmin:  cred.PlatformAdmin,
		Modules:        modules,
	}, nil
}
