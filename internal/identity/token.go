package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultIssuer     = "storeops"
)

// ErrMissingSecret is returned when a signing secret is not configured.
// It is a startup failure: the process must refuse to run rather than fall
// back to an insecure default.
var ErrMissingSecret = errors.New("identity: signing secret is not configured")

// TokenConfig holds the process-wide token policy, resolved once at startup.
// Access and refresh tokens are signed with distinct secrets so compromising
// one class does not compromise the other.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the minimal claim set carried by both token classes. Tokens are
// bearer-readable, so nothing sensitive (email, hashes) is embedded.
type Claims struct {
	OrganizationID string `json:"org"`
	RoleKey        string `json:"role"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the two signed token classes.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService validates the configuration and constructs the service.
// Missing secrets fail construction; main treats that as fatal.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" {
		return nil, fmt.Errorf("%w: access secret", ErrMissingSecret)
	}
	if refresh == "" {
		return nil, fmt.Errorf("%w: refresh secret", ErrMissingSecret)
	}
	svc := &TokenService{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		issuer:        defaultIssuer,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		svc.issuer = iss
	}
	if cfg.AccessTTL > 0 {
		svc.accessTTL = cfg.AccessTTL
	}
	if cfg.RefreshTTL > 0 {
		svc.refreshTTL = cfg.RefreshTTL
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AccessTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived access token for the principal.
func (s *TokenService) IssueAccessToken(userID, orgID, roleKey string) (string, time.Time, error) {
	return s.issue(tokenTypeAccess, userID, orgID, roleKey, s.accessTTL, s.accessSecret)
}

// IssueRefreshToken signs a long-lived refresh token with the refresh secret.
func (s *TokenService) IssueRefreshToken(userID, orgID, roleKey string) (string, time.Time, error) {
	return s.issue(tokenTypeRefresh, userID, orgID, roleKey, s.refreshTTL, s.refreshSecret)
}

// VerifyAccessToken validates signature, expiry and token class.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.verify(token, tokenTypeAccess, s.accessSecret)
}

// VerifyRefreshToken validates signature, expiry and token class.
func (s *TokenService) VerifyRefreshToken(token string) (*Claims, error) {
	return s.verify(token, tokenTypeRefresh, s.refreshSecret)
}

func (s *TokenService) issue(tokenType, userID, orgID, roleKey string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if userID == "" || orgID == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject and organization are required", ErrInvalidInput)
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		OrganizationID: orgID,
		RoleKey:        roleKey,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, exp, nil
}

func (s *TokenService) verify(token, wantType string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.OrganizationID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
