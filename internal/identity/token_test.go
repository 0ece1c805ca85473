package identity

import (
	"errors"
	"testing"
	"time"
)

func newTestTokens(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	}, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceRequiresSecrets(t *testing.T) {
	cases := []TokenConfig{
		{},
		{AccessSecret: "a"},
		{RefreshSecret: "r"},
		{AccessSecret: "   ", RefreshSecret: "r"},
	}
	for _, cfg := range cases {
		if _, err := NewTokenService(cfg); !errors.Is(err, ErrMissingSecret) {
			t.Fatalf("config %+v: expected ErrMissingSecret, got %v", cfg, err)
		}
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := newTestTokens(t)

	access, exp, err := svc.IssueAccessToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry not in future: %v", exp)
	}
	claims, err := svc.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "user-1" || claims.OrganizationID != "org-1" || claims.RoleKey != "ADMIN" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	refresh, _, err := svc.IssueRefreshToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := svc.VerifyRefreshToken(refresh); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	svc := newTestTokens(t)

	access, _, err := svc.IssueAccessToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, _, err := svc.IssueRefreshToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if _, err := svc.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := svc.VerifyAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	svc := newTestTokens(t)
	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "different-access",
		RefreshSecret: "different-refresh",
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	access, _, err := other.IssueAccessToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.VerifyAccessToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	clock := time.Now()
	svc := newTestTokens(t, WithClock(func() time.Time { return clock }))

	access, _, err := svc.IssueAccessToken("user-1", "org-1", "ADMIN")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = clock.Add(16 * time.Minute)
	if _, err := svc.VerifyAccessToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestTokens(t)
	for _, token := range []string{"", "   ", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := svc.VerifyAccessToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIssueRequiresSubjectAndOrg(t *testing.T) {
	svc := newTestTokens(t)
	if _, _, err := svc.IssueAccessToken("", "org-1", "ADMIN"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := svc.IssueAccessToken("user-1", "", "ADMIN"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
