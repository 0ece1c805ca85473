package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/metrics":                            "/metrics",
		"/v1/auth/login":                      "/v1/auth/login",
		"/v1/roles":                           "/v1/roles",
		"/v1/roles/01HZX3":                    "/v1/roles/:id",
		"/v1/roles/01HZX3/deactivate":         "/v1/roles/:id/deactivate",
		"/v1/modules/grid":                    "/v1/modules/grid",
		"/v1/modules/grid/STORE_MANAGER":      "/v1/modules/grid/:role_key",
		"/v1/platform/organizations":          "/v1/platform/organizations",
		"/v1/platform/organizations/01HZX3":   "/v1/platform/organizations/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
