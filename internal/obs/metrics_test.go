package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/admin/users/01ABC":          "/v1/admin/users/:id",
		"/v1/admin/users/01ABC/sessions": "/v1/admin/users/01ABC/sessions",
		"/v1/work/start":                 "/v1/work/start",
		"/v1/presence/online?org=x":      "/v1/presence/online",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
