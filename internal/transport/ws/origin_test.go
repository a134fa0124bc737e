package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPolicy_Check(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		host    string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://a.test"}, "svc.test", "", true},
		{"listed origin", []string{"http://a.test"}, "svc.test", "http://a.test", true},
		{"listed origin case-insensitive", []string{" HTTP://A.test "}, "svc.test", "http://a.TEST", true},
		{"unlisted origin", []string{"http://a.test"}, "svc.test", "http://b.test", false},
		{"port matters", []string{"http://a.test:8080"}, "svc.test", "http://a.test", false},
		{"wildcard", []string{"*"}, "svc.test", "http://anything.test", true},
		{"malformed origin", []string{"http://a.test"}, "svc.test", "::::", false},
		{"invalid config entry ignored", []string{"not-a-url"}, "svc.test", "http://svc.test", true},
		{"same origin when list empty", nil, "svc.test:8080", "https://svc.test:8080", true},
		{"cross origin when list empty", nil, "svc.test", "http://evil.test", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://"+tc.host+"/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			require.Equal(t, tc.want, NewOriginPolicy(tc.allowed).Check(r))
		})
	}
}
