package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecaptchaVerifier(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{name: "success", body: `{"success": true}`},
		{name: "rejected", body: `{"success": false, "error-codes": ["invalid-input-response"]}`, want: ErrCaptchaRejected},
		{name: "missing success", body: `{"error-codes": ["missing-input-secret"]}`, want: ErrCaptchaUnavailable},
		{name: "not json", body: `<html>`, want: ErrCaptchaUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Query().Get("secret") != "s3cret" || r.URL.Query().Get("response") != "tok" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := NewRecaptchaVerifier(srv.URL, "s3cret", srv.Client()).Verify(context.Background(), "tok")
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecaptchaVerifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewRecaptchaVerifier(url, "s", nil).Verify(context.Background(), "tok")
	if !errors.Is(err, ErrCaptchaUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
