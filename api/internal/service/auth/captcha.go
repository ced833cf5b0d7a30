package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrCaptchaRejected indicates the verifier answered success=false.
	ErrCaptchaRejected = errors.New("auth: captcha rejected")
	// ErrCaptchaUnavailable indicates the verifier could not be reached or answered unexpectedly.
	ErrCaptchaUnavailable = errors.New("auth: captcha verification failed")
)

// CaptchaVerifier checks a client-supplied CAPTCHA proof.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response string) error
}

// RecaptchaVerifier calls the reCAPTCHA siteverify endpoint.
type RecaptchaVerifier struct {
	endpoint string
	secret   string
	http     *http.Client
}

// NewRecaptchaVerifier constructs a verifier for the given endpoint and secret.
func NewRecaptchaVerifier(endpoint, secret string, client *http.Client) *RecaptchaVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RecaptchaVerifier{endpoint: endpoint, secret: secret, http: client}
}

// Verify posts the secret and response as query parameters and inspects the
// "success" field of the reply.
func (v *RecaptchaVerifier) Verify(ctx context.Context, response string) error {
	endpoint, err := url.Parse(v.endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	query := endpoint.Query()
	query.Set("secret", v.secret)
	query.Set("response", response)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: decode reply: %v", ErrCaptchaUnavailable, err)
	}
	raw, ok := payload["success"]
	if !ok {
		return fmt.Errorf("%w: reply has no success field", ErrCaptchaUnavailable)
	}
	if success, _ := raw.(bool); !success {
		return ErrCaptchaRejected
	}
	return nil
}
