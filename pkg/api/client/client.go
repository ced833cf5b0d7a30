package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:5000"

// Client provides typed access to the reframe API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents a failure envelope returned by the API. The API answers
// some failures with a non-error status, so Status may be below 400.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	isObject := bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
	if isObject {
		_ = json.Unmarshal(data, &env)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Status == "fail" {
		msg := strings.TrimSpace(env.Message)
		if msg == "" && !isObject {
			msg = strings.TrimSpace(string(data))
		}
		return APIError{Status: resp.StatusCode, Message: msg}
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// AuthResponse carries the token issued by register and login.
type AuthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AuthToken string `json:"auth_token"`
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, email, password, captchaToken string) (AuthResponse, error) {
	body := map[string]string{
		"email":           email,
		"password":        password,
		"recaptcha_token": captchaToken,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// UserStatus describes the token holder.
type UserStatus struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Admin        bool   `json:"admin"`
	RegisteredOn string `json:"registered_on"`
}

// Status returns the user behind token.
func (c *Client) Status(ctx context.Context, token string) (UserStatus, error) {
	var resp struct {
		Data UserStatus `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, token, &resp); err != nil {
		return UserStatus{}, err
	}
	return resp.Data, nil
}

// Logout revokes token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil)
}

// AssayRecord is one assay measurement for a compound.
type AssayRecord struct {
	ActivityType string   `json:"activity_type"`
	AC50         *float64 `json:"ac50"`
	AssayTitle   *string  `json:"assay_title"`
	Smiles       *string  `json:"smiles"`
	PubChemCID   *string  `json:"PubChem CID"`
	Wikidata     string   `json:"wikidata"`
	CalibrID     *string  `json:"calibr_id"`
	InChIKey     *string  `json:"inchi_key"`
	Ref          string   `json:"ref"`
}

// AssayData returns the assay records for qid.
func (c *Client) AssayData(ctx context.Context, token, qid string) ([]AssayRecord, error) {
	path := "/assaydata?qid=" + url.QueryEscape(qid)
	var records []AssayRecord
	if err := c.do(ctx, http.MethodGet, path, nil, token, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LabeledEntry is a single attribute value with its source.
type LabeledEntry struct {
	Label string `json:"label"`
	QID   string `json:"qid"`
	Ref   string `json:"ref"`
}

// DrugProfile is a merged drug record.
type DrugProfile struct {
	DrugName  *string        `json:"drug_name"`
	Phase     []LabeledEntry `json:"phase"`
	DrugROA   []LabeledEntry `json:"drug_roa"`
	Category  []LabeledEntry `json:"category"`
	Mechanism []LabeledEntry `json:"mechanism"`
	Synonyms  []LabeledEntry `json:"synonyms"`
	SubSmiles *string        `json:"sub_smiles"`
}

// DrugProfiles returns the merged drug profiles for qid.
func (c *Client) DrugProfiles(ctx context.Context, token, qid string) ([]DrugProfile, error) {
	path := "/gvk_data?qid=" + url.QueryEscape(qid)
	var profiles []DrugProfile
	if err := c.do(ctx, http.MethodGet, path, nil, token, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}
