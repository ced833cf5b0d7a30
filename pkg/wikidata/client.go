// Package wikidata fetches entities and identifier mappings from the Wikidata
// knowledge base.
package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultEntityURL = "http://www.wikidata.org/entity"
	defaultSPARQLURL = "https://query.wikidata.org/sparql"
	userAgent        = "reframe/1.0 (+https://reframedb.org)"

	// inchiKeyQuery lists every item carrying an InChIKey (P235).
	inchiKeyQuery = "SELECT ?item ?id WHERE { ?item wdt:P235 ?id }"
	entityPrefix  = "http://www.wikidata.org/entity/"
)

// ErrEntityNotFound reports a response that carries no entity for the id.
var ErrEntityNotFound = errors.New("wikidata: entity not found")

// Client provides throttled access to the knowledge base.
type Client struct {
	entityURL  string
	sparqlURL  string
	httpClient *http.Client
	limiter    *rate.Limiter
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

// WithSPARQLURL overrides the query service endpoint.
func WithSPARQLURL(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.sparqlURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables
// throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New constructs a Client for the entity endpoint base.
func New(entityURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(entityURL)
	if trimmed == "" {
		trimmed = defaultEntityURL
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid entity url: %w", err)
	}
	c := &Client{
		entityURL:  strings.TrimRight(trimmed, "/"),
		sparqlURL:  defaultSPARQLURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError represents a non-success response from the knowledge base.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wikidata request failed with status %d", e.Status)
	}
	return fmt.Sprintf("wikidata request failed (%d): %s", e.Status, e.Message)
}

// GetEntity returns the raw JSON document of qid. When the id was merged into
// another item the response is keyed by the target id; a lone entity is then
// returned in its place.
func (c *Client) GetEntity(ctx context.Context, qid string) (json.RawMessage, error) {
	qid = strings.TrimSpace(qid)
	if qid == "" {
		return nil, ErrEntityNotFound
	}
	var payload struct {
		Entities map[string]json.RawMessage `json:"entities"`
	}
	endpoint := c.entityURL + "/" + url.PathEscape(qid)
	if err := c.get(ctx, endpoint, "application/json", &payload); err != nil {
		return nil, err
	}
	if entity, ok := payload.Entities[qid]; ok {
		return entity, nil
	}
	if len(payload.Entities) == 1 {
		for _, entity := range payload.Entities {
			return entity, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, qid)
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// InChIKeyMap returns the InChIKey to item id mapping published by the query
// service.
func (c *Client) InChIKeyMap(ctx context.Context) (map[string]string, error) {
	query := url.Values{}
	query.Set("query", inchiKeyQuery)
	query.Set("format", "json")

	var payload sparqlResponse
	if err := c.get(ctx, c.sparqlURL+"?"+query.Encode(), "application/sparql-results+json", &payload); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(payload.Results.Bindings))
	for _, binding := range payload.Results.Bindings {
		item := strings.TrimPrefix(binding["item"].Value, entityPrefix)
		key := strings.TrimSpace(binding["id"].Value)
		if item == "" || key == "" {
			continue
		}
		out[key] = item
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
