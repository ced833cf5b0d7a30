// Package search adapts the Elasticsearch client to the operations the index
// sync job needs.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	// ErrConflict reports a version conflict (HTTP 409) on a write.
	ErrConflict = errors.New("search: version conflict")
	// ErrNotFound reports a missing index or document.
	ErrNotFound = errors.New("search: not found")
)

// ResponseError carries a non-success status returned by the cluster.
type ResponseError struct {
	Op     string
	Status int
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("search %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("search %s failed (%d): %s", e.Op, e.Status, e.Reason)
}

func (e *ResponseError) Unwrap() error {
	switch e.Status {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Client wraps an Elasticsearch cluster connection.
type Client struct {
	es *elasticsearch.Client
}

// New connects to the cluster at addresses.
func New(addresses ...string) (*Client, error) {
	return NewWithConfig(elasticsearch.Config{Addresses: addresses})
}

// NewWithConfig builds a client from a full client configuration.
func NewWithConfig(cfg elasticsearch.Config) (*Client, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Refresh makes recent writes to index visible to search.
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(index),
	)
	return consume("refresh", res, err, nil)
}

// SearchIDs runs a query_string query over field and returns the field value
// of every hit, in hit order. Hits without a string value are skipped.
func (c *Client) SearchIDs(ctx context.Context, index, query, field string, size int) ([]string, error) {
	body, err := json.Marshal(map[string]any{
		"from": 0,
		"size": size,
		"_source": map[string]any{
			"includes": []string{field},
		},
		"query": map[string]any{
			"query_string": map[string]any{
				"query":  query,
				"fields": []string{field},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	var payload struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := consume("search", res, err, &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Hits.Hits))
	for _, hit := range payload.Hits.Hits {
		if id, ok := hit.Source[field].(string); ok && strings.TrimSpace(id) != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetTotalFieldsLimit raises index.mapping.total_fields.limit on index.
func (c *Client) SetTotalFieldsLimit(ctx context.Context, index string, limit int) error {
	body := fmt.Sprintf(`{"index.mapping.total_fields.limit": %d}`, limit)
	res, err := c.es.Indices.PutSettings(
		strings.NewReader(body),
		c.es.Indices.PutSettings.WithContext(ctx),
		c.es.Indices.PutSettings.WithIndex(index),
	)
	return consume("put settings", res, err, nil)
}

// Exists reports whether index holds a document with id.
func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := c.es.Exists(index, id, c.es.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("search exists: %w", err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &ResponseError{Op: "exists", Status: res.StatusCode}
	}
}

// Update merges doc into the existing document id.
func (c *Client) Update(ctx context.Context, index, id string, doc json.RawMessage) error {
	body, err := json.Marshal(map[string]json.RawMessage{"doc": doc})
	if err != nil {
		return fmt.Errorf("encode update body: %w", err)
	}
	res, err := c.es.Update(index, id, bytes.NewReader(body), c.es.Update.WithContext(ctx))
	return consume("update", res, err, nil)
}

// Index stores doc under id, replacing any existing document.
func (c *Client) Index(ctx context.Context, index, id string, doc json.RawMessage) error {
	res, err := c.es.Index(index, bytes.NewReader(doc),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(id),
	)
	return consume("index", res, err, nil)
}

func consume(op string, res *esapi.Response, err error, v any) error {
	if err != nil {
		return fmt.Errorf("search %s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return &ResponseError{Op: op, Status: res.StatusCode, Reason: errorReason(res.Body)}
	}
	if v == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func errorReason(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 8192))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error.Reason == "" {
		return strings.TrimSpace(string(data))
	}
	return payload.Error.Type + ": " + payload.Error.Reason
}
