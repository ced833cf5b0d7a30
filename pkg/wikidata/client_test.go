package wikidata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEntity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("unexpected accept header %q", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/entity/Q1":
			w.Write([]byte(`{"entities":{"Q1":{"id":"Q1","labels":{}}}}`))
		case "/entity/Q2":
			// merged into Q3
			w.Write([]byte(`{"entities":{"Q3":{"id":"Q3"}}}`))
		case "/entity/Q4":
			w.Write([]byte(`{"entities":{}}`))
		default:
			http.Error(w, "no such entity", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/entity/")
	require.NoError(t, err)
	ctx := context.Background()

	entity, err := c.GetEntity(ctx, "Q1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"Q1","labels":{}}`, string(entity))

	entity, err = c.GetEntity(ctx, "Q2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"Q3"}`, string(entity))

	_, err = c.GetEntity(ctx, "Q4")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = c.GetEntity(ctx, "Q5")
	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such entity", apiErr.Message)
}

func TestInChIKeyMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, inchiKeyQuery, r.URL.Query().Get("query"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"results":{"bindings":[
			{"item":{"value":"http://www.wikidata.org/entity/Q10"},"id":{"value":"KEY-A"}},
			{"item":{"value":"http://www.wikidata.org/entity/Q11"},"id":{"value":"KEY-B"}},
			{"item":{"value":"http://www.wikidata.org/entity/Q12"}}
		]}}`))
	}))
	defer srv.Close()

	c, err := New("", WithSPARQLURL(srv.URL+"/sparql"))
	require.NoError(t, err)
	got, err := c.InChIKeyMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"KEY-A": "Q10", "KEY-B": "Q11"}, got)
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":{"Q1":{}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRateLimit(0.001))
	require.NoError(t, err)
	_, err = c.GetEntity(context.Background(), "Q1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetEntity(ctx, "Q1")
	require.Error(t, err)
}
