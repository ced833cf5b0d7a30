package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframedb/reframe/indexer/internal/service/sync"
)

func TestRunSyncsAgainstFakes(t *testing.T) {
	kb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qid := strings.TrimPrefix(r.URL.Path, "/entity/")
		if qid == "Q3" {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"entities":{"` + qid + `":{"id":"` + qid + `"}}}`))
	}))
	defer kb.Close()

	var writes []string
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/reframe/_search":
			w.Write([]byte(`{"hits":{"hits":[{"_source":{"qid":"Q1"}},{"_source":{"qid":"Q2"}},{"_source":{"qid":"Q3"}}]}}`))
		case r.Method == http.MethodHead && r.URL.Path == "/wikidata/_doc/Q2":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/_refresh") {
				writes = append(writes, r.Method+" "+r.URL.Path)
			}
			w.Write([]byte(`{"acknowledged":true}`))
		}
	}))
	defer es.Close()

	var out, errOut bytes.Buffer
	app := newApp(&out)
	app.ErrWriter = &errOut
	err := app.RunContext(context.Background(), []string{"indexsync",
		"--es-url", es.URL,
		"--entity-url", kb.URL + "/entity",
		"--rps", "0",
	})
	require.NoError(t, err)

	var report sync.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, sync.Report{Total: 3, Inserted: 1, Updated: 1, Failed: 1}, report)
	assert.Equal(t, []string{
		"PUT /wikidata/_settings",
		"PUT /wikidata/_doc/Q1",
		"POST /wikidata/_update/Q2",
	}, writes)
	assert.Contains(t, errOut.String(), `"service":"indexsync"`)
}
