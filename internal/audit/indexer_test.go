// internal/audit/indexer_test.go
package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
)

type capturedRequest struct {
	method string
	path   string
	doc    Document
	raw    map[string]interface{}
}

func newFakeElasticsearch(t *testing.T, status int) (*elasticsearch.Client, *[]capturedRequest) {
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c := capturedRequest{method: r.Method, path: r.URL.Path}
		_ = json.Unmarshal(body, &c.doc)
		_ = json.Unmarshal(body, &c.raw)
		captured = append(captured, c)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, &captured
}

func sampleNotification() *models.Notification {
	return &models.Notification{
		ID:            uuid.New(),
		TemplateID:    uuid.New(),
		ChannelType:   "slack",
		Status:        models.StatusFailed,
		Subject:       "Job #3 failed",
		Body:          map[string]interface{}{"extra_vars": "secret"},
		Error:         "channel_not_found",
		SentCount:     1,
		SourceEventID: 3,
	}
}

func TestIndexer_Record(t *testing.T) {
	client, captured := newFakeElasticsearch(t, http.StatusCreated)
	idx := NewIndexer(client, "", logger.NewTestLogger(t))
	n := sampleNotification()

	require.NoError(t, idx.Record(context.Background(), n))

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/notifications/_doc/"+n.ID.String(), req.path)
	assert.Equal(t, "failed", req.doc.Status)
	assert.Equal(t, "channel_not_found", req.doc.Error)
	assert.Equal(t, 1, req.doc.Sent)
	assert.NotContains(t, req.raw, "body")
}

func TestIndexer_RecordErrorStatus(t *testing.T) {
	client, _ := newFakeElasticsearch(t, http.StatusBadRequest)
	idx := NewIndexer(client, "audit-notifications", logger.NewTestLogger(t))

	err := idx.Record(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
