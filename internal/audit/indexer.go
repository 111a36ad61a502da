// Package audit mirrors settled notifications into Elasticsearch for search.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
)

const DefaultIndex = "notifications"

// Document is the indexed shape. The body is left out; it can carry job summaries.
type Document struct {
	NotificationID string    `json:"notification_id"`
	TemplateID     string    `json:"notification_template_id"`
	Channel        string    `json:"notification_type"`
	Status         string    `json:"status"`
	Subject        string    `json:"subject"`
	Error          string    `json:"error,omitempty"`
	Sent           int       `json:"notifications_sent"`
	SourceEventID  int64     `json:"source_event_id"`
	Created        time.Time `json:"created"`
	Modified       time.Time `json:"modified"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit", "index": index}),
	}
}

func NewDocument(n *models.Notification) Document {
	return Document{
		NotificationID: n.ID.String(),
		TemplateID:     n.TemplateID.String(),
		Channel:        n.ChannelType,
		Status:         string(n.Status),
		Subject:        n.Subject,
		Error:          n.Error,
		Sent:           n.SentCount,
		SourceEventID:  n.SourceEventID,
		Created:        n.CreatedAt,
		Modified:       n.ModifiedAt,
	}
}

// Record indexes n under its id, replacing an earlier document for the same notification.
func (i *Indexer) Record(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(NewDocument(n))
	if err != nil {
		return fmt.Errorf("encode audit document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: n.ID.String(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index notification %s: %w", n.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("index notification %s: %s: %s", n.ID, res.Status(), bytes.TrimSpace(raw))
	}

	i.logger.Debug("notification indexed", map[string]interface{}{"notificationId": n.ID.String()})
	return nil
}
