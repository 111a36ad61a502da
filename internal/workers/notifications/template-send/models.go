// internal/workers/notifications/template-send/models.go
package templatesend

type Input struct {
	TemplateID    string                 `json:"templateId"`
	Subject       string                 `json:"subject"`
	Body          map[string]interface{} `json:"body,omitempty"`
	SourceEventID int64                  `json:"sourceEventId,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Channel        string `json:"channel"`
	Status         string `json:"sendStatus"` // always "queued"
	QueuedAt       string `json:"queuedAt"`   // ISO 8601
}

const StatusQueued = "queued"
