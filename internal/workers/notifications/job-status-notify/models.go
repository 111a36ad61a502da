// internal/workers/notifications/job-status-notify/models.go
package jobstatusnotify

type Input struct {
	JobID         int64                  `json:"jobId"`
	JobName       string                 `json:"jobName"`
	JobType       string                 `json:"jobType,omitempty"`
	Status        string                 `json:"status"`
	JobTemplateID int64                  `json:"jobTemplateId"`
	Job           map[string]interface{} `json:"job,omitempty"`
}

type Output struct {
	NotificationsCreated int    `json:"notificationsCreated"`
	Status               string `json:"notifyStatus"` // "dispatched" or "none"
	DispatchedAt         string `json:"dispatchedAt"` // ISO 8601
}

const (
	StatusDispatched = "dispatched"
	StatusNone       = "none"
)
