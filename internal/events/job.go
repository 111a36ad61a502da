// Package events adapts job status changes arriving from Zeebe or Kafka to the dispatch
// event source contract.
package events

import (
	"context"
	"fmt"
	"strings"

	"notification-dispatch/internal/models"
)

// Job types and the name users see for them.
var friendlyNames = map[string]string{
	"job":              "Job",
	"workflow_job":     "Workflow Job",
	"project_update":   "Project Update",
	"inventory_update": "Inventory Update",
	"ad_hoc_command":   "Ad Hoc Command",
	"system_job":       "System Job",
}

// UI route segment per job type.
var uiPaths = map[string]string{
	"job":              "playbook",
	"workflow_job":     "workflow",
	"project_update":   "project",
	"inventory_update": "inventory",
	"ad_hoc_command":   "command",
	"system_job":       "system",
}

// notificationDataFields are copied from the job record into the notification body.
var notificationDataFields = []string{
	"id", "name", "url", "created_by", "started", "finished", "status", "traceback",
	"inventory", "project", "playbook", "credential", "limit", "extra_vars", "hosts",
}

// TemplateResolver looks up the notification templates attached to a job template.
type TemplateResolver interface {
	TemplatesForJobTemplate(ctx context.Context, jobTemplateID int64) (map[models.EventKind][]*models.NotificationTemplate, error)
}

// JobStatus is the wire shape of a status change.
type JobStatus struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Status        string                 `json:"status"`
	JobTemplateID int64                  `json:"job_template_id"`
	Job           map[string]interface{} `json:"job"`
}

// Validate checks the fields every source needs.
func (s JobStatus) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if strings.TrimSpace(s.Status) == "" {
		return fmt.Errorf("status is required")
	}
	if s.JobTemplateID <= 0 {
		return fmt.Errorf("job_template_id must be positive")
	}
	return nil
}

// Factory builds JobEvents bound to a resolver and the UI base URL.
type Factory struct {
	resolver  TemplateResolver
	uiBaseURL string
}

func NewFactory(resolver TemplateResolver, uiBaseURL string) *Factory {
	return &Factory{resolver: resolver, uiBaseURL: strings.TrimRight(uiBaseURL, "/")}
}

func (f *Factory) New(status JobStatus) *JobEvent {
	if status.Type == "" {
		status.Type = "job"
	}
	return &JobEvent{status: status, factory: f}
}

// JobEvent implements dispatch.EventSource for one job.
type JobEvent struct {
	status  JobStatus
	factory *Factory
}

func (e *JobEvent) ID() int64      { return e.status.ID }
func (e *JobEvent) Name() string   { return e.status.Name }
func (e *JobEvent) Status() string { return e.status.Status }

func (e *JobEvent) FriendlyName() string {
	if name, ok := friendlyNames[e.status.Type]; ok {
		return name
	}
	return "Job"
}

func (e *JobEvent) UIURL() string {
	path, ok := uiPaths[e.status.Type]
	if !ok {
		path = uiPaths["job"]
	}
	return fmt.Sprintf("%s/#/jobs/%s/%d", e.factory.uiBaseURL, path, e.status.ID)
}

func (e *JobEvent) NotificationTemplates(ctx context.Context) (map[models.EventKind][]*models.NotificationTemplate, error) {
	if e.factory.resolver == nil {
		return nil, fmt.Errorf("no template resolver configured")
	}
	return e.factory.resolver.TemplatesForJobTemplate(ctx, e.status.JobTemplateID)
}

// Serialize returns the job record with the identifying fields of the event on top.
func (e *JobEvent) Serialize() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(e.status.Job)+4)
	for k, v := range e.status.Job {
		out[k] = v
	}
	out["id"] = e.status.ID
	out["name"] = e.status.Name
	out["type"] = e.status.Type
	out["status"] = e.status.Status
	return out, nil
}

// NotificationData is the summary attached to every notification body.
func (e *JobEvent) NotificationData() map[string]interface{} {
	record, _ := e.Serialize()
	data := make(map[string]interface{}, len(notificationDataFields))
	for _, k := range notificationDataFields {
		if v, ok := record[k]; ok {
			data[k] = v
		}
	}
	data["url"] = e.UIURL()
	return data
}
