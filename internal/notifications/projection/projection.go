// Package projection turns a serialized job into the context templates render against.
//
// Only fields named by a Whitelist are copied; the walk is driven by the whitelist and not
// by the record, so extra fields in a record (credentials, extra_vars, event payloads)
// never reach a template.
package projection

import (
	"encoding/json"
	"fmt"
)

// Context keys supplied next to the projected job.
const (
	KeyJob             = "job"
	KeyFriendlyName    = "job_friendly_name"
	KeyURL             = "url"
	KeyJobSummaryDict  = "job_summary_dict"
	summaryIndentation = "    "
)

// Source is what Build needs from an event source besides its serialization.
type Source interface {
	FriendlyName() string
	UIURL() string
	NotificationData() map[string]interface{}
}

// Project copies the whitelisted subset of record into a new map.
func Project(record map[string]interface{}, wl Whitelist) map[string]interface{} {
	node := make(map[string]interface{})
	project(node, record, wl)
	return node
}

func project(node, fields map[string]interface{}, wl Whitelist) {
	for _, f := range wl {
		value, ok := fields[f.Name]
		if !ok {
			continue
		}
		if f.Children == nil {
			node[f.Name] = value
			continue
		}
		child := make(map[string]interface{})
		if nested, ok := value.(map[string]interface{}); ok {
			project(child, nested, f.Children)
		}
		node[f.Name] = child
	}
}

// Build assembles the full render context for a serialized job.
func Build(src Source, serialized map[string]interface{}) (map[string]interface{}, error) {
	summary, err := json.MarshalIndent(src.NotificationData(), "", summaryIndentation)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}

	return map[string]interface{}{
		KeyJob:            Project(serialized, JobFieldsWhitelist),
		KeyFriendlyName:   src.FriendlyName(),
		KeyURL:            src.UIURL(),
		KeyJobSummaryDict: string(summary),
	}, nil
}
