// pkg/registry/schema.go
package registry

import "notification-dispatch/internal/common/validation"

// ChannelRegistry is the published description of every notification channel the
// dispatcher can deliver through.
type ChannelRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Channels    []Channel `json:"channels"`
}

type Channel struct {
	Type               string                `json:"type"`
	Label              string                `json:"label"`
	RecipientParameter string                `json:"recipientParameter"`
	SenderParameter    string                `json:"senderParameter,omitempty"`
	Parameters         []Parameter           `json:"parameters"`
	SensitiveFields    []string              `json:"sensitiveFields,omitempty"`
	ConfigSchema       validation.JSONSchema `json:"configSchema"`
}

type Parameter struct {
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Type      string      `json:"type"`
	Required  bool        `json:"required"`
	Default   interface{} `json:"default,omitempty"`
	Sensitive bool        `json:"sensitive,omitempty"`
}
