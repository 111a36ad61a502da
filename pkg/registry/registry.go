// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"notification-dispatch/internal/notifications/catalog"
)

const Version = "1.0.0"

// Build describes every channel in cat, ordered by type.
func Build(cat *catalog.Catalog, now time.Time) *ChannelRegistry {
	reg := &ChannelRegistry{
		Version:     Version,
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
	for _, entry := range cat.Entries() {
		ch := Channel{
			Type:               entry.Type,
			Label:              entry.Label,
			RecipientParameter: entry.RecipientParameter,
			SenderParameter:    entry.SenderParameter,
			SensitiveFields:    entry.SensitiveFields(),
			ConfigSchema:       entry.Schema(),
		}
		for _, name := range entry.ParameterNames() {
			p := entry.Parameters[name]
			ch.Parameters = append(ch.Parameters, Parameter{
				Name:      name,
				Label:     p.Label,
				Type:      string(p.Type),
				Required:  p.Required,
				Default:   p.Default,
				Sensitive: p.Sensitive,
			})
		}
		reg.Channels = append(reg.Channels, ch)
	}
	return reg
}

// Find returns the channel with the given type.
func (r *ChannelRegistry) Find(channelType string) (*Channel, bool) {
	for i := range r.Channels {
		if r.Channels[i].Type == channelType {
			return &r.Channels[i], true
		}
	}
	return nil, false
}

func LoadRegistry(path string) (*ChannelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ChannelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

func SaveRegistry(path string, reg *ChannelRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
