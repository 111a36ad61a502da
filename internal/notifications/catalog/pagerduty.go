// internal/notifications/catalog/pagerduty.go
package catalog

import (
	"context"
	"fmt"

	httpclient "notification-dispatch/internal/common/http"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

func pagerDutyEntry() *Entry {
	return &Entry{
		Type:  "pagerduty",
		Label: "Pagerduty",
		Parameters: map[string]Parameter{
			"subdomain":   {Label: "Pagerduty subdomain", Type: TypeString, Required: true},
			"token":       {Label: "API Token", Type: TypePassword, Required: true, Sensitive: true},
			"service_key": {Label: "API Service/Integration Key", Type: TypeString, Required: true},
			"client_name": {Label: "Client Identifier", Type: TypeString, Required: true},
		},
		RecipientParameter: "service_key",
		SenderParameter:    "client_name",
		build:              buildPagerDuty,
	}
}

type pagerDutyBackend struct {
	http      *httpclient.Client
	token     string
	subdomain string
}

func buildPagerDuty(deps *Dependencies, p Params) (Backend, error) {
	if err := p.require("token", "subdomain"); err != nil {
		return nil, err
	}
	return &pagerDutyBackend{http: deps.HTTP, token: p.String("token"), subdomain: p.String("subdomain")}, nil
}

func (b *pagerDutyBackend) FormatBody(body map[string]interface{}) interface{} {
	return structuredBody(body)
}

// Send triggers one incident per service key with the body as custom details.
func (b *pagerDutyBackend) Send(ctx context.Context, msg Message) (int, error) {
	headers := map[string]string{"Authorization": "Token token=" + b.token}

	sent := 0
	for _, key := range msg.Recipients {
		event := map[string]interface{}{
			"routing_key":  key,
			"event_action": "trigger",
			"client":       msg.Sender,
			"payload": map[string]interface{}{
				"summary":        msg.Subject,
				"source":         b.subdomain,
				"severity":       "error",
				"custom_details": msg.Body,
			},
		}
		if _, err := b.http.PostJSON(ctx, pagerDutyEventsURL, headers, event); err != nil {
			return sent, fmt.Errorf("pagerduty trigger: %w", err)
		}
		sent++
	}
	return sent, nil
}
