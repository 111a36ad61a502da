// internal/notifications/catalog/chat.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	httpclient "notification-dispatch/internal/common/http"
)

func mattermostEntry() *Entry {
	return &Entry{
		Type:  "mattermost",
		Label: "Mattermost",
		Parameters: map[string]Parameter{
			"mattermost_url":           {Label: "Target URL", Type: TypeString, Required: true},
			"mattermost_username":      {Label: "Username", Type: TypeString, Default: ""},
			"mattermost_channel":       {Label: "Channel", Type: TypeString, Default: ""},
			"mattermost_icon_url":      {Label: "Icon URL", Type: TypeString, Default: ""},
			"mattermost_no_verify_ssl": {Label: "Verify SSL", Type: TypeBool, Default: false},
		},
		RecipientParameter: "mattermost_url",
		build: func(deps *Dependencies, p Params) (Backend, error) {
			return &incomingWebhookBackend{
				http:     deps.HTTP,
				username: p.String("mattermost_username"),
				channel:  p.String("mattermost_channel"),
				iconURL:  p.String("mattermost_icon_url"),
				insecure: p.Bool("mattermost_no_verify_ssl"),
			}, nil
		},
	}
}

func rocketChatEntry() *Entry {
	return &Entry{
		Type:  "rocketchat",
		Label: "Rocket.Chat",
		Parameters: map[string]Parameter{
			"rocketchat_url":           {Label: "Target URL", Type: TypeString, Required: true},
			"rocketchat_username":      {Label: "Username", Type: TypeString, Default: ""},
			"rocketchat_icon_url":      {Label: "Icon URL", Type: TypeString, Default: ""},
			"rocketchat_no_verify_ssl": {Label: "Verify SSL", Type: TypeBool, Default: false},
		},
		RecipientParameter: "rocketchat_url",
		build: func(deps *Dependencies, p Params) (Backend, error) {
			return &incomingWebhookBackend{
				http:     deps.HTTP,
				username: p.String("rocketchat_username"),
				iconURL:  p.String("rocketchat_icon_url"),
				insecure: p.Bool("rocketchat_no_verify_ssl"),
			}, nil
		},
	}
}

// incomingWebhookBackend posts {"text": subject} to Slack-compatible incoming webhooks.
type incomingWebhookBackend struct {
	http     *httpclient.Client
	username string
	channel  string
	iconURL  string
	insecure bool
}

func (b *incomingWebhookBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

func (b *incomingWebhookBackend) Send(ctx context.Context, msg Message) (int, error) {
	payload := map[string]string{"text": msg.Subject}
	if b.username != "" {
		payload["username"] = b.username
	}
	if b.channel != "" {
		payload["channel"] = b.channel
	}
	if b.iconURL != "" {
		payload["icon_url"] = b.iconURL
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, target := range msg.Recipients {
		err := doJSON(ctx, b.http, httpclient.Request{URL: target, Body: raw, InsecureSkipVerify: b.insecure})
		if err != nil {
			return sent, fmt.Errorf("post to %s: %w", RedactURL(target), err)
		}
		sent++
	}
	return sent, nil
}
