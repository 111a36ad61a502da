// internal/notifications/catalog/slack.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	httpclient "notification-dispatch/internal/common/http"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

func slackEntry() *Entry {
	return &Entry{
		Type:  "slack",
		Label: "Slack",
		Parameters: map[string]Parameter{
			"channels":  {Label: "Destination Channels", Type: TypeList, Required: true},
			"token":     {Label: "Token", Type: TypePassword, Required: true, Sensitive: true},
			"hex_color": {Label: "Notification Color", Type: TypeString, Default: ""},
		},
		RecipientParameter: "channels",
		build:              buildSlack,
	}
}

type slackBackend struct {
	http  *httpclient.Client
	token string
	color string
}

func buildSlack(deps *Dependencies, p Params) (Backend, error) {
	if err := p.require("token"); err != nil {
		return nil, err
	}
	return &slackBackend{http: deps.HTTP, token: p.String("token"), color: p.String("hex_color")}, nil
}

func (b *slackBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (b *slackBackend) Send(ctx context.Context, msg Message) (int, error) {
	headers := map[string]string{"Authorization": "Bearer " + b.token}

	sent := 0
	for _, channel := range msg.Recipients {
		payload := map[string]interface{}{"channel": strings.TrimPrefix(channel, "#")}
		if b.color != "" {
			payload["attachments"] = []map[string]string{{"color": b.color, "text": msg.Subject}}
		} else {
			payload["text"] = msg.Subject
		}

		resp, err := b.http.PostJSON(ctx, slackPostMessageURL, headers, payload)
		if err != nil {
			return sent, fmt.Errorf("slack post to %s: %w", channel, err)
		}
		var out slackResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return sent, fmt.Errorf("slack response: %w", err)
		}
		if !out.OK {
			return sent, fmt.Errorf("slack post to %s: %s", channel, out.Error)
		}
		sent++
	}
	return sent, nil
}
