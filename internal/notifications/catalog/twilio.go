// internal/notifications/catalog/twilio.go
package catalog

import (
	"context"
	"fmt"
	"net/url"

	httpclient "notification-dispatch/internal/common/http"
)

const twilioMessagesURL = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

func twilioEntry() *Entry {
	return &Entry{
		Type:  "twilio",
		Label: "Twilio",
		Parameters: map[string]Parameter{
			"account_sid":   {Label: "Account SID", Type: TypeString, Required: true},
			"account_token": {Label: "Account Token", Type: TypePassword, Required: true, Sensitive: true},
			"from_number":   {Label: "Source Phone Number", Type: TypeString, Required: true},
			"to_numbers":    {Label: "Destination SMS Numbers", Type: TypeList, Required: true},
		},
		RecipientParameter: "to_numbers",
		SenderParameter:    "from_number",
		build:              buildTwilio,
	}
}

type twilioBackend struct {
	http *httpclient.Client
	sid  string
	auth *httpclient.BasicAuth
}

func buildTwilio(deps *Dependencies, p Params) (Backend, error) {
	if err := p.require("account_sid", "account_token"); err != nil {
		return nil, err
	}
	return &twilioBackend{
		http: deps.HTTP,
		sid:  p.String("account_sid"),
		auth: &httpclient.BasicAuth{Username: p.String("account_sid"), Password: p.String("account_token")},
	}, nil
}

func (b *twilioBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

func (b *twilioBackend) Send(ctx context.Context, msg Message) (int, error) {
	endpoint := fmt.Sprintf(twilioMessagesURL, url.PathEscape(b.sid))

	sent := 0
	for _, to := range msg.Recipients {
		form := url.Values{"From": {msg.Sender}, "To": {to}, "Body": {msg.Subject}}
		if _, err := b.http.PostForm(ctx, endpoint, form, b.auth); err != nil {
			return sent, fmt.Errorf("twilio sms to %s: %w", to, err)
		}
		sent++
	}
	return sent, nil
}
