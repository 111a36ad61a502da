// internal/notifications/catalog/aws.go
package catalog

import (
	"context"
	"fmt"

	awsclient "notification-dispatch/internal/common/aws"
)

func sesEntry() *Entry {
	return &Entry{
		Type:  "ses",
		Label: "Amazon SES",
		Parameters: map[string]Parameter{
			"sender":     {Label: "Sender Email", Type: TypeString, Required: true},
			"recipients": {Label: "Recipient List", Type: TypeList, Required: true},
		},
		RecipientParameter: "recipients",
		SenderParameter:    "sender",
		build:              buildSES,
	}
}

type sesBackend struct {
	client awsclient.SESAPI
}

func buildSES(deps *Dependencies, _ Params) (Backend, error) {
	if deps.SES == nil {
		return nil, fmt.Errorf("SES client is not configured")
	}
	return &sesBackend{client: deps.SES}, nil
}

func (b *sesBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

func (b *sesBackend) Send(ctx context.Context, msg Message) (int, error) {
	sent := 0
	for _, rcpt := range msg.Recipients {
		input := awsclient.NewEmailInput(msg.Sender, rcpt, msg.Subject, bodyText(msg.Body))
		if _, err := b.client.SendEmail(ctx, input); err != nil {
			return sent, fmt.Errorf("ses send to %s: %w", rcpt, err)
		}
		sent++
	}
	return sent, nil
}

func snsEntry() *Entry {
	return &Entry{
		Type:  "sns",
		Label: "Amazon SNS (SMS)",
		Parameters: map[string]Parameter{
			"sender_id":     {Label: "Sender ID", Type: TypeString, Default: ""},
			"phone_numbers": {Label: "Destination Phone Numbers", Type: TypeList, Required: true},
		},
		RecipientParameter: "phone_numbers",
		SenderParameter:    "sender_id",
		build:              buildSNS,
	}
}

type snsBackend struct {
	client awsclient.SNSAPI
}

func buildSNS(deps *Dependencies, _ Params) (Backend, error) {
	if deps.SNS == nil {
		return nil, fmt.Errorf("SNS client is not configured")
	}
	return &snsBackend{client: deps.SNS}, nil
}

func (b *snsBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

// Send texts the subject; SMS bodies are too long for the summary.
func (b *snsBackend) Send(ctx context.Context, msg Message) (int, error) {
	sent := 0
	for _, phone := range msg.Recipients {
		if _, err := b.client.Publish(ctx, awsclient.NewSMSInput(phone, msg.Subject, msg.Sender)); err != nil {
			return sent, fmt.Errorf("sns publish to %s: %w", phone, err)
		}
		sent++
	}
	return sent, nil
}
