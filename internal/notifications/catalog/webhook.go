// internal/notifications/catalog/webhook.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	httpclient "notification-dispatch/internal/common/http"
)

func webhookEntry() *Entry {
	return &Entry{
		Type:  "webhook",
		Label: "Webhook",
		Parameters: map[string]Parameter{
			"url":                      {Label: "Target URL", Type: TypeString, Required: true},
			"http_method":              {Label: "HTTP Method", Type: TypeString, Required: true, Default: http.MethodPost},
			"username":                 {Label: "Username", Type: TypeString, Default: ""},
			"password":                 {Label: "Password", Type: TypePassword, Default: "", Sensitive: true},
			"disable_ssl_verification": {Label: "Verify SSL", Type: TypeBool, Default: false},
			"headers":                  {Label: "HTTP Headers", Type: TypeObject, Default: map[string]interface{}{}},
		},
		RecipientParameter: "url",
		SenderParameter:    "http_method",
		build:              buildWebhook,
	}
}

type webhookBackend struct {
	http     *httpclient.Client
	auth     *httpclient.BasicAuth
	headers  map[string]string
	insecure bool
}

func buildWebhook(deps *Dependencies, p Params) (Backend, error) {
	b := &webhookBackend{
		http:     deps.HTTP,
		headers:  map[string]string{"Content-Type": "application/json"},
		insecure: p.Bool("disable_ssl_verification"),
	}
	for k, v := range p.Object("headers") {
		b.headers[k] = fmt.Sprint(v)
	}
	if user := p.String("username"); user != "" || p.String("password") != "" {
		b.auth = &httpclient.BasicAuth{Username: user, Password: p.String("password")}
	}
	return b, nil
}

func (b *webhookBackend) FormatBody(body map[string]interface{}) interface{} {
	return structuredBody(body)
}

// Send writes the body as JSON to every URL with the configured method (POST or PUT).
func (b *webhookBackend) Send(ctx context.Context, msg Message) (int, error) {
	method := strings.ToUpper(msg.Sender)
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodPut {
		return 0, fmt.Errorf("unsupported webhook method %q", msg.Sender)
	}

	payload, err := json.Marshal(msg.Body)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook body: %w", err)
	}

	sent := 0
	for _, target := range msg.Recipients {
		err := doJSON(ctx, b.http, httpclient.Request{
			Method:             method,
			URL:                target,
			Headers:            b.headers,
			Body:               payload,
			BasicAuth:          b.auth,
			InsecureSkipVerify: b.insecure,
		})
		if err != nil {
			return sent, fmt.Errorf("webhook %s: %w", RedactURL(target), err)
		}
		sent++
	}
	return sent, nil
}

// doJSON runs req and turns a non-2xx status into an error.
func doJSON(ctx context.Context, client *httpclient.Client, req httpclient.Request) error {
	if req.Headers == nil {
		req.Headers = map[string]string{"Content-Type": "application/json"}
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &httpclient.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}
	return nil
}
