// internal/notifications/catalog/body.go
package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// textBody is the body of channels that send plain text: the rendered body when there is
// one, otherwise a status line followed by the indented event data.
func textBody(body map[string]interface{}) interface{} {
	if rendered, ok := body["body"].(string); ok {
		return rendered
	}

	summary, err := json.MarshalIndent(body, "", "    ")
	if err != nil {
		summary = []byte(fmt.Sprint(body))
	}
	return fmt.Sprintf("%v #%v had status %v, view details at %v\n\n%s",
		valueOr(body["friendly_name"]), valueOr(body["id"]), valueOr(body["status"]), valueOr(body["url"]),
		summary)
}

// structuredBody prefers a rendered body that parses as JSON and falls back to the event data.
func structuredBody(body map[string]interface{}) interface{} {
	if rendered, ok := body["body"].(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(rendered), &parsed); err == nil {
			return parsed
		}
	}
	return body
}

func bodyText(body interface{}) string {
	switch b := body.(type) {
	case string:
		return b
	case nil:
		return ""
	default:
		raw, err := json.MarshalIndent(b, "", "    ")
		if err != nil {
			return fmt.Sprint(b)
		}
		return string(raw)
	}
}

func valueOr(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

// RedactURL hides userinfo passwords and query values so URLs can be logged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery == "" {
		return redacted
	}

	q := u.Query()
	for key := range q {
		q.Set(key, "REDACTED")
	}
	r, err := url.Parse(redacted)
	if err != nil {
		return redacted
	}
	r.RawQuery = q.Encode()
	return r.String()
}
