// Package catalog is the closed set of delivery channels a notification template can target.
//
// Each Entry declares the channel's parameters (which double as the JSON schema of a
// template's configuration), names the parameter that carries recipients and the optional
// one that carries the sender, and builds a Backend from a flat parameter map. The set is
// compiled in; there is no runtime registration.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/time/rate"

	awsclient "notification-dispatch/internal/common/aws"
	"notification-dispatch/internal/common/errors"
	httpclient "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/validation"
)

type ParameterType string

const (
	TypeString   ParameterType = "string"
	TypeInt      ParameterType = "int"
	TypeBool     ParameterType = "bool"
	TypeList     ParameterType = "list"
	TypePassword ParameterType = "password"
	TypeObject   ParameterType = "object"
)

// Parameter describes one configuration field of a channel.
type Parameter struct {
	Label     string        `json:"label"`
	Type      ParameterType `json:"type"`
	Required  bool          `json:"required"`
	Default   interface{}   `json:"default,omitempty"`
	Sensitive bool          `json:"sensitive,omitempty"`
}

// Message is what a backend delivers.
type Message struct {
	Subject    string
	Body       interface{}
	Sender     string
	Recipients []string
}

// Backend delivers messages over one channel. Send returns how many recipients were
// reached before the first failure.
type Backend interface {
	Send(ctx context.Context, msg Message) (int, error)
	FormatBody(body map[string]interface{}) interface{}
}

type buildFunc func(deps *Dependencies, params Params) (Backend, error)

// Entry is one channel in the catalog.
type Entry struct {
	Type               string               `json:"type"`
	Label              string               `json:"label"`
	Parameters         map[string]Parameter `json:"parameters"`
	RecipientParameter string               `json:"recipient_parameter"`
	SenderParameter    string               `json:"sender_parameter,omitempty"`

	build   buildFunc
	deps    *Dependencies
	limiter *rate.Limiter
}

// Dependencies are the shared clients backends are built with.
type Dependencies struct {
	HTTP              *httpclient.Client
	SES               awsclient.SESAPI
	SNS               awsclient.SNSAPI
	Mailer            Mailer
	TelegramServerURL string

	// RatePerSecond <= 0 disables per-channel rate limiting.
	RatePerSecond float64
	Burst         int
}

// Catalog maps channel types to entries.
type Catalog struct {
	entries map[string]*Entry
	types   []string
}

// New builds the catalog. Nil clients are replaced by defaults where one exists; channels
// whose client is missing fail at send time.
func New(deps Dependencies) *Catalog {
	if deps.HTTP == nil {
		deps.HTTP = httpclient.NewClient(defaultHTTPTimeout)
	}
	if deps.Mailer == nil {
		deps.Mailer = SMTPMailer{}
	}

	c := &Catalog{entries: make(map[string]*Entry)}
	for _, e := range []*Entry{
		emailEntry(), sesEntry(), snsEntry(), slackEntry(), twilioEntry(), pagerDutyEntry(),
		grafanaEntry(), webhookEntry(), mattermostEntry(), rocketChatEntry(), telegramEntry(),
	} {
		e.deps = &deps
		if deps.RatePerSecond > 0 {
			burst := deps.Burst
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(deps.RatePerSecond), burst)
		}
		c.entries[e.Type] = e
		c.types = append(c.types, e.Type)
	}
	sort.Strings(c.types)
	return c
}

// Lookup returns the entry for channel type t.
func (c *Catalog) Lookup(t string) (*Entry, error) {
	e, ok := c.entries[t]
	if !ok {
		return nil, errors.NewUnknownChannelError(t)
	}
	return e, nil
}

// Types lists channel types in sorted order.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.types...)
}

// Entries lists entries in type order.
func (c *Catalog) Entries() []*Entry {
	out := make([]*Entry, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, c.entries[t])
	}
	return out
}

// ValidateConfiguration checks cfg against the channel's parameter schema.
func (c *Catalog) ValidateConfiguration(t string, cfg map[string]interface{}) error {
	e, err := c.Lookup(t)
	if err != nil {
		return err
	}

	result, err := validation.ValidateInput(cfg, e.Schema())
	if err != nil {
		return errors.NewConfigurationInvalidError(t, err.Error())
	}
	if !result.Valid {
		return errors.NewConfigurationInvalidError(t, result.Error())
	}
	return nil
}

// ParameterNames returns the parameter keys in sorted order.
func (e *Entry) ParameterNames() []string {
	names := make([]string, 0, len(e.Parameters))
	for name := range e.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SensitiveFields returns the parameters stored encrypted.
func (e *Entry) SensitiveFields() []string {
	var out []string
	for _, name := range e.ParameterNames() {
		if e.Parameters[name].Sensitive {
			out = append(out, name)
		}
	}
	return out
}

// Schema renders the parameters as a JSON schema. Parameters with a default are optional.
// The recipient parameter accepts a list or a single string.
func (e *Entry) Schema() validation.JSONSchema {
	schema := validation.JSONSchema{
		Schema:     "http://json-schema.org/draft-07/schema#",
		Type:       "object",
		Properties: make(map[string]validation.Property, len(e.Parameters)),
	}

	for _, name := range e.ParameterNames() {
		p := e.Parameters[name]
		prop := validation.Property{Description: p.Label, Default: p.Default}
		switch {
		case name == e.RecipientParameter:
			prop.AnyOf = []validation.Property{
				{Type: "array", Items: &validation.Property{Type: "string"}},
				{Type: "string"},
			}
		case p.Type == TypeInt:
			prop.Type = "integer"
		case p.Type == TypeBool:
			prop.Type = "boolean"
		case p.Type == TypeList:
			prop.Type = "array"
			prop.Items = &validation.Property{Type: "string"}
		case p.Type == TypeObject:
			prop.Type = "object"
		default:
			prop.Type = "string"
		}
		schema.Properties[name] = prop

		if p.Required && p.Default == nil {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

// ApplyDefaults returns a copy of params with every absent parameter set to its default.
func (e *Entry) ApplyDefaults(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(e.Parameters))
	for k, v := range params {
		out[k] = v
	}
	for name, p := range e.Parameters {
		if _, ok := out[name]; !ok && p.Default != nil {
			out[name] = p.Default
		}
	}
	return out
}

// Build constructs a backend from params, which no longer carry the recipient and sender.
func (e *Entry) Build(params map[string]interface{}) (Backend, error) {
	deps := e.deps
	if deps == nil {
		deps = &Dependencies{HTTP: httpclient.NewClient(defaultHTTPTimeout), Mailer: SMTPMailer{}}
	}

	backend, err := e.build(deps, Params(params))
	if err != nil {
		return nil, errors.NewConfigurationInvalidError(e.Type, err.Error())
	}
	if e.limiter != nil {
		backend = &limitedBackend{Backend: backend, limiter: e.limiter, channel: e.Type}
	}
	return backend, nil
}

// limitedBackend waits on the channel limiter before each send.
type limitedBackend struct {
	Backend
	limiter *rate.Limiter
	channel string
}

func (b *limitedBackend) Send(ctx context.Context, msg Message) (int, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%s rate limit: %w", b.channel, err)
	}
	return b.Backend.Send(ctx, msg)
}
