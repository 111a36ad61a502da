// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	userAgent       = "notification-dispatch/1.0"
	maxResponseBody = 64 << 10
)

// BasicAuth is sent as an Authorization: Basic header.
type BasicAuth struct {
	Username string
	Password string
}

// Request is one outbound call made by a notification backend.
type Request struct {
	Method             string
	URL                string
	Headers            map[string]string
	Body               []byte
	BasicAuth          *BasicAuth
	InsecureSkipVerify bool
}

// Response keeps the status and a bounded copy of the body.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned by the helpers when the remote answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is the shared outbound HTTP client for notification backends.
type Client struct {
	httpClient *http.Client

	insecureOnce   sync.Once
	insecureClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithTransport(timeout, nil)
}

// NewClientWithTransport uses rt instead of the default transport.
func NewClientWithTransport(timeout time.Duration, rt http.RoundTripper) *Client {
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
	}
}

// Do executes req and returns the response without interpreting the status.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	client := c.httpClient
	if req.InsecureSkipVerify {
		client = c.insecure()
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// PostJSON marshals payload and POSTs it, failing on a non-2xx status.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.expectOK(c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Headers: h, Body: body}))
}

// PostForm POSTs form values, failing on a non-2xx status.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, auth *BasicAuth) (*Response, error) {
	return c.expectOK(c.Do(ctx, Request{
		Method:    http.MethodPost,
		URL:       rawURL,
		Headers:   map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:      []byte(form.Encode()),
		BasicAuth: auth,
	}))
}

func (c *Client) expectOK(resp *Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}
	return resp, nil
}

// insecure returns a client that skips certificate verification, sharing the timeout.
// Custom round trippers other than *http.Transport are reused unchanged.
func (c *Client) insecure() *http.Client {
	c.insecureOnce.Do(func() {
		rt := c.httpClient.Transport
		if t, ok := rt.(*http.Transport); ok {
			clone := t.Clone()
			clone.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
			rt = clone
		}
		c.insecureClient = &http.Client{Timeout: c.httpClient.Timeout, Transport: rt}
	})
	return c.insecureClient
}
