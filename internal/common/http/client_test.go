// internal/common/http/client_test.go
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello", payload["text"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	resp, err := c.PostJSON(context.Background(), server.URL, map[string]string{"Authorization": "Bearer abc"},
		map[string]string{"text": "hello"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestPostJSON_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad token\n"))
	}))
	defer server.Close()

	_, err := NewClient(time.Second).PostJSON(context.Background(), server.URL, nil, map[string]string{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "remote returned HTTP 400: bad token", err.Error())
}

func TestPostForm_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sid", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewClient(time.Second).PostForm(context.Background(), server.URL,
		url.Values{"To": {"+15550001"}}, &BasicAuth{Username: "sid", Password: "secret"})
	assert.NoError(t, err)
}

func TestDo_MethodAndInsecureTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(time.Second)

	_, err := c.Do(context.Background(), Request{Method: "put", URL: server.URL, Body: []byte("payload")})
	assert.Error(t, err, "self-signed certificate must be rejected by default")

	resp, err := c.Do(context.Background(), Request{
		Method: "put", URL: server.URL, Body: []byte("payload"), InsecureSkipVerify: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestDo_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(5*time.Second).Do(ctx, Request{URL: server.URL})
	assert.Error(t, err)
}
