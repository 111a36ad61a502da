// internal/common/camunda/client_test.go
package camunda

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})

	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 1500*time.Millisecond, cfg.ConnectionTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = Unauthenticated", false},
		{"invalid job type", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		attempt  int
		wantCode errors.ErrorCode
		wantText string
	}{
		{"timeout", "context deadline exceeded", 3, errors.ErrorCode("TIMEOUT_ERROR"), "after 3 attempts"},
		{"auth", "rpc error: code = Unauthenticated", 0, errors.ErrorCode("AUTHENTICATION_ERROR"), "Zeebe operation 'topology' failed"},
		{"other", "rpc error: code = Internal", 1, errors.ErrorCode("EXTERNAL_SERVICE_ERROR"), "after 1 attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapZeebeError(stderrors.New(tt.msg), "topology", tt.attempt)

			assert.Equal(t, tt.wantCode, errors.Normalize(err).Code)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}
