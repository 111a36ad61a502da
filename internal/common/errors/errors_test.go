// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NewInvalidStatusError("cancelled"))

	assert.True(t, stderrors.Is(err, Sentinel(ErrCodeInvalidStatus)))
	assert.False(t, stderrors.Is(err, Sentinel(ErrCodeMessageBuildFailed)))
	assert.Contains(t, err.Error(), "status: cancelled")
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewDecryptionFailedError("password", stderrors.New("bad tag")))
	std := Normalize(wrapped)
	assert.Equal(t, ErrCodeDecryptionFailed, std.Code)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name    string
		err     *StandardError
		retries int
	}{
		{"retryable send failure", NewNotificationSendFailedError("webhook", stderrors.New("503")), 3},
		{"non retryable status", NewInvalidStatusError("cancelled"), 0},
		{"queue failure", NewQueuePublishFailedError(stderrors.New("redis down")), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			require.NotNil(t, bpmn)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.retries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.err.Retryable, vars["retryable"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeMessageBuildFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeQueuePublishFailed))
	assert.Equal(t, "CHANNEL", GetErrorCategory(ErrCodeDecryptionFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidStatus))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidStatus))
}
