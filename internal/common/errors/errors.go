// Package errors provides standardized error handling for the dispatch engine and its workers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidStatus            ErrorCode = "INVALID_STATUS"
	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"
	ErrCodeTemplateResolutionFailed ErrorCode = "TEMPLATE_RESOLUTION_FAILED"
	ErrCodeMessageBuildFailed       ErrorCode = "MESSAGE_BUILD_FAILED"

	ErrCodeUnknownChannel       ErrorCode = "UNKNOWN_CHANNEL"
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeDecryptionFailed     ErrorCode = "DECRYPTION_FAILED"

	ErrCodeNotificationNotFound   ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeNotificationSettled    ErrorCode = "NOTIFICATION_ALREADY_SETTLED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateTemplate        ErrorCode = "DUPLICATE_TEMPLATE"

	ErrCodeQueuePublishFailed ErrorCode = "QUEUE_PUBLISH_FAILED"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so package-level
// sentinels work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel returns a bare StandardError usable as an errors.Is target.
func Sentinel(code ErrorCode) *StandardError {
	return &StandardError{Code: code, Message: string(code)}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusError rejects a job status outside running/succeeded/failed.
func NewInvalidStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidStatus,
		"status must be either running, succeeded or failed",
		fmt.Sprintf("status: %s", status), false)
}

func NewTemplateNotFoundError(templateID string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Notification template not found",
		fmt.Sprintf("templateId: %s", templateID), false)
}

func NewTemplateValidationFailedError(details string) *StandardError {
	return newError(ErrCodeTemplateValidationFailed, "Notification template validation failed", details, false)
}

func NewTemplateResolutionFailedError(err error) *StandardError {
	return newError(ErrCodeTemplateResolutionFailed, "Could not resolve notification templates", err.Error(), true)
}

// NewMessageBuildFailedError marks an event source that cannot produce its context.
func NewMessageBuildFailedError(err error) *StandardError {
	return newError(ErrCodeMessageBuildFailed, "Event source failed to build notification message", err.Error(), false)
}

func NewUnknownChannelError(channel string) *StandardError {
	return newError(ErrCodeUnknownChannel, "Unknown notification channel",
		fmt.Sprintf("channel: %s", channel), false)
}

func NewConfigurationInvalidError(channel, details string) *StandardError {
	return newError(ErrCodeConfigurationInvalid, fmt.Sprintf("Invalid %s configuration", channel), details, false)
}

func NewDecryptionFailedError(field string, err error) *StandardError {
	return newError(ErrCodeDecryptionFailed, "Could not decrypt sensitive field",
		fmt.Sprintf("field: %s, error: %s", field, err.Error()), false)
}

func NewNotificationNotFoundError(notificationID string) *StandardError {
	return newError(ErrCodeNotificationNotFound, "Notification not found",
		fmt.Sprintf("notificationId: %s", notificationID), false)
}

// NewNotificationSettledError reports an outcome written for a notification that is no
// longer pending.
func NewNotificationSettledError(notificationID string) *StandardError {
	return newError(ErrCodeNotificationSettled, "Notification already settled",
		fmt.Sprintf("notification_id: %s", notificationID), false)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", channel, err.Error()), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", query, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewDuplicateTemplateError(name string) *StandardError {
	return newError(ErrCodeDuplicateTemplate, "Notification template already exists",
		fmt.Sprintf("name: %s", name), false)
}

func NewQueuePublishFailedError(err error) *StandardError {
	return newError(ErrCodeQueuePublishFailed, "Could not hand off notification", err.Error(), true)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeTemplateResolutionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeQueuePublishFailed:
		return 3
	case "TIMEOUT_ERROR", "EXTERNAL_SERVICE_ERROR":
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "MESSAGE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "QUEUE"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CHANNEL") || strings.Contains(codeStr, "CONFIGURATION") ||
		strings.Contains(codeStr, "DECRYPTION"):
		return "CHANNEL"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
