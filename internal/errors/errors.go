package errors

import (
	"fmt"
	"strings"
	"time"
)

/**
 * Custom error types for the recognition worker
 *
 * Engine failures are communicated to orchestrator callers through the
 * normal Result shape, never as raised errors. These structured errors serve
 * the queue and storage layers, where a machine-readable code and details map
 * are persisted alongside the request record.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Recognition errors
	ErrorEngineFailed        ErrorCode = "ENGINE_FAILED"
	ErrorAllEnginesExhausted ErrorCode = "ALL_ENGINES_EXHAUSTED"
	ErrorProcessingTimeout   ErrorCode = "PROCESSING_TIMEOUT"

	// Collaborator errors
	ErrorCacheFailed   ErrorCode = "CACHE_FAILED"
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
	ErrorQueueFailed   ErrorCode = "QUEUE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewEngineFailedError(requestID, engineID, cause string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineFailed,
		Message:   fmt.Sprintf("Engine %s failed: %s", engineID, cause),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine_id": engineID,
		},
	}
}

func NewAllEnginesExhaustedError(requestID string, causes []string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorAllEnginesExhausted,
		Message:   strings.Join(causes, "; "),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"attempts": len(causes),
		},
	}
}

func NewProcessingTimeoutError(requestID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(requestID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store request outcome",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewCacheFailedError(requestID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorCacheFailed,
		Message:   "Result cache operation failed",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
