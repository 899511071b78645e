package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JSON-RPC 2.0 standard error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server-defined error codes (-32000..-32008)
const (
	CodeExternalServiceError = -32000
	CodeResourceNotFound     = -32001
	CodeResourceAccessDenied = -32002
	CodeResourceUnavailable  = -32003
	CodeToolUnavailable      = -32004
	CodeTimeoutError         = -32005
	CodeValidationError      = -32006
	CodeCircuitBreakerOpen   = -32007
	CodeRateLimitError       = -32008
)

// ErrorType classifies errors into taxonomy buckets
type ErrorType string

const (
	ErrorTypeProtocol   ErrorType = "protocol"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeDependency ErrorType = "dependency"
	ErrorTypeResource   ErrorType = "resource"
	ErrorTypeInternal   ErrorType = "internal"
)

// RPCError is the inner error object of the envelope
type RPCError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// StructuredError is the JSON-RPC 2.0 error envelope returned for every
// failure kind. The wire fields are immutable after construction.
type StructuredError struct {
	JSONRPC   string    `json:"jsonrpc"`
	Err       RPCError  `json:"error"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"-"`

	observed bool
}

// MarkObserved flags the envelope as already logged and counted, so later
// failure paths do not record it a second time.
func (e *StructuredError) MarkObserved() {
	e.observed = true
}

// WasObserved reports whether MarkObserved has been called
func (e *StructuredError) WasObserved() bool {
	return e.observed
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Err.Code, e.Err.Message)
}

// Code returns the JSON-RPC error code
func (e *StructuredError) Code() int {
	return e.Err.Code
}

// Type returns the taxonomy bucket for the error code
func (e *StructuredError) Type() ErrorType {
	return TypeForCode(e.Err.Code)
}

// MarshalJSON renders the wire shape {"jsonrpc":"2.0","error":{...},"id"?}
func (e *StructuredError) MarshalJSON() ([]byte, error) {
	type envelope struct {
		JSONRPC string   `json:"jsonrpc"`
		Err     RPCError `json:"error"`
		ID      string   `json:"id,omitempty"`
	}
	return json.Marshal(envelope{JSONRPC: e.JSONRPC, Err: e.Err, ID: e.ID})
}

// New creates a structured error envelope
func New(code int, message string, data map[string]interface{}, requestID string) *StructuredError {
	return &StructuredError{
		JSONRPC:   "2.0",
		Err:       RPCError{Code: code, Message: message, Data: data},
		ID:        requestID,
		Timestamp: time.Now(),
	}
}

// TypeForCode maps an error code to its taxonomy bucket
func TypeForCode(code int) ErrorType {
	switch code {
	case CodeParseError, CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams:
		return ErrorTypeProtocol
	case CodeTimeoutError, CodeValidationError:
		return ErrorTypeExecution
	case CodeExternalServiceError, CodeCircuitBreakerOpen, CodeRateLimitError:
		return ErrorTypeDependency
	case CodeResourceNotFound, CodeResourceAccessDenied, CodeResourceUnavailable, CodeToolUnavailable:
		return ErrorTypeResource
	default:
		return ErrorTypeInternal
	}
}

// Convenience constructors for canonical error kinds

func NewParseError(detail string) *StructuredError {
	return New(CodeParseError, "Parse error: invalid JSON was received", map[string]interface{}{
		"detail": detail,
	}, "")
}

func NewInvalidRequest(detail string) *StructuredError {
	return New(CodeInvalidRequest, "Invalid request", map[string]interface{}{
		"detail": detail,
	}, "")
}

func NewMethodNotFound(method string) *StructuredError {
	return New(CodeMethodNotFound, fmt.Sprintf("Method not found: %s", method), map[string]interface{}{
		"method": method,
	}, "")
}

func NewInvalidParams(detail string) *StructuredError {
	return New(CodeInvalidParams, fmt.Sprintf("Invalid params: %s", detail), map[string]interface{}{
		"detail": detail,
	}, "")
}

func NewInternalError(detail string) *StructuredError {
	return New(CodeInternalError, "Internal error", map[string]interface{}{
		"detail":     detail,
		"suggestion": "retry the request; contact the operator if the problem persists",
	}, "")
}

// NewValidationError wraps a schema-validation failure with the failing tool
// name and per-field errors
func NewValidationError(tool string, fieldErrors map[string]string) *StructuredError {
	return New(CodeValidationError, fmt.Sprintf("Validation failed for tool %s", tool), map[string]interface{}{
		"tool":         tool,
		"field_errors": fieldErrors,
		"suggestion":   "check the tool schema and correct the listed fields",
	}, "")
}

// NewTimeoutError reports an operation that exceeded its timeout
func NewTimeoutError(tool string, timeoutSeconds float64) *StructuredError {
	return New(CodeTimeoutError, fmt.Sprintf("Tool %s timed out after %g seconds", tool, timeoutSeconds), map[string]interface{}{
		"tool":            tool,
		"timeout_seconds": timeoutSeconds,
		"suggestion":      "retry with a narrower query or a longer timeout",
	}, "")
}

func NewResourceNotFound(resource string) *StructuredError {
	return New(CodeResourceNotFound, fmt.Sprintf("Resource not found: %s", resource), map[string]interface{}{
		"resource": resource,
	}, "")
}

func NewResourceAccessDenied(resource string) *StructuredError {
	return New(CodeResourceAccessDenied, fmt.Sprintf("Access denied to resource: %s", resource), map[string]interface{}{
		"resource":   resource,
		"suggestion": "verify the gateway has credentials for this resource",
	}, "")
}

func NewResourceUnavailable(resource string) *StructuredError {
	return New(CodeResourceUnavailable, fmt.Sprintf("Resource unavailable: %s", resource), map[string]interface{}{
		"resource":   resource,
		"suggestion": "retry later",
	}, "")
}

// NewToolUnavailable names the unmet features that gate the tool
func NewToolUnavailable(tool string, missingFeatures []string) *StructuredError {
	return New(CodeToolUnavailable, fmt.Sprintf("Tool %s is currently unavailable", tool), map[string]interface{}{
		"tool":             tool,
		"missing_features": missingFeatures,
		"suggestion":       "the required backend dependencies are unhealthy; retry once they recover",
	}, "")
}

func NewExternalServiceError(service, upstreamMessage string) *StructuredError {
	return New(CodeExternalServiceError, fmt.Sprintf("External service %s failed: %s", service, upstreamMessage), map[string]interface{}{
		"service":          service,
		"upstream_message": upstreamMessage,
		"suggestion":       "retry later",
	}, "")
}

// NewRateLimitError reports throttling by an upstream service; retryAfter of
// zero means the upstream did not say when to retry
func NewRateLimitError(service string, retryAfterSeconds float64) *StructuredError {
	data := map[string]interface{}{
		"service": service,
	}
	if retryAfterSeconds > 0 {
		data["retry_after_seconds"] = retryAfterSeconds
		data["suggestion"] = fmt.Sprintf("wait %g seconds before retrying", retryAfterSeconds)
	} else {
		data["suggestion"] = "reduce request rate and retry later"
	}
	return New(CodeRateLimitError, fmt.Sprintf("Rate limited by %s", service), data, "")
}

func NewCircuitBreakerOpen(service string) *StructuredError {
	return New(CodeCircuitBreakerOpen, fmt.Sprintf("Circuit breaker open for %s", service), map[string]interface{}{
		"service":    service,
		"suggestion": "the service is failing; wait for the recovery window and retry",
	}, "")
}

// AsStructured extracts a StructuredError from an error chain
func AsStructured(err error) (*StructuredError, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// GetCode returns the JSON-RPC code for an error, defaulting to internal
func GetCode(err error) int {
	if se, ok := AsStructured(err); ok {
		return se.Err.Code
	}
	return CodeInternalError
}

// GetType returns the taxonomy bucket for an error
func GetType(err error) ErrorType {
	if se, ok := AsStructured(err); ok {
		return se.Type()
	}
	return ErrorTypeInternal
}

// IsRetryable reports whether the error kind is worth retrying. Protocol,
// validation and resource-access errors will fail the same way again;
// circuit-breaker-open is retryable only after the recovery window, so the
// retry executor must not hammer it.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeoutError, CodeExternalServiceError, CodeResourceUnavailable:
		return true
	case CodeCircuitBreakerOpen, CodeRateLimitError:
		return false
	case CodeParseError, CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams,
		CodeValidationError, CodeResourceNotFound, CodeResourceAccessDenied, CodeToolUnavailable:
		return false
	}
	// Unclassified errors default to retryable
	return true
}
