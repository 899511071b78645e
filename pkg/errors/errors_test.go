package errors

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, -32700, NewParseError("bad json").Code())
	assert.Equal(t, -32600, NewInvalidRequest("missing method").Code())
	assert.Equal(t, -32601, NewMethodNotFound("no_such_tool").Code())
	assert.Equal(t, -32602, NewInvalidParams("limit must be a number").Code())
	assert.Equal(t, -32603, NewInternalError("boom").Code())

	assert.Equal(t, -32000, NewExternalServiceError("search", "503").Code())
	assert.Equal(t, -32001, NewResourceNotFound("report/42").Code())
	assert.Equal(t, -32002, NewResourceAccessDenied("report/42").Code())
	assert.Equal(t, -32003, NewResourceUnavailable("report/42").Code())
	assert.Equal(t, -32004, NewToolUnavailable("compile_report", nil).Code())
	assert.Equal(t, -32005, NewTimeoutError("search_events", 30).Code())
	assert.Equal(t, -32006, NewValidationError("search_events", nil).Code())
	assert.Equal(t, -32007, NewCircuitBreakerOpen("search").Code())
	assert.Equal(t, -32008, NewRateLimitError("reputation_api", 30).Code())
}

func TestMarshalJSON_WireShape(t *testing.T) {
	se := New(CodeValidationError, "Validation failed", map[string]interface{}{
		"tool": "search_events",
	}, "req-7")

	raw, err := json.Marshal(se)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "req-7", decoded["id"])
	assert.NotContains(t, decoded, "timestamp", "timestamp is internal only")

	errObj, ok := decoded["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(CodeValidationError), errObj["code"])
	assert.Equal(t, "Validation failed", errObj["message"])

	data, ok := errObj["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "search_events", data["tool"])
}

func TestMarshalJSON_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(New(CodeInternalError, "Internal error", nil, ""))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.NotContains(t, decoded, "id")
	errObj := decoded["error"].(map[string]interface{})
	assert.NotContains(t, errObj, "data")
}

func TestErrorInterface(t *testing.T) {
	var err error = NewTimeoutError("search_events", 30)
	assert.Equal(t, "[-32005] Tool search_events timed out after 30 seconds", err.Error())
}

func TestTypeForCode(t *testing.T) {
	assert.Equal(t, ErrorTypeProtocol, TypeForCode(CodeParseError))
	assert.Equal(t, ErrorTypeProtocol, TypeForCode(CodeMethodNotFound))
	assert.Equal(t, ErrorTypeExecution, TypeForCode(CodeTimeoutError))
	assert.Equal(t, ErrorTypeExecution, TypeForCode(CodeValidationError))
	assert.Equal(t, ErrorTypeDependency, TypeForCode(CodeExternalServiceError))
	assert.Equal(t, ErrorTypeDependency, TypeForCode(CodeCircuitBreakerOpen))
	assert.Equal(t, ErrorTypeResource, TypeForCode(CodeToolUnavailable))
	assert.Equal(t, ErrorTypeInternal, TypeForCode(CodeInternalError))
	assert.Equal(t, ErrorTypeInternal, TypeForCode(0))
}

func TestNewValidationError_CarriesFieldErrors(t *testing.T) {
	se := NewValidationError("lookup_reputation", map[string]string{
		"indicator":      "required string",
		"indicator_type": "must be one of ip, domain, hash, url",
	})

	assert.Contains(t, se.Err.Message, "lookup_reputation")
	fields, ok := se.Err.Data["field_errors"].(map[string]string)
	require.True(t, ok)
	assert.Len(t, fields, 2)
	assert.NotEmpty(t, se.Err.Data["suggestion"])
}

func TestNewToolUnavailable_NamesMissingFeatures(t *testing.T) {
	se := NewToolUnavailable("compile_report", []string{"event_search", "reporting"})

	assert.Equal(t, CodeToolUnavailable, se.Code())
	assert.Equal(t, []string{"event_search", "reporting"}, se.Err.Data["missing_features"])
}

func TestNewRateLimitError_RetryAfter(t *testing.T) {
	se := NewRateLimitError("reputation_api", 120)
	assert.Equal(t, float64(120), se.Err.Data["retry_after_seconds"])
	assert.Contains(t, se.Err.Data["suggestion"], "120")

	se = NewRateLimitError("reputation_api", 0)
	assert.NotContains(t, se.Err.Data, "retry_after_seconds")
	assert.NotEmpty(t, se.Err.Data["suggestion"])
}

func TestAsStructured(t *testing.T) {
	se := NewInternalError("boom")

	extracted, ok := AsStructured(se)
	require.True(t, ok)
	assert.Equal(t, se, extracted)

	wrapped := fmt.Errorf("dispatch failed: %w", se)
	extracted, ok = AsStructured(wrapped)
	require.True(t, ok)
	assert.Equal(t, se, extracted)

	_, ok = AsStructured(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestMarkObserved(t *testing.T) {
	se := NewExternalServiceError("search", "503")
	assert.False(t, se.WasObserved())

	se.MarkObserved()
	assert.True(t, se.WasObserved())
}

func TestGetCode_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternalError, GetCode(fmt.Errorf("plain")))
	assert.Equal(t, CodeTimeoutError, GetCode(NewTimeoutError("t", 1)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTimeoutError("t", 1)))
	assert.True(t, IsRetryable(NewExternalServiceError("search", "503")))
	assert.True(t, IsRetryable(NewResourceUnavailable("index")))
	assert.True(t, IsRetryable(fmt.Errorf("plain network error")))

	assert.False(t, IsRetryable(NewCircuitBreakerOpen("search")))
	assert.False(t, IsRetryable(NewRateLimitError("search", 10)))
	assert.False(t, IsRetryable(NewValidationError("t", nil)))
	assert.False(t, IsRetryable(NewMethodNotFound("nope")))
	assert.False(t, IsRetryable(NewToolUnavailable("t", nil)))
}
