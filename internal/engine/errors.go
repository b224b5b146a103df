// Package engine provides agent orchestration functionality.
// This file contains error classification and handling.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the closed taxonomy every terminal failure maps into.
type ErrorType string

const (
	ErrorTimeout    ErrorType = "timeout"
	ErrorParsing    ErrorType = "parsing"
	ErrorProcessing ErrorType = "processing"
	ErrorUnknown    ErrorType = "unknown"
)

// RunError wraps a failure with its classification and operator details.
type RunError struct {
	Type    ErrorType
	Err     error
	Details string
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return string(e.Type)
}

func (e *RunError) Unwrap() error { return e.Err }

// NewRunError creates a classified error.
func NewRunError(typ ErrorType, err error, details string) *RunError {
	return &RunError{Type: typ, Err: err, Details: details}
}

// newParseError builds a parsing-class error carrying a diagnostic window
// around the reported decode offset.
func newParseError(text string, err error) *RunError {
	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}

	details := err.Error()
	if offset >= 0 {
		details = fmt.Sprintf("%v near %q", err, errorWindow(text, offset))
	}
	return NewRunError(ErrorParsing, fmt.Errorf("malformed completion payload: %w", err), details)
}

// ErrRunInProgress is returned when a second run is issued for a project
// that already has one in flight.
var ErrRunInProgress = errors.New("a run is already in progress for this project")

// Classify maps an arbitrary error into the taxonomy. Already-classified
// errors keep their type; everything else falls back on string matching,
// then unknown.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorUnknown
	}

	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Type
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded") {
		return ErrorTimeout
	}

	if strings.Contains(errStr, "json") ||
		strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "parse") {
		return ErrorParsing
	}

	if strings.Contains(errStr, "no actions") ||
		strings.Contains(errStr, "unknown action") ||
		strings.Contains(errStr, "iteration limit") {
		return ErrorProcessing
	}

	return ErrorUnknown
}

// UserMessage returns the fixed user-facing message for a failure class.
// Raw internals stay in RunResult.ErrorDetails for operators.
func UserMessage(typ ErrorType) string {
	switch typ {
	case ErrorTimeout:
		return "The request took too long to process. Please try a simpler request."
	case ErrorParsing:
		return "There was an error processing the AI response. Please try again."
	case ErrorProcessing:
		return "The AI could not produce any file changes for this request. Please rephrase and try again."
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}

// retryClass mirrors the provider-error buckets used by the completion
// retry loop.
type retryClass int

const (
	retryNo retryClass = iota
	retryYes
	retryMaybe
)

// classifyCompletionError decides whether a provider failure is worth
// retrying. Rate limits and 5xx-class failures retry; auth, bad request
// and quota failures never do.
func classifyCompletionError(err error) retryClass {
	if err == nil {
		return retryNo
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return retryYes
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") {
		return retryYes
	}

	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "temporary failure") {
		return retryYes
	}

	if strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "timeout") {
		return retryMaybe
	}

	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "quota") {
		return retryNo
	}

	return retryNo
}
