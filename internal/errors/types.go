package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// ErrorType represents the classification of errors for retry logic
type ErrorType int

const (
	// ErrorTypeTransient - retry-able errors
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent - non-retry-able errors
	ErrorTypePermanent
	// ErrorTypeSerialization - the provider rejected the request body itself
	ErrorTypeSerialization
)

var (
	// ErrAmbiguousResponse marks a model turn that is neither a clean finish nor a clean tool-call batch.
	ErrAmbiguousResponse = errors.New("ambiguous model response shape")
	// ErrRunBusy is returned when a second turn is submitted while one is still running.
	ErrRunBusy = errors.New("run already has a turn in progress")
)

// TransientError represents an error that can be retried
type TransientError struct {
	Err        error
	RetryAfter int    // Seconds to wait before retry (from Retry-After header)
	StatusCode int    // HTTP status code if applicable
	Message    string // LLM-friendly message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // LLM-friendly message
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// SerializationError reports that the provider could not accept the prompt as
// encoded, typically because the history tail is malformed or too large.
type SerializationError struct {
	Err     error
	Message string
}

func (e *SerializationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("serialization error: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// RunFailedError is the single terminal error a run surfaces to its caller.
type RunFailedError struct {
	RunID string
	Node  string
	Cause error
}

func (e *RunFailedError) Error() string {
	switch {
	case e.RunID != "" && e.Node != "":
		return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Node, e.Cause)
	case e.RunID != "":
		return fmt.Sprintf("run %s failed: %v", e.RunID, e.Cause)
	default:
		return fmt.Sprintf("run failed: %v", e.Cause)
	}
}

func (e *RunFailedError) Unwrap() error {
	return e.Cause
}

// InvariantError flags a state the code believes unreachable.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: %s", e.Op, e.Detail)
}

// IsTransient checks if an error is retry-able
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	if isNetworkError(err) {
		return true
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return isTransientHTTPStatus(statusCode)
	}

	return isSyscallError(err)
}

// IsPermanent checks if an error is non-retry-able
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return false
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return isPermanentHTTPStatus(statusCode)
	}

	lowerErr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"not found",
		"permission denied",
		"unauthorized",
		"forbidden",
		"bad request",
	} {
		if strings.Contains(lowerErr, pattern) {
			return true
		}
	}

	return false
}

// IsSerialization reports whether the request body could not be encoded or
// was rejected as malformed.
func IsSerialization(err error) bool {
	if err == nil {
		return false
	}

	var serializationErr *SerializationError
	if errors.As(err, &serializationErr) {
		return true
	}

	var marshalerErr *json.MarshalerError
	if errors.As(err, &marshalerErr) {
		return true
	}
	var unsupportedType *json.UnsupportedTypeError
	if errors.As(err, &unsupportedType) {
		return true
	}
	var unsupportedValue *json.UnsupportedValueError
	return errors.As(err, &unsupportedValue)
}

// IsCancelled reports whether err stems from the caller cancelling the context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// GetErrorType classifies an error
func GetErrorType(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypePermanent
	case IsSerialization(err):
		return ErrorTypeSerialization
	case IsTransient(err):
		return ErrorTypeTransient
	default:
		// Default to permanent to avoid infinite retries
		return ErrorTypePermanent
	}
}

// Failure kind labels reported to retry observers and metrics.
const (
	KindRateLimit       = "rate_limit"
	KindServerError     = "server_error"
	KindTimeout         = "timeout"
	KindConnectionReset = "connection_reset"
	KindNetwork         = "network"
	KindSerialization   = "serialization"
	KindPermanent       = "permanent"
	KindCancelled       = "cancelled"
	KindUnknown         = "unknown"
)

// FailureKind returns a short, stable label describing err.
func FailureKind(err error) string {
	if err == nil {
		return KindUnknown
	}
	if IsCancelled(err) {
		return KindCancelled
	}
	if IsSerialization(err) {
		return KindSerialization
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	statusCode := extractHTTPStatusCode(err)
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		statusCode = transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		statusCode = permanentErr.StatusCode
	}

	lowerErr := strings.ToLower(err.Error())
	switch {
	case statusCode == http.StatusTooManyRequests || strings.Contains(lowerErr, "rate limit"):
		return KindRateLimit
	case statusCode == http.StatusGatewayTimeout:
		return KindTimeout
	case statusCode >= 500:
		return KindServerError
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.ECONNRESET || errno == syscall.EPIPE) {
		return KindConnectionReset
	}
	if strings.Contains(lowerErr, "connection reset") || strings.Contains(lowerErr, "broken pipe") {
		return KindConnectionReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if strings.Contains(lowerErr, "timeout") || strings.Contains(lowerErr, "deadline exceeded") {
		return KindTimeout
	}
	if isNetworkError(err) || isSyscallError(err) {
		return KindNetwork
	}
	if IsPermanent(err) {
		return KindPermanent
	}
	return KindUnknown
}

// FormatForLLM converts technical errors to short messages the model can act on
func FormatForLLM(err error) string {
	if err == nil {
		return ""
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.Message != "" {
		return transientErr.Message
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.Message != "" {
		return permanentErr.Message
	}

	switch FailureKind(err) {
	case KindCancelled:
		return "The operation was cancelled before it completed."
	case KindTimeout:
		return "The operation timed out. Try breaking it into smaller steps."
	case KindRateLimit:
		return "Rate limit reached. Wait before retrying this operation."
	case KindConnectionReset, KindNetwork:
		return "Network connectivity issue while running the operation."
	}

	return err.Error()
}

// Helper functions

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"timeout",
		"deadline exceeded",
		"connection reset",
		"broken pipe",
		"unexpected eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}

func isPermanentHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusBadRequest, // 400
		http.StatusUnauthorized,        // 401
		http.StatusForbidden,           // 403
		http.StatusNotFound,            // 404
		http.StatusMethodNotAllowed,    // 405
		http.StatusConflict,            // 409
		http.StatusGone,                // 410
		http.StatusUnprocessableEntity: // 422
		return true
	}
	return false
}

// Matches "status 429", "HTTP 500", "API error 503:" and similar provider messages.
var statusPattern = regexp.MustCompile(`(?i)(?:status(?: code)?|http|api error)[\s:=]*([1-5]\d{2})\b`)

type statusCoder interface {
	StatusCode() int
}

func extractHTTPStatusCode(err error) int {
	var coder statusCoder
	if errors.As(err, &coder) {
		return coder.StatusCode()
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		return permanentErr.StatusCode
	}

	match := statusPattern.FindStringSubmatch(err.Error())
	if len(match) < 2 {
		return 0
	}
	code, convErr := strconv.Atoi(match[1])
	if convErr != nil {
		return 0
	}
	return code
}

// Helper constructors

// NewTransientError creates a new transient error with LLM-friendly message
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{
		Err:     err,
		Message: message,
	}
}

// NewPermanentError creates a new permanent error with LLM-friendly message
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{
		Err:     err,
		Message: message,
	}
}

// NewSerializationError wraps a provider rejection of the request body.
func NewSerializationError(err error, message string) *SerializationError {
	return &SerializationError{
		Err:     err,
		Message: message,
	}
}
