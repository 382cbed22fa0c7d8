package llm

import (
	"errors"
	"fmt"
	"strings"

	agenterrors "agentcore/internal/errors"
)

// HTTPStatusError represents a provider HTTP failure with its status code.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// NewHTTPStatusError creates an HTTP status error
func NewHTTPStatusError(statusCode int, status, body string) error {
	return &HTTPStatusError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}

// Provider messages that indicate the request history itself was rejected.
var serializationPatterns = []string{
	"tool_use ids were found without",
	"tool_result block",
	"must have a corresponding tool",
	"unexpected role",
	"malformed request",
	"failed to serialize",
	"failed to encode",
	"prompt is too long",
	"request too large",
	"maximum context length",
}

// ClassifyError wraps a raw provider error in the runtime's error taxonomy.
// Errors that already carry a classification are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if agenterrors.IsSerialization(err) || agenterrors.IsCancelled(err) {
		return err
	}

	lowerErr := strings.ToLower(err.Error())

	for _, pattern := range serializationPatterns {
		if strings.Contains(lowerErr, pattern) {
			return agenterrors.NewSerializationError(err,
				"Provider rejected the conversation history. Dropping the newest message and retrying.")
		}
	}

	switch agenterrors.FailureKind(err) {
	case agenterrors.KindRateLimit:
		return wrapTransient(err, "API rate limit reached. Retrying with exponential backoff.")
	case agenterrors.KindServerError:
		return wrapTransient(err, "Provider server error. Retrying request.")
	case agenterrors.KindTimeout:
		return wrapTransient(err, "Request timed out. Retrying with backoff.")
	case agenterrors.KindConnectionReset:
		return wrapTransient(err, "Connection reset. Retrying request.")
	case agenterrors.KindNetwork:
		return wrapTransient(err, "Network connectivity issue. Retrying request.")
	case agenterrors.KindPermanent:
		if !isMarked(err) {
			return agenterrors.NewPermanentError(err, err.Error())
		}
	}

	return err
}

func wrapTransient(err error, message string) error {
	if isMarked(err) {
		return err
	}
	return agenterrors.NewTransientError(err, message+" ("+err.Error()+")")
}

func isMarked(err error) bool {
	var transientErr *agenterrors.TransientError
	var permanentErr *agenterrors.PermanentError
	return errors.As(err, &transientErr) || errors.As(err, &permanentErr)
}
