package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewRunID generates a run identifier with a stable prefix for display.
func NewRunID() string {
	return newIdentifier("run")
}

// NewCheckpointID generates an identifier for one persisted checkpoint.
func NewCheckpointID() string {
	return newIdentifier("ckpt")
}

// NewRequestID generates an identifier for one model request.
func NewRequestID() string {
	return newIdentifier("req")
}

// NewRequestIDWithLogID derives a request identifier that keeps the log id
// visible so log lines can be correlated without a lookup.
func NewRequestIDWithLogID(logID string) string {
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return NewRequestID()
	}
	return fmt.Sprintf("%s:%s", logID, NewRequestID())
}

// NewLogID generates a log correlation identifier.
func NewLogID() string {
	return newIdentifier("log")
}

func newIdentifier(prefix string) string {
	// V7 keeps identifiers roughly time ordered, which makes store listings readable.
	body, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, body.String())
}
