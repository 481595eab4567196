package types

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned by the session registry for unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotInitialized is returned when chatting before any upload.
	ErrSessionNotInitialized = errors.New("session not initialized: upload documents first")

	// ErrNoExtractableText is returned when no uploaded document has a text layer.
	ErrNoExtractableText = errors.New("no extractable text in uploaded documents")

	// ErrLengthMismatch is returned when chunks and vectors do not pair up.
	ErrLengthMismatch = errors.New("chunks and vectors length mismatch")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpstreamError wraps a failure of the embedding or generation service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from a model service.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
