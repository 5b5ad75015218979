package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrIndexCorrupt         = errors.New("index snapshot corrupt")
	ErrUnsupportedFormat    = errors.New("unsupported document format")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func invalidField(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
