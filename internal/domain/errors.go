package domain

import "errors"

var (
	// ErrNoText is returned when no acquisition strategy produced usable text
	ErrNoText = errors.New("no usable page text")

	// ErrTextTooShort is returned when a strategy produced text below its threshold
	ErrTextTooShort = errors.New("page text below threshold")

	// ErrNotFound is returned when an upstream lookup has no result
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss is returned when a key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrModelDisabled is returned when no language model is configured
	ErrModelDisabled = errors.New("language model not configured")

	// ErrUnparseable is returned when a structured response cannot be decoded
	ErrUnparseable = errors.New("unparseable response")

	// ErrInvalidInput is returned for malformed URLs or postal codes
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionFailed is the generic failure surfaced by the analyzer
	ErrExtractionFailed = errors.New("extraction failed")
)
