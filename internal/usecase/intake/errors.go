package intake

import (
	"errors"

	"faultline/internal/domain/crash"
)

var (
	// ErrConflictRetryExhausted means the issue upsert kept losing the
	// uniqueness race past its retry budget. Retryable by the caller.
	ErrConflictRetryExhausted = errors.New("issue upsert retries exhausted")

	// ErrBatchSizeExceeded rejects an oversized batch before any item is
	// processed.
	ErrBatchSizeExceeded = errors.New("batch exceeds the configured size limit")

	// ErrPayloadTooLarge rejects an artifact upload before hashing it.
	ErrPayloadTooLarge = errors.New("artifact exceeds the upload size limit")
)

// IsValidationError reports whether err rejects the input itself rather
// than reporting a processing failure. Transports map these to 4xx.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{
		crash.ErrProjectRequired,
		crash.ErrPlatformRequired,
		crash.ErrUnknownPlatform,
		crash.ErrUnknownLevel,
		crash.ErrEmptyEvent,
		crash.ErrBadTimestamp,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
