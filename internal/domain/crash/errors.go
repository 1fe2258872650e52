package crash

import "errors"

var (
	ErrProjectRequired  = errors.New("project is required")
	ErrPlatformRequired = errors.New("platform is required")
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnknownLevel     = errors.New("unknown level")
	ErrEmptyEvent       = errors.New("event requires an exception or a message")
	ErrBadTimestamp     = errors.New("timestamp is not RFC3339")
)
