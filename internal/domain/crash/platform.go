package crash

import (
	"fmt"
	"strings"
)

// Platform is the closed set of SDK platforms. Symbolication dispatches on
// it: javascript/node take the source-map path, rust takes name demangling,
// everything else passes frames through untouched.
type Platform string

const (
	PlatformJavaScript Platform = "javascript"
	PlatformNode       Platform = "node"
	PlatformPython     Platform = "python"
	PlatformJava       Platform = "java"
	PlatformGo         Platform = "go"
	PlatformRust       Platform = "rust"
	PlatformOther      Platform = "other"
)

var platforms = map[Platform]struct{}{
	PlatformJavaScript: {},
	PlatformNode:       {},
	PlatformPython:     {},
	PlatformJava:       {},
	PlatformGo:         {},
	PlatformRust:       {},
	PlatformOther:      {},
}

func ParsePlatform(value string) (Platform, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", ErrPlatformRequired
	}

	p := Platform(trimmed)
	if _, ok := platforms[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, value)
	}
	return p, nil
}

func (p Platform) UsesSourceMaps() bool {
	return p == PlatformJavaScript || p == PlatformNode
}

func (p Platform) UsesDemangling() bool {
	return p == PlatformRust
}

// Level is the severity attached to an event and propagated to its issue.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

var levels = map[Level]struct{}{
	LevelDebug:   {},
	LevelInfo:    {},
	LevelWarning: {},
	LevelError:   {},
	LevelFatal:   {},
}

// Priority buckets a level for triage ordering: fatal and error demand
// attention, warnings can wait, the rest is noise until proven otherwise.
func (l Level) Priority() string {
	switch l {
	case LevelFatal, LevelError:
		return "high"
	case LevelWarning:
		return "medium"
	default:
		return "low"
	}
}

// ParseLevel defaults an empty value to error, the common SDK behavior.
func ParseLevel(value string) (Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return LevelError, nil
	}

	l := Level(trimmed)
	if _, ok := levels[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, value)
	}
	return l, nil
}
