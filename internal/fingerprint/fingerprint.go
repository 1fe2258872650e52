// Package fingerprint derives the stable grouping key that maps many
// occurrences of the same logical crash onto one issue, plus the culprit
// frame shown for it. Determinism outranks precision: normalization is
// deliberately aggressive so a fingerprint survives releases, renamed
// bundles, and minor symbolication drift.
package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"faultline/internal/domain/crash"
)

const (
	defaultTopFrames  = 5
	defaultMessageMax = 200
)

type Options struct {
	// TopFrames is how many in-app frames feed the hash.
	TopFrames int
	// MessageMax truncates the normalized message in the no-trace fallback.
	MessageMax int
}

type Fingerprinter struct {
	classifier *Classifier
	opts       Options
}

func New(classifier *Classifier, opts Options) *Fingerprinter {
	if opts.TopFrames <= 0 {
		opts.TopFrames = defaultTopFrames
	}
	if opts.MessageMax <= 0 {
		opts.MessageMax = defaultMessageMax
	}
	return &Fingerprinter{classifier: classifier, opts: opts}
}

// Compute hashes the top in-app frames (function, normalized file) of the
// symbolicated trace together with the exception type. A trace with no
// classifiable application frames falls back to all frames; an empty
// trace falls back to (type, truncated normalized message).
func (f *Fingerprinter) Compute(projectID string, exceptionType string, message string, trace crash.Stacktrace) string {
	frames := f.topFrames(projectID, trace)
	if len(frames) == 0 {
		normalized := truncate(normalizeDynamicTokens(message), f.opts.MessageMax)
		return hashInput("msg", exceptionType, normalized)
	}

	parts := make([]string, 0, 2+2*len(frames))
	parts = append(parts, "trace", exceptionType)
	for _, frame := range frames {
		parts = append(parts, frame.Function, normalizeDynamicTokens(frame.File))
	}
	return hashInput(parts...)
}

// Culprit picks the frame shown as "where it crashed": the innermost
// in-app frame, or the innermost frame at all when nothing classifies.
// Display only; the fingerprint does not depend on it.
func (f *Fingerprinter) Culprit(projectID string, trace crash.Stacktrace) string {
	for i := len(trace.Frames) - 1; i >= 0; i-- {
		if f.classifier.InApp(projectID, trace.Frames[i].File) {
			return formatCulprit(trace.Frames[i])
		}
	}
	if n := len(trace.Frames); n > 0 {
		return formatCulprit(trace.Frames[n-1])
	}
	return ""
}

// topFrames walks the stack from the crash site outward and keeps the
// first TopFrames in-app frames; a fully-vendor trace keeps the same
// walk over all frames instead.
func (f *Fingerprinter) topFrames(projectID string, trace crash.Stacktrace) []crash.Frame {
	if trace.IsEmpty() {
		return nil
	}

	frames := make([]crash.Frame, 0, f.opts.TopFrames)
	for i := len(trace.Frames) - 1; i >= 0 && len(frames) < f.opts.TopFrames; i-- {
		if f.classifier.InApp(projectID, trace.Frames[i].File) {
			frames = append(frames, trace.Frames[i])
		}
	}
	if len(frames) > 0 {
		return frames
	}

	for i := len(trace.Frames) - 1; i >= 0 && len(frames) < f.opts.TopFrames; i-- {
		frames = append(frames, trace.Frames[i])
	}
	return frames
}

func formatCulprit(frame crash.Frame) string {
	switch {
	case frame.Function != "" && frame.File != "":
		return fmt.Sprintf("%s (%s)", frame.Function, frame.File)
	case frame.Function != "":
		return frame.Function
	default:
		return frame.File
	}
}

var (
	uuidPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	hexPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8,}\b`)
	numPattern  = regexp.MustCompile(`\d+`)
)

// normalizeDynamicTokens collapses ids that vary per build or per
// request: UUIDs first so their parts do not survive as hex or digit
// runs, then long hex runs (content hashes), then any digit run.
func normalizeDynamicTokens(s string) string {
	s = uuidPattern.ReplaceAllString(s, "#")
	s = hexPattern.ReplaceAllString(s, "#")
	s = numPattern.ReplaceAllString(s, "#")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// hashInput is FNV-1a 64 over the |-joined parts, rendered as 16 hex
// digits.
func hashInput(parts ...string) string {
	input := strings.Join(parts, "|")
	var h uint64 = 14695981039346656037
	for i := 0; i < len(input); i++ {
		h ^= uint64(input[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}
