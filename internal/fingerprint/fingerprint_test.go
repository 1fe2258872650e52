package fingerprint

import (
	"strings"
	"testing"

	"faultline/internal/domain/crash"
)

func newTestFingerprinter() *Fingerprinter {
	return New(NewClassifier(), Options{})
}

func appTrace() crash.Stacktrace {
	return crash.Stacktrace{Frames: []crash.Frame{
		{Function: "main", File: "src/index.ts", Line: 3, Col: 1},
		{Function: "submitOrder", File: "src/orders.ts", Line: 88, Col: 5},
		{Function: "handleClick", File: "src/app.ts", Line: 12, Col: 3},
	}}
}

func TestComputeIsDeterministic(t *testing.T) {
	f := newTestFingerprinter()

	first := f.Compute("web", "TypeError", "x is not a function", appTrace())
	second := f.Compute("web", "TypeError", "x is not a function", appTrace())
	if first != second {
		t.Fatalf("Compute() not deterministic: %s vs %s", first, second)
	}
	if len(first) != 16 {
		t.Fatalf("Compute() = %q, want 16 hex chars", first)
	}

	otherType := f.Compute("web", "RangeError", "x is not a function", appTrace())
	if otherType == first {
		t.Fatalf("Compute() ignored exception type")
	}
}

func TestComputeExcludesVendorFrames(t *testing.T) {
	f := newTestFingerprinter()

	withVendorA := appTrace()
	withVendorA.Frames = append([]crash.Frame{
		{Function: "emitOne", File: "node_modules/events/lib/emitter.js", Line: 10, Col: 2},
	}, withVendorA.Frames...)

	withVendorB := appTrace()
	withVendorB.Frames = append([]crash.Frame{
		{Function: "emitTwo", File: "node_modules/events/lib/other.js", Line: 99, Col: 7},
	}, withVendorB.Frames...)

	a := f.Compute("web", "TypeError", "boom", withVendorA)
	b := f.Compute("web", "TypeError", "boom", withVendorB)
	if a != b {
		t.Fatalf("vendor frame leaked into fingerprint: %s vs %s", a, b)
	}
}

func TestComputeNormalizesDynamicTokens(t *testing.T) {
	f := newTestFingerprinter()

	tests := []struct{ fileA, fileB string }{
		{"dist/bundle.3f9a2bc1.js", "dist/bundle.9e07d544.js"},
		{"app/user/12345/view.ts", "app/user/999/view.ts"},
		{
			"tmp/f81d4fae-7dec-11d0-a765-00a0c91e6bf6/run.ts",
			"tmp/0c74ff2d-52c2-4b5f-8c3a-111111111111/run.ts",
		},
	}

	for _, tt := range tests {
		traceA := crash.Stacktrace{Frames: []crash.Frame{{Function: "run", File: tt.fileA}}}
		traceB := crash.Stacktrace{Frames: []crash.Frame{{Function: "run", File: tt.fileB}}}
		a := f.Compute("web", "Error", "", traceA)
		b := f.Compute("web", "Error", "", traceB)
		if a != b {
			t.Fatalf("Compute(%q) != Compute(%q): %s vs %s", tt.fileA, tt.fileB, a, b)
		}
	}
}

func TestComputeEmptyTraceFallsBackToMessage(t *testing.T) {
	// Normalized, both messages start "connection refused to #.#.#.#:#"
	// (31 chars); truncation at 30 then hides the differing tails. Both
	// steps have to fire for the fingerprints to collapse.
	f := New(NewClassifier(), Options{MessageMax: 30})

	long := "connection refused to 10.0.0.1:5432 " + strings.Repeat("x", 300)
	longer := "connection refused to 77.1.2.3:9999 " + strings.Repeat("y", 500)

	a := f.Compute("web", "ConnectionError", long, crash.Stacktrace{})
	b := f.Compute("web", "ConnectionError", longer, crash.Stacktrace{})
	if a != b {
		t.Fatalf("normalization+truncation should collapse messages: %s vs %s", a, b)
	}

	other := f.Compute("web", "TimeoutError", long, crash.Stacktrace{})
	if other == a {
		t.Fatalf("fallback ignored exception type")
	}
}

func TestComputeAllVendorTraceStillUsesFrames(t *testing.T) {
	f := newTestFingerprinter()

	vendorOnly := crash.Stacktrace{Frames: []crash.Frame{
		{Function: "emit", File: "node_modules/events/emitter.js"},
		{Function: "tick", File: "node_modules/process/tick.js"},
	}}

	withFrames := f.Compute("web", "Error", "boom", vendorOnly)
	messageOnly := f.Compute("web", "Error", "boom", crash.Stacktrace{})
	if withFrames == messageOnly {
		t.Fatalf("all-vendor trace fell back to the message hash")
	}

	again := f.Compute("web", "Error", "boom", vendorOnly)
	if withFrames != again {
		t.Fatalf("all-vendor hashing not deterministic")
	}
}

func TestCulpritPicksInnermostInAppFrame(t *testing.T) {
	f := newTestFingerprinter()

	trace := appTrace()
	trace.Frames = append(trace.Frames, crash.Frame{
		Function: "emit", File: "node_modules/events/emitter.js",
	})

	if got := f.Culprit("web", trace); got != "handleClick (src/app.ts)" {
		t.Fatalf("Culprit() = %q", got)
	}

	vendorOnly := crash.Stacktrace{Frames: []crash.Frame{
		{Function: "emit", File: "node_modules/events/emitter.js"},
	}}
	if got := f.Culprit("web", vendorOnly); got != "emit (node_modules/events/emitter.js)" {
		t.Fatalf("Culprit(vendor only) = %q", got)
	}

	if got := f.Culprit("web", crash.Stacktrace{}); got != "" {
		t.Fatalf("Culprit(empty) = %q", got)
	}
}
