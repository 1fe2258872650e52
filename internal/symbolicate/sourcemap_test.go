package symbolicate

import (
	"strings"
	"testing"
)

func segment(values ...int) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(EncodeVLQ(v))
	}
	return b.String()
}

func TestParseSourceMapLookup(t *testing.T) {
	// Two entries on line 0: column 0 -> app.ts:1:1, column 44 ->
	// app.ts:12:3 named handleClick.
	mappings := segment(0, 0, 0, 0) + "," + segment(44, 0, 11, 2, 0)
	raw := `{"version":3,"sources":["src/app.ts"],"names":["handleClick"],"mappings":"` + mappings + `"}`

	parsed, err := ParseSourceMap([]byte(raw), 0)
	if err != nil {
		t.Fatalf("ParseSourceMap() error = %v", err)
	}

	loc, ok := parsed.Lookup(0, 44)
	if !ok {
		t.Fatalf("Lookup(0,44) expected hit")
	}
	if loc.Source != "src/app.ts" || loc.Line != 11 || loc.Col != 2 || loc.Name != "handleClick" {
		t.Fatalf("Lookup(0,44) = %+v", loc)
	}

	// Columns past the last entry resolve to the greatest entry at or
	// below them.
	past, ok := parsed.Lookup(0, 90)
	if !ok || past.Line != 11 {
		t.Fatalf("Lookup(0,90) = %+v, ok=%v", past, ok)
	}

	early, ok := parsed.Lookup(0, 10)
	if !ok || early.Line != 0 || early.Name != "" {
		t.Fatalf("Lookup(0,10) = %+v, ok=%v", early, ok)
	}

	if _, ok := parsed.Lookup(1, 0); ok {
		t.Fatalf("Lookup(1,0) expected miss for absent line")
	}
	if _, ok := parsed.Lookup(0, -1); ok {
		t.Fatalf("Lookup(0,-1) expected miss")
	}
}

func TestParseMappingsCountersAcrossLines(t *testing.T) {
	// Line 0 maps column 10 to source line 5; line 1 starts a fresh
	// generated column but continues the source-line counter.
	mappings := segment(10, 0, 5, 0) + ";" + segment(3, 0, 1, 0)
	raw := `{"version":3,"sources":["a.ts"],"names":[],"mappings":"` + mappings + `"}`

	parsed, err := ParseSourceMap([]byte(raw), 0)
	if err != nil {
		t.Fatalf("ParseSourceMap() error = %v", err)
	}

	first, ok := parsed.Lookup(0, 10)
	if !ok || first.Line != 5 {
		t.Fatalf("Lookup(0,10) = %+v, ok=%v", first, ok)
	}

	// Generated column reset to 0 on line 1, so column 3 is the entry;
	// source line accumulated 5+1.
	second, ok := parsed.Lookup(1, 3)
	if !ok || second.Line != 6 {
		t.Fatalf("Lookup(1,3) = %+v, ok=%v", second, ok)
	}
	if _, ok := parsed.Lookup(1, 2); ok {
		t.Fatalf("Lookup(1,2) expected miss before first entry")
	}
}

func TestParseSourceMapRejectsCorruptInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"version":3`},
		{"wrong version", `{"version":2,"sources":["a"],"mappings":"AAAA"}`},
		{"no sources", `{"version":3,"sources":[],"mappings":"AAAA"}`},
		{"no mappings", `{"version":3,"sources":["a"],"mappings":""}`},
		{"bad vlq char", `{"version":3,"sources":["a"],"mappings":"AA!A"}`},
		{"two-field segment", `{"version":3,"sources":["a"],"mappings":"AA"}`},
		{"unterminated vlq", `{"version":3,"sources":["a"],"mappings":"g"}`},
	}

	for _, tt := range tests {
		if _, err := ParseSourceMap([]byte(tt.raw), 0); err == nil {
			t.Fatalf("ParseSourceMap(%s) expected error", tt.name)
		}
	}
}

func TestParseSourceMapBoundsSize(t *testing.T) {
	raw := `{"version":3,"sources":["a.ts"],"names":[],"mappings":"AAAA"}`
	if _, err := ParseSourceMap([]byte(raw), 8); err == nil {
		t.Fatalf("ParseSourceMap() expected size error")
	}
	if _, err := ParseSourceMap([]byte(raw), int64(len(raw))); err != nil {
		t.Fatalf("ParseSourceMap() at limit error = %v", err)
	}
}

func TestParseSourceMapAppliesSourceRoot(t *testing.T) {
	raw := `{"version":3,"sourceRoot":"webpack://app/","sources":["src/x.ts"],"names":[],"mappings":"AAAA"}`
	parsed, err := ParseSourceMap([]byte(raw), 0)
	if err != nil {
		t.Fatalf("ParseSourceMap() error = %v", err)
	}
	loc, ok := parsed.Lookup(0, 0)
	if !ok {
		t.Fatalf("Lookup(0,0) expected hit")
	}
	if loc.Source != "webpack://app/src/x.ts" {
		t.Fatalf("source = %q", loc.Source)
	}
}

func TestContextSlicesAroundLine(t *testing.T) {
	lines := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8"}
	raw := `{"version":3,"sources":["a.ts"],"sourcesContent":["` + strings.Join(lines, `\n`) + `"],"names":[],"mappings":"AAAA"}`

	parsed, err := ParseSourceMap([]byte(raw), 0)
	if err != nil {
		t.Fatalf("ParseSourceMap() error = %v", err)
	}

	pre, contextLine, post, ok := parsed.Context(0, 3, 2)
	if !ok {
		t.Fatalf("Context(0,3,2) expected content")
	}
	if contextLine != "l4" {
		t.Fatalf("context line = %q, want l4", contextLine)
	}
	if len(pre) != 2 || pre[0] != "l2" || pre[1] != "l3" {
		t.Fatalf("pre = %v", pre)
	}
	if len(post) != 2 || post[0] != "l5" || post[1] != "l6" {
		t.Fatalf("post = %v", post)
	}

	// Near the top the pre side truncates instead of underflowing.
	pre, contextLine, post, ok = parsed.Context(0, 0, 3)
	if !ok || contextLine != "l1" || len(pre) != 0 || len(post) != 3 {
		t.Fatalf("Context(0,0,3) = pre %v line %q post %v ok=%v", pre, contextLine, post, ok)
	}

	// No content recorded for the source index.
	if _, _, _, ok := parsed.Context(5, 0, 2); ok {
		t.Fatalf("Context(5,...) expected ok=false")
	}
}
