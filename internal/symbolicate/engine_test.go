package symbolicate

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"faultline/internal/domain/crash"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "faultline/internal/infrastructure/persistence/sqlite/repository"
	"faultline/internal/ports"
)

type testCache struct {
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func setupEngine(t *testing.T) (*Engine, *sqliterepo.ArtifactRepository, *testCache) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "symbolicate.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Artifact{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewArtifactRepository(db)
	memo := newTestCache()
	engine := NewEngine(repo, memo, Options{})
	return engine, repo, memo
}

func uploadMap(t *testing.T, repo *sqliterepo.ArtifactRepository, name string, content []byte) ports.Artifact {
	t.Helper()

	stored, _, err := repo.Insert(context.Background(), ports.Artifact{
		ProjectID:         "web",
		Release:           "1.0.0",
		Name:              name,
		SHA256:            "sha-" + name,
		Type:              ports.ArtifactTypeSourceMap,
		Content:           content,
		Size:              int64(len(content)),
		HasSourcesContent: true,
		UploadedAt:        "2026-03-01T10:00:00.000000000Z",
	})
	if err != nil {
		t.Fatalf("insert artifact %s: %v", name, err)
	}
	return stored
}

func appMapBytes(t *testing.T) []byte {
	t.Helper()

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line " + string(rune('a'+i))
	}
	raw, err := json.Marshal(map[string]any{
		"version":        3,
		"sources":        []string{"src/app.ts"},
		"sourcesContent": []string{strings.Join(lines, "\n")},
		"names":          []string{"handleClick"},
		"mappings":       segment(0, 0, 0, 0) + "," + segment(44, 0, 11, 2, 0),
	})
	if err != nil {
		t.Fatalf("marshal map: %v", err)
	}
	return raw
}

func TestSymbolicateJavaScriptEndToEnd(t *testing.T) {
	engine, repo, _ := setupEngine(t)
	ctx := context.Background()

	stored := uploadMap(t, repo, "bundle.js.map", appMapBytes(t))

	raw := crash.Stacktrace{Frames: []crash.Frame{
		{File: "bundle.js", Line: 1, Col: 45},
	}}

	out := engine.Symbolicate(ctx, NewSession(), "web", "1.0.0", crash.PlatformJavaScript, raw)

	frame := out.Frames[0]
	if frame.File != "src/app.ts" || frame.Line != 12 || frame.Col != 3 || frame.Function != "handleClick" {
		t.Fatalf("resolved frame = %+v", frame)
	}
	if frame.ContextLine != "line l" {
		t.Fatalf("context line = %q", frame.ContextLine)
	}
	if len(frame.PreContext) != 5 || len(frame.PostContext) != 5 {
		t.Fatalf("context sizes = %d/%d", len(frame.PreContext), len(frame.PostContext))
	}

	// The input trace is the raw sidecar and stays untouched.
	if raw.Frames[0].File != "bundle.js" || raw.Frames[0].Line != 1 {
		t.Fatalf("raw trace mutated: %+v", raw.Frames[0])
	}

	// A hit records artifact access for retention.
	touched, err := repo.GetByID(ctx, stored.ArtifactID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if touched.LastAccessedAt == nil {
		t.Fatalf("last_accessed_at still nil after hit")
	}
}

func TestSymbolicateMissingArtifactLeavesFrameRaw(t *testing.T) {
	engine, _, _ := setupEngine(t)

	raw := crash.Stacktrace{Frames: []crash.Frame{
		{File: "bundle.js", Line: 1, Col: 45, Function: "t"},
	}}

	out := engine.Symbolicate(context.Background(), NewSession(), "web", "1.0.0", crash.PlatformJavaScript, raw)
	if out.Frames[0].File != "bundle.js" || out.Frames[0].Line != 1 || out.Frames[0].Function != "t" {
		t.Fatalf("frame changed without artifact: %+v", out.Frames[0])
	}
}

func TestSymbolicateCorruptMapDegradesAndMemoizes(t *testing.T) {
	engine, repo, memo := setupEngine(t)
	ctx := context.Background()

	stored := uploadMap(t, repo, "bundle.js.map", []byte(`{"version":3,`))

	raw := crash.Stacktrace{Frames: []crash.Frame{
		{File: "bundle.js", Line: 1, Col: 45},
		{File: "bundle.js", Line: 1, Col: 90},
	}}

	out := engine.Symbolicate(ctx, NewSession(), "web", "1.0.0", crash.PlatformJavaScript, raw)
	for i, frame := range out.Frames {
		if frame.File != "bundle.js" {
			t.Fatalf("frame %d changed despite corrupt map: %+v", i, frame)
		}
	}

	if _, found, _ := memo.Get(ctx, mapFailKey(stored.ArtifactID)); !found {
		t.Fatalf("expected mapfail memo for artifact %d", stored.ArtifactID)
	}
}

func TestSymbolicateIdempotent(t *testing.T) {
	engine, repo, _ := setupEngine(t)
	ctx := context.Background()

	uploadMap(t, repo, "bundle.js.map", appMapBytes(t))

	raw := crash.Stacktrace{Frames: []crash.Frame{
		{File: "bundle.js", Line: 1, Col: 45},
	}}

	once := engine.Symbolicate(ctx, NewSession(), "web", "1.0.0", crash.PlatformJavaScript, raw)
	twice := engine.Symbolicate(ctx, NewSession(), "web", "1.0.0", crash.PlatformJavaScript, once)

	if diff := cmp.Diff(once.Frames, twice.Frames); diff != "" {
		t.Errorf("second pass frames mismatch:\n%s", diff)
	}
}

func TestSymbolicateRustDemanglesNamesOnly(t *testing.T) {
	engine, _, _ := setupEngine(t)

	raw := crash.Stacktrace{Frames: []crash.Frame{
		{Function: "_ZN4core3fmt5Write9write_fmt17habcdef0123456789E", File: "core.rs", Line: 42, Col: 7},
	}}

	out := engine.Symbolicate(context.Background(), NewSession(), "web", "1.0.0", crash.PlatformRust, raw)

	frame := out.Frames[0]
	if frame.Function != "core::fmt::Write::write_fmt" {
		t.Fatalf("function = %q", frame.Function)
	}
	if frame.File != "core.rs" || frame.Line != 42 || frame.Col != 7 {
		t.Fatalf("location touched by demangling: %+v", frame)
	}
}
