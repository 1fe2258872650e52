package intake

import (
	"context"
	"errors"
	"testing"

	"faultline/internal/ports"
)

const testMapJSON = `{"version":3,"sources":["src/app.ts"],"sourcesContent":["export {}"],"names":[],"mappings":"AAAA"}`

func TestUploadArtifactSniffsSourceMap(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	ref, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte(testMapJSON),
	})
	if err != nil {
		t.Fatalf("UploadArtifact() error = %v", err)
	}
	if ref.Type != ports.ArtifactTypeSourceMap {
		t.Fatalf("type = %q, want sourcemap", ref.Type)
	}
	if ref.Deduplicated {
		t.Fatalf("first upload reported as deduplicated")
	}
	if ref.SHA256 == "" || ref.Size != int64(len(testMapJSON)) {
		t.Fatalf("ref = %+v", ref)
	}

	stored, err := env.artifacts.GetByID(ctx, ref.ArtifactID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !stored.HasSourcesContent {
		t.Fatalf("sourcesContent not detected")
	}

	plain, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js",
		Content:   []byte("!function(){console.log(1)}()"),
	})
	if err != nil {
		t.Fatalf("UploadArtifact(plain) error = %v", err)
	}
	if plain.Type != ports.ArtifactTypeSource {
		t.Fatalf("plain source classified as %q", plain.Type)
	}
}

func TestUploadArtifactDeduplicatesBySHA256(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	input := UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte(testMapJSON),
	}

	first, err := env.svc.UploadArtifact(ctx, input)
	if err != nil {
		t.Fatalf("UploadArtifact() error = %v", err)
	}
	second, err := env.svc.UploadArtifact(ctx, input)
	if err != nil {
		t.Fatalf("re-upload error = %v", err)
	}

	if !second.Deduplicated {
		t.Fatalf("identical bytes not deduplicated")
	}
	if second.ArtifactID != first.ArtifactID {
		t.Fatalf("dedup returned a different row: %d vs %d", second.ArtifactID, first.ArtifactID)
	}

	// Same bytes in another project are a separate artifact.
	other, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "api",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte(testMapJSON),
	})
	if err != nil {
		t.Fatalf("UploadArtifact(api) error = %v", err)
	}
	if other.ArtifactID == first.ArtifactID || other.Deduplicated {
		t.Fatalf("dedup leaked across projects: %+v", other)
	}
}

func TestUploadArtifactRejectsOversizedPayload(t *testing.T) {
	env := setupService(t, Config{MaxUploadBytes: 16})
	ctx := context.Background()

	_, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte("0123456789abcdef0"),
	})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("UploadArtifact() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestUploadArtifactValidatesInput(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	cases := []UploadArtifactInput{
		{Release: "1.0.0", Name: "a.js", Content: []byte("x")},
		{ProjectID: "web", Name: "a.js", Content: []byte("x")},
		{ProjectID: "web", Release: "1.0.0", Content: []byte("x")},
		{ProjectID: "web", Release: "1.0.0", Name: "a.js"},
	}
	for i, input := range cases {
		if _, err := env.svc.UploadArtifact(ctx, input); err == nil {
			t.Fatalf("case %d: incomplete upload accepted", i)
		}
	}
}

func TestGetAndDeleteArtifactScopeByProject(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	ref, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte(testMapJSON),
	})
	if err != nil {
		t.Fatalf("UploadArtifact() error = %v", err)
	}

	if _, err := env.svc.GetArtifact(ctx, "api", ref.ArtifactID); !errors.Is(err, ports.ErrArtifactNotFound) {
		t.Fatalf("cross-project GetArtifact error = %v", err)
	}
	if err := env.svc.DeleteArtifact(ctx, "api", ref.ArtifactID); !errors.Is(err, ports.ErrArtifactNotFound) {
		t.Fatalf("cross-project DeleteArtifact error = %v", err)
	}

	stored, err := env.svc.GetArtifact(ctx, "web", ref.ArtifactID)
	if err != nil {
		t.Fatalf("GetArtifact() error = %v", err)
	}
	if string(stored.Content) != testMapJSON {
		t.Fatalf("content round-trip mismatch")
	}

	if err := env.svc.DeleteArtifact(ctx, "web", ref.ArtifactID); err != nil {
		t.Fatalf("DeleteArtifact() error = %v", err)
	}
	if _, err := env.svc.GetArtifact(ctx, "web", ref.ArtifactID); !errors.Is(err, ports.ErrArtifactNotFound) {
		t.Fatalf("artifact survived delete: %v", err)
	}
}
