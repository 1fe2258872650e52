package intake

import (
	"context"
	"testing"
	"time"

	"faultline/internal/ports"
)

func TestDeleteOldEventsKeepsRecentOnes(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Capture(ctx, "web", jsInput("boom"))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	// An aged sibling row, written straight through the repository since
	// capture always stamps the current time.
	old := ports.CrashEvent{
		EventID:    "evt-old",
		ProjectID:  "web",
		IssueID:    res.IssueID,
		Platform:   "javascript",
		Level:      "error",
		Message:    "ancient",
		Timestamp:  "2023-01-01T00:00:00.000000000Z",
		ReceivedAt: "2023-01-01T00:00:00.000000000Z",
	}
	if err := env.events.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	removed, err := env.svc.DeleteOldEvents(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteOldEvents() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := env.events.GetByID(ctx, res.EventID); err != nil {
		t.Fatalf("recent event removed: %v", err)
	}

	// The issue and its counters survive the sweep.
	stored, err := env.issues.GetByID(ctx, res.IssueID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.EventCount != 1 {
		t.Fatalf("event_count = %d after sweep", stored.EventCount)
	}
}

func TestDeleteOldArtifactsUsesAccessRecency(t *testing.T) {
	env := setupService(t, Config{})
	ctx := context.Background()

	stale, _, err := env.artifacts.Insert(ctx, ports.Artifact{
		ProjectID:  "web",
		Release:    "0.9.0",
		Name:       "old.js.map",
		SHA256:     "sha-old",
		Type:       ports.ArtifactTypeSourceMap,
		Content:    []byte("{}"),
		Size:       2,
		UploadedAt: "2023-01-01T00:00:00.000000000Z",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	fresh, err := env.svc.UploadArtifact(ctx, UploadArtifactInput{
		ProjectID: "web",
		Release:   "1.0.0",
		Name:      "bundle.js.map",
		Content:   []byte(testMapJSON),
	})
	if err != nil {
		t.Fatalf("UploadArtifact() error = %v", err)
	}

	removed, err := env.svc.DeleteOldArtifacts(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := env.artifacts.GetByID(ctx, stale.ArtifactID); err == nil {
		t.Fatalf("stale artifact survived")
	}
	if _, err := env.artifacts.GetByID(ctx, fresh.ArtifactID); err != nil {
		t.Fatalf("fresh artifact removed: %v", err)
	}
}
