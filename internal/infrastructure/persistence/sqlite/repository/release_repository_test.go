package repository

import (
	"context"
	"errors"
	"testing"

	"faultline/internal/ports"
)

func setupReleaseRepository(t *testing.T) *ReleaseRepository {
	t.Helper()
	return NewReleaseRepository(openTestDB(t))
}

func TestBumpCountersCreatesThenIncrements(t *testing.T) {
	repo := setupReleaseRepository(t)
	ctx := context.Background()

	if err := repo.BumpCounters(ctx, "web", "1.0.0", "2026-03-01T10:00:00.000000000Z", true, false); err != nil {
		t.Fatalf("BumpCounters(first) error = %v", err)
	}
	if err := repo.BumpCounters(ctx, "web", "1.0.0", "2026-03-01T11:00:00.000000000Z", false, false); err != nil {
		t.Fatalf("BumpCounters(second) error = %v", err)
	}
	if err := repo.BumpCounters(ctx, "web", "1.0.0", "2026-03-01T12:00:00.000000000Z", false, true); err != nil {
		t.Fatalf("BumpCounters(regression) error = %v", err)
	}

	got, err := repo.GetByVersion(ctx, "web", "1.0.0")
	if err != nil {
		t.Fatalf("GetByVersion() error = %v", err)
	}
	if got.CrashCount != 3 {
		t.Fatalf("crash_count = %d, want 3", got.CrashCount)
	}
	if got.NewIssueCount != 1 {
		t.Fatalf("new_issue_count = %d, want 1", got.NewIssueCount)
	}
	if got.RegressionCount != 1 {
		t.Fatalf("regression_count = %d, want 1", got.RegressionCount)
	}
	if got.FirstEventAt != "2026-03-01T10:00:00.000000000Z" {
		t.Fatalf("first_event_at = %q", got.FirstEventAt)
	}
	if got.LastEventAt != "2026-03-01T12:00:00.000000000Z" {
		t.Fatalf("last_event_at = %q", got.LastEventAt)
	}
}

func TestListByProjectNewestFirst(t *testing.T) {
	repo := setupReleaseRepository(t)
	ctx := context.Background()

	if err := repo.BumpCounters(ctx, "web", "1.0.0", "2026-03-01T10:00:00.000000000Z", true, false); err != nil {
		t.Fatalf("BumpCounters(1.0.0) error = %v", err)
	}
	if err := repo.BumpCounters(ctx, "web", "1.1.0", "2026-03-05T10:00:00.000000000Z", true, false); err != nil {
		t.Fatalf("BumpCounters(1.1.0) error = %v", err)
	}
	if err := repo.BumpCounters(ctx, "mobile", "9.0.0", "2026-03-06T10:00:00.000000000Z", true, false); err != nil {
		t.Fatalf("BumpCounters(mobile) error = %v", err)
	}

	releases, err := repo.ListByProject(ctx, "web", 10)
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("ListByProject() len = %d, want 2", len(releases))
	}
	if releases[0].Version != "1.1.0" || releases[1].Version != "1.0.0" {
		t.Fatalf("ListByProject() order = %s,%s", releases[0].Version, releases[1].Version)
	}

	if _, err := repo.GetByVersion(ctx, "web", "3.0.0"); !errors.Is(err, ports.ErrReleaseNotFound) {
		t.Fatalf("GetByVersion(missing) error = %v, want ErrReleaseNotFound", err)
	}
}
