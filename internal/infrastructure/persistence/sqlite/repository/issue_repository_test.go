package repository

import (
	"context"
	"errors"
	"testing"

	"faultline/internal/ports"
)

func setupIssueRepository(t *testing.T) *IssueRepository {
	t.Helper()
	return NewIssueRepository(openTestDB(t))
}

func newTestIssue(project string, fingerprint string, at string) ports.Issue {
	return ports.Issue{
		ProjectID:   project,
		Fingerprint: fingerprint,
		Status:      "unresolved",
		Level:       "error",
		Priority:    "medium",
		Title:       "TypeError: x is not a function",
		Culprit:     "handleClick (src/app.ts)",
		FirstSeen:   at,
		LastSeen:    at,
		EventCount:  1,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestInsertIfAbsentDetectsFingerprintRace(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"

	first, created, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "aaaa0000bbbb1111", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent(first) error = %v", err)
	}
	if !created {
		t.Fatalf("InsertIfAbsent(first) created = false, want true")
	}
	if first.IssueID == 0 {
		t.Fatalf("InsertIfAbsent(first) issue_id = 0")
	}

	_, created, err = repo.InsertIfAbsent(ctx, newTestIssue("web", "aaaa0000bbbb1111", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent(duplicate) error = %v", err)
	}
	if created {
		t.Fatalf("InsertIfAbsent(duplicate) created = true, want false")
	}

	// Same fingerprint in another project is a distinct issue.
	other, created, err := repo.InsertIfAbsent(ctx, newTestIssue("mobile", "aaaa0000bbbb1111", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent(other project) error = %v", err)
	}
	if !created {
		t.Fatalf("InsertIfAbsent(other project) created = false, want true")
	}
	if other.IssueID == first.IssueID {
		t.Fatalf("InsertIfAbsent(other project) reused issue_id %d", first.IssueID)
	}
}

func TestGetByFingerprintReturnsStoredIssue(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"

	stored, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "cafe0000dead1111", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	got, err := repo.GetByFingerprint(ctx, "web", "cafe0000dead1111")
	if err != nil {
		t.Fatalf("GetByFingerprint() error = %v", err)
	}
	if got.IssueID != stored.IssueID {
		t.Fatalf("GetByFingerprint() issue_id = %d, want %d", got.IssueID, stored.IssueID)
	}

	if _, err := repo.GetByFingerprint(ctx, "web", "0000000000000000"); !errors.Is(err, ports.ErrIssueNotFound) {
		t.Fatalf("GetByFingerprint(missing) error = %v, want ErrIssueNotFound", err)
	}
}

func TestRecordRecurrenceBumpsCountAndLastSeen(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"
	later := "2026-03-01T11:00:00.000000000Z"

	stored, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "feed0000beef1111", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	if err := repo.RecordRecurrence(ctx, stored.IssueID, later); err != nil {
		t.Fatalf("RecordRecurrence() error = %v", err)
	}

	got, err := repo.GetByID(ctx, stored.IssueID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EventCount != 2 {
		t.Fatalf("event_count = %d, want 2", got.EventCount)
	}
	if got.LastSeen != later {
		t.Fatalf("last_seen = %q, want %q", got.LastSeen, later)
	}
	if got.FirstSeen != at {
		t.Fatalf("first_seen = %q, want %q", got.FirstSeen, at)
	}
}

func TestRecordRegressionAppliesEverythingAtOnce(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"
	resolvedAt := "2026-03-02T09:00:00.000000000Z"
	regressedAt := "2026-03-03T08:00:00.000000000Z"

	stored, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "0123456789abcdef", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, stored.IssueID, "resolved", resolvedAt, &resolvedAt); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	if err := repo.RecordRegression(ctx, stored.IssueID, "2.0.0", regressedAt); err != nil {
		t.Fatalf("RecordRegression() error = %v", err)
	}

	got, err := repo.GetByID(ctx, stored.IssueID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "unresolved" {
		t.Fatalf("status = %q, want unresolved", got.Status)
	}
	if got.TimesRegressed != 1 {
		t.Fatalf("times_regressed = %d, want 1", got.TimesRegressed)
	}
	if got.RegressedInRelease != "2.0.0" {
		t.Fatalf("regressed_in_release = %q, want 2.0.0", got.RegressedInRelease)
	}
	if got.LastRegressedAt == nil || *got.LastRegressedAt != regressedAt {
		t.Fatalf("last_regressed_at = %v, want %q", got.LastRegressedAt, regressedAt)
	}
	if got.EventCount != 2 {
		t.Fatalf("event_count = %d, want 2", got.EventCount)
	}
	if got.LastSeen != regressedAt {
		t.Fatalf("last_seen = %q, want %q", got.LastSeen, regressedAt)
	}
}

func TestListFiltersByStatusAndAssignee(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"

	a, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "aaaa111122223333", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent(a) error = %v", err)
	}
	b, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "bbbb111122223333", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent(b) error = %v", err)
	}
	if _, _, err := repo.InsertIfAbsent(ctx, newTestIssue("mobile", "cccc111122223333", at)); err != nil {
		t.Fatalf("InsertIfAbsent(c) error = %v", err)
	}

	if err := repo.UpdateStatus(ctx, a.IssueID, "resolved", at, &at); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := repo.SetAssignee(ctx, b.IssueID, "dana", at); err != nil {
		t.Fatalf("SetAssignee() error = %v", err)
	}

	resolved, err := repo.List(ctx, ports.IssueFilter{ProjectID: "web", Status: "resolved"})
	if err != nil {
		t.Fatalf("List(resolved) error = %v", err)
	}
	if len(resolved) != 1 || resolved[0].IssueID != a.IssueID {
		t.Fatalf("List(resolved) = %+v, want issue %d", resolved, a.IssueID)
	}

	assigned, err := repo.List(ctx, ports.IssueFilter{ProjectID: "web", Assignee: "dana"})
	if err != nil {
		t.Fatalf("List(assignee) error = %v", err)
	}
	if len(assigned) != 1 || assigned[0].IssueID != b.IssueID {
		t.Fatalf("List(assignee) = %+v, want issue %d", assigned, b.IssueID)
	}

	count, err := repo.CountByProject(ctx, "web")
	if err != nil {
		t.Fatalf("CountByProject() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("CountByProject() = %d, want 2", count)
	}
}

func TestUpdateStatusClearsNothingOnUnresolve(t *testing.T) {
	repo := setupIssueRepository(t)
	ctx := context.Background()
	at := "2026-03-01T10:00:00.000000000Z"
	resolvedAt := "2026-03-02T09:00:00.000000000Z"
	unresolvedAt := "2026-03-03T09:00:00.000000000Z"

	stored, _, err := repo.InsertIfAbsent(ctx, newTestIssue("web", "dddd111122223333", at))
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, stored.IssueID, "resolved", resolvedAt, &resolvedAt); err != nil {
		t.Fatalf("UpdateStatus(resolve) error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, stored.IssueID, "unresolved", unresolvedAt, nil); err != nil {
		t.Fatalf("UpdateStatus(unresolve) error = %v", err)
	}

	got, err := repo.GetByID(ctx, stored.IssueID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "unresolved" {
		t.Fatalf("status = %q, want unresolved", got.Status)
	}
	// resolved_at keeps its history when resolvedAt is nil.
	if got.ResolvedAt == nil || *got.ResolvedAt != resolvedAt {
		t.Fatalf("resolved_at = %v, want %q", got.ResolvedAt, resolvedAt)
	}
	if got.UpdatedAt != unresolvedAt {
		t.Fatalf("updated_at = %q, want %q", got.UpdatedAt, unresolvedAt)
	}
}
