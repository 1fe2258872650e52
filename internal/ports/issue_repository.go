package ports

import (
	"context"
	"errors"
)

var ErrIssueNotFound = errors.New("issue not found")

// Issue is the persisted aggregate for one deduplicated crash. It carries
// counters and regression metadata, never owned event rows.
type Issue struct {
	IssueID            uint64
	ProjectID          string
	Fingerprint        string
	Status             string
	Level              string
	Priority           string
	Title              string
	Culprit            string
	FirstSeen          string
	LastSeen           string
	EventCount         uint64
	TimesRegressed     uint64
	RegressedInRelease string
	LastRegressedAt    *string
	Assignee           *string
	ResolvedAt         *string
	CreatedAt          string
	UpdatedAt          string
}

type IssueFilter struct {
	ProjectID string
	Status    string
	Assignee  string
	Limit     int
}

type IssueRepository interface {
	// InsertIfAbsent races the (project_id, fingerprint) uniqueness
	// constraint: created=false means another writer got there first and
	// the caller should fetch instead. Never reads before writing.
	InsertIfAbsent(ctx context.Context, issue Issue) (stored Issue, created bool, err error)
	GetByID(ctx context.Context, issueID uint64) (Issue, error)
	GetByFingerprint(ctx context.Context, projectID string, fingerprint string) (Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]Issue, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	// RecordRecurrence counts one more event against the issue.
	RecordRecurrence(ctx context.Context, issueID uint64, lastSeen string) error
	// RecordRegression applies the regression rule in one statement:
	// counter, release, timestamp, status back to unresolved, plus the
	// recurrence bookkeeping for the triggering event.
	RecordRegression(ctx context.Context, issueID uint64, release string, at string) error
	UpdateStatus(ctx context.Context, issueID uint64, status string, updatedAt string, resolvedAt *string) error
	SetAssignee(ctx context.Context, issueID uint64, assignee string, updatedAt string) error
	Delete(ctx context.Context, issueID uint64) error
}
