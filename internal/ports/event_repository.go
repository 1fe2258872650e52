package ports

import (
	"context"
	"errors"
)

var ErrEventNotFound = errors.New("event not found")

// CrashEvent is one persisted occurrence. Immutable once written; the raw
// stacktrace survives symbolication as an audit sidecar. Structured blobs
// are stored as JSON text.
type CrashEvent struct {
	EventID        string
	ProjectID      string
	IssueID        uint64
	Platform       string
	Level          string
	ExceptionType  string
	ExceptionValue string
	Message        string
	Release        string
	Environment    string
	Fingerprint    string
	RawStacktrace  string
	Stacktrace     string
	Contexts       string
	Breadcrumbs    string
	Tags           string
	Timestamp      string
	ReceivedAt     string
}

type EventRepository interface {
	Create(ctx context.Context, event CrashEvent) error
	GetByID(ctx context.Context, eventID string) (CrashEvent, error)
	ListByIssue(ctx context.Context, issueID uint64, limit int) ([]CrashEvent, error)
	// DeleteByIssue backs the issue-delete cascade.
	DeleteByIssue(ctx context.Context, issueID uint64) (int64, error)
	// DeleteOlderThan removes events received before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff string) (int64, error)
}
