package ports

import (
	"context"
	"errors"
)

var ErrReleaseNotFound = errors.New("release not found")

// Release aggregates per-version crash statistics for a project.
type Release struct {
	ReleaseID       uint64
	ProjectID       string
	Version         string
	CrashCount      uint64
	NewIssueCount   uint64
	RegressionCount uint64
	FirstEventAt    string
	LastEventAt     string
}

type ReleaseRepository interface {
	// BumpCounters upserts the (project, version) row and increments its
	// counters in one statement; newIssue and regression add to their
	// respective counts on top of the crash count.
	BumpCounters(ctx context.Context, projectID string, version string, at string, newIssue bool, regression bool) error
	GetByVersion(ctx context.Context, projectID string, version string) (Release, error)
	ListByProject(ctx context.Context, projectID string, limit int) ([]Release, error)
}
