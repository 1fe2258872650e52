package intake

import (
	"context"
	"errors"
	"strings"

	"faultline/internal/errs"
	"faultline/internal/ports"
)

// ReleaseItem is the per-version crash health projection.
type ReleaseItem struct {
	Version         string `json:"version"`
	CrashCount      uint64 `json:"crash_count"`
	NewIssueCount   uint64 `json:"new_issue_count"`
	RegressionCount uint64 `json:"regression_count"`
	FirstEventAt    string `json:"first_event_at"`
	LastEventAt     string `json:"last_event_at"`
}

// ListReleases returns a project's releases, most recently active first.
func (s *Service) ListReleases(ctx context.Context, projectID string, limit int) ([]ReleaseItem, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if s.releases == nil {
		return nil, errors.New("release repository is required")
	}

	rows, err := s.releases.ListByProject(ctx, strings.TrimSpace(projectID), limit)
	if err != nil {
		return nil, err
	}

	items := make([]ReleaseItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, releaseItem(row))
	}
	return items, nil
}

func (s *Service) GetRelease(ctx context.Context, projectID string, version string) (ReleaseItem, error) {
	if ctx == nil {
		return ReleaseItem{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ReleaseItem{}, errs.Wrap(err, "check context")
	}
	if s.releases == nil {
		return ReleaseItem{}, errors.New("release repository is required")
	}

	row, err := s.releases.GetByVersion(ctx, strings.TrimSpace(projectID), strings.TrimSpace(version))
	if err != nil {
		return ReleaseItem{}, err
	}
	return releaseItem(row), nil
}

func releaseItem(row ports.Release) ReleaseItem {
	return ReleaseItem{
		Version:         row.Version,
		CrashCount:      row.CrashCount,
		NewIssueCount:   row.NewIssueCount,
		RegressionCount: row.RegressionCount,
		FirstEventAt:    row.FirstEventAt,
		LastEventAt:     row.LastEventAt,
	}
}
