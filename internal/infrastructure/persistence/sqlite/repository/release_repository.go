package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/ports"
)

type ReleaseRepository struct {
	db *gorm.DB
}

var _ ports.ReleaseRepository = (*ReleaseRepository)(nil)

func NewReleaseRepository(db *gorm.DB) *ReleaseRepository {
	return &ReleaseRepository{db: db}
}

// BumpCounters records one captured event against a release. The row is
// created on first sight; increments run inside the upsert so concurrent
// captures never lose a count to a read-modify-write race.
func (r *ReleaseRepository) BumpCounters(ctx context.Context, projectID string, version string, at string, newIssue bool, regression bool) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Release{
		ProjectID:    projectID,
		Version:      version,
		CrashCount:   1,
		FirstEventAt: at,
		LastEventAt:  at,
	}
	if newIssue {
		row.NewIssueCount = 1
	}
	if regression {
		row.RegressionCount = 1
	}

	assignments := map[string]any{
		"crash_count":   gorm.Expr("crash_count + 1"),
		"last_event_at": at,
	}
	if newIssue {
		assignments["new_issue_count"] = gorm.Expr("new_issue_count + 1")
	}
	if regression {
		assignments["regression_count"] = gorm.Expr("regression_count + 1")
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "version"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "bump release counters")
	}
	return nil
}

func (r *ReleaseRepository) GetByVersion(ctx context.Context, projectID string, version string) (ports.Release, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Release{}, err
	}

	var row model.Release
	if err := db.Where("project_id = ? AND version = ?", projectID, version).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Release{}, ports.ErrReleaseNotFound
		}
		return ports.Release{}, errs.Wrap(err, "query release")
	}
	return mapRelease(row), nil
}

func (r *ReleaseRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]ports.Release, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.
		Where("project_id = ?", projectID).
		Order("last_event_at desc, release_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Release
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list releases")
	}

	releases := make([]ports.Release, 0, len(rows))
	for _, row := range rows {
		releases = append(releases, mapRelease(row))
	}
	return releases, nil
}

func mapRelease(row model.Release) ports.Release {
	return ports.Release{
		ReleaseID:       row.ReleaseID,
		ProjectID:       row.ProjectID,
		Version:         row.Version,
		CrashCount:      row.CrashCount,
		NewIssueCount:   row.NewIssueCount,
		RegressionCount: row.RegressionCount,
		FirstEventAt:    row.FirstEventAt,
		LastEventAt:     row.LastEventAt,
	}
}
