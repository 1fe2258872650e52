package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/ports"
)

type IssueRepository struct {
	db *gorm.DB
}

var _ ports.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) InsertIfAbsent(ctx context.Context, issue ports.Issue) (ports.Issue, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, false, err
	}

	row := model.Issue{
		ProjectID:          issue.ProjectID,
		Fingerprint:        issue.Fingerprint,
		Status:             issue.Status,
		Level:              issue.Level,
		Priority:           issue.Priority,
		Title:              issue.Title,
		Culprit:            issue.Culprit,
		FirstSeen:          issue.FirstSeen,
		LastSeen:           issue.LastSeen,
		EventCount:         issue.EventCount,
		TimesRegressed:     issue.TimesRegressed,
		RegressedInRelease: issue.RegressedInRelease,
		LastRegressedAt:    issue.LastRegressedAt,
		Assignee:           issue.Assignee,
		ResolvedAt:         issue.ResolvedAt,
		CreatedAt:          issue.CreatedAt,
		UpdatedAt:          issue.UpdatedAt,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "fingerprint"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return ports.Issue{}, false, errs.Wrap(result.Error, "insert issue")
	}
	if result.RowsAffected == 0 {
		// Lost the uniqueness race; the caller fetches the winner.
		return ports.Issue{}, false, nil
	}
	return mapIssue(row), true, nil
}

func (r *IssueRepository) GetByID(ctx context.Context, issueID uint64) (ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, ports.ErrIssueNotFound
		}
		return ports.Issue{}, errs.Wrap(err, "query issue")
	}
	return mapIssue(row), nil
}

func (r *IssueRepository) GetByFingerprint(ctx context.Context, projectID string, fingerprint string) (ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("project_id = ? AND fingerprint = ?", projectID, fingerprint).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, ports.ErrIssueNotFound
		}
		return ports.Issue{}, errs.Wrap(err, "query issue by fingerprint")
	}
	return mapIssue(row), nil
}

func (r *IssueRepository) List(ctx context.Context, filter ports.IssueFilter) ([]ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Issue{})
	if projectID := strings.TrimSpace(filter.ProjectID); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignee := strings.TrimSpace(filter.Assignee); assignee != "" {
		query = query.Where("assignee = ?", assignee)
	}
	query = query.Order("last_seen desc, issue_id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Issue
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issues")
	}

	items := make([]ports.Issue, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIssue(row))
	}
	return items, nil
}

func (r *IssueRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Issue{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count issues")
	}
	return count, nil
}

func (r *IssueRepository) RecordRecurrence(ctx context.Context, issueID uint64, lastSeen string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Issue{}).
		Where("issue_id = ?", issueID).
		Updates(map[string]any{
			"event_count": gorm.Expr("event_count + 1"),
			"last_seen":   lastSeen,
			"updated_at":  lastSeen,
		}).Error; err != nil {
		return errs.Wrap(err, "record recurrence")
	}
	return nil
}

func (r *IssueRepository) RecordRegression(ctx context.Context, issueID uint64, release string, at string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Issue{}).
		Where("issue_id = ?", issueID).
		Updates(map[string]any{
			"times_regressed":      gorm.Expr("times_regressed + 1"),
			"regressed_in_release": release,
			"last_regressed_at":    at,
			"status":               "unresolved",
			"event_count":          gorm.Expr("event_count + 1"),
			"last_seen":            at,
			"updated_at":           at,
		}).Error; err != nil {
		return errs.Wrap(err, "record regression")
	}
	return nil
}

func (r *IssueRepository) UpdateStatus(ctx context.Context, issueID uint64, status string, updatedAt string, resolvedAt *string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":     status,
		"updated_at": updatedAt,
	}
	if resolvedAt != nil {
		updates["resolved_at"] = *resolvedAt
	}

	if err := db.Model(&model.Issue{}).
		Where("issue_id = ?", issueID).
		Updates(updates).Error; err != nil {
		return errs.Wrap(err, "update issue status")
	}
	return nil
}

func (r *IssueRepository) SetAssignee(ctx context.Context, issueID uint64, assignee string, updatedAt string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Issue{}).
		Where("issue_id = ?", issueID).
		Updates(map[string]any{
			"assignee":   assignee,
			"updated_at": updatedAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update issue assignee")
	}
	return nil
}

func (r *IssueRepository) Delete(ctx context.Context, issueID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Where("issue_id = ?", issueID).Delete(&model.Issue{}).Error; err != nil {
		return errs.Wrap(err, "delete issue")
	}
	return nil
}

func mapIssue(row model.Issue) ports.Issue {
	return ports.Issue{
		IssueID:            row.IssueID,
		ProjectID:          row.ProjectID,
		Fingerprint:        row.Fingerprint,
		Status:             row.Status,
		Level:              row.Level,
		Priority:           row.Priority,
		Title:              row.Title,
		Culprit:            row.Culprit,
		FirstSeen:          row.FirstSeen,
		LastSeen:           row.LastSeen,
		EventCount:         row.EventCount,
		TimesRegressed:     row.TimesRegressed,
		RegressedInRelease: row.RegressedInRelease,
		LastRegressedAt:    row.LastRegressedAt,
		Assignee:           row.Assignee,
		ResolvedAt:         row.ResolvedAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
