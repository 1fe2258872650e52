package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/ports"
)

type EventRepository struct {
	db *gorm.DB
}

var _ ports.EventRepository = (*EventRepository)(nil)

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event ports.CrashEvent) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := mapEventToRow(event)
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert event")
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, eventID string) (ports.CrashEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.CrashEvent{}, err
	}

	var row model.CrashEvent
	if err := db.Where("event_id = ?", eventID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CrashEvent{}, ports.ErrEventNotFound
		}
		return ports.CrashEvent{}, errs.Wrap(err, "query event")
	}
	return mapEvent(row), nil
}

func (r *EventRepository) ListByIssue(ctx context.Context, issueID uint64, limit int) ([]ports.CrashEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CrashEvent{}).
		Where("issue_id = ?", issueID).
		Order("received_at desc, event_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.CrashEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query events by issue")
	}

	items := make([]ports.CrashEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items, nil
}

func (r *EventRepository) DeleteByIssue(ctx context.Context, issueID uint64) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := db.Where("issue_id = ?", issueID).Delete(&model.CrashEvent{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete events by issue")
	}
	return result.RowsAffected, nil
}

func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := db.Where("received_at < ?", cutoff).Delete(&model.CrashEvent{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete old events")
	}
	return result.RowsAffected, nil
}

func mapEventToRow(event ports.CrashEvent) model.CrashEvent {
	return model.CrashEvent{
		EventID:        event.EventID,
		ProjectID:      event.ProjectID,
		IssueID:        event.IssueID,
		Platform:       event.Platform,
		Level:          event.Level,
		ExceptionType:  event.ExceptionType,
		ExceptionValue: event.ExceptionValue,
		Message:        event.Message,
		Release:        event.Release,
		Environment:    event.Environment,
		Fingerprint:    event.Fingerprint,
		RawStacktrace:  event.RawStacktrace,
		Stacktrace:     event.Stacktrace,
		Contexts:       event.Contexts,
		Breadcrumbs:    event.Breadcrumbs,
		Tags:           event.Tags,
		Timestamp:      event.Timestamp,
		ReceivedAt:     event.ReceivedAt,
	}
}

func mapEvent(row model.CrashEvent) ports.CrashEvent {
	return ports.CrashEvent{
		EventID:        row.EventID,
		ProjectID:      row.ProjectID,
		IssueID:        row.IssueID,
		Platform:       row.Platform,
		Level:          row.Level,
		ExceptionType:  row.ExceptionType,
		ExceptionValue: row.ExceptionValue,
		Message:        row.Message,
		Release:        row.Release,
		Environment:    row.Environment,
		Fingerprint:    row.Fingerprint,
		RawStacktrace:  row.RawStacktrace,
		Stacktrace:     row.Stacktrace,
		Contexts:       row.Contexts,
		Breadcrumbs:    row.Breadcrumbs,
		Tags:           row.Tags,
		Timestamp:      row.Timestamp,
		ReceivedAt:     row.ReceivedAt,
	}
}
