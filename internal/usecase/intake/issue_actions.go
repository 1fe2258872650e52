package intake

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	domainissue "faultline/internal/domain/issue"
	"faultline/internal/errs"
	"faultline/internal/ports"
)

// GetIssue loads one issue with its most recent events, scoped to the
// project so cross-project ids read as absent.
func (s *Service) GetIssue(ctx context.Context, projectID string, issueID uint64) (IssueDetail, error) {
	if ctx == nil {
		return IssueDetail{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return IssueDetail{}, errs.Wrap(err, "check context")
	}

	stored, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	if stored.ProjectID != strings.TrimSpace(projectID) {
		return IssueDetail{}, ports.ErrIssueNotFound
	}

	rows, err := s.events.ListByIssue(ctx, issueID, s.cfg.EventsPerIssue)
	if err != nil {
		return IssueDetail{}, err
	}

	detail := IssueDetail{IssueItem: issueItem(stored), Events: make([]EventItem, 0, len(rows))}
	for _, row := range rows {
		detail.Events = append(detail.Events, eventItem(row))
	}
	return detail, nil
}

func (s *Service) ListIssues(ctx context.Context, input ListIssuesInput) ([]IssueItem, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	if status := strings.TrimSpace(input.Status); status != "" {
		if _, err := domainissue.ParseStatus(status); err != nil {
			return nil, err
		}
	}

	rows, err := s.issues.List(ctx, ports.IssueFilter{
		ProjectID: input.ProjectID,
		Status:    input.Status,
		Assignee:  input.Assignee,
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, err
	}

	items := make([]IssueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, issueItem(row))
	}
	return items, nil
}

func (s *Service) ResolveIssue(ctx context.Context, projectID string, issueID uint64) (IssueItem, error) {
	return s.transitionIssue(ctx, projectID, issueID, domainissue.Resolve)
}

func (s *Service) UnresolveIssue(ctx context.Context, projectID string, issueID uint64) (IssueItem, error) {
	return s.transitionIssue(ctx, projectID, issueID, domainissue.Unresolve)
}

func (s *Service) IgnoreIssue(ctx context.Context, projectID string, issueID uint64) (IssueItem, error) {
	return s.transitionIssue(ctx, projectID, issueID, domainissue.Ignore)
}

// transitionIssue applies one lifecycle action. A transition that neither
// changes status nor refreshes timestamps writes nothing and broadcasts
// nothing; resolve and ignore refresh even when already there.
func (s *Service) transitionIssue(ctx context.Context, projectID string, issueID uint64, apply func(domainissue.Status) domainissue.Transition) (IssueItem, error) {
	if ctx == nil {
		return IssueItem{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return IssueItem{}, errs.Wrap(err, "check context")
	}
	if s.uow == nil {
		return IssueItem{}, errors.New("unit of work is required")
	}

	projectID = strings.TrimSpace(projectID)
	now := nowUTCString()

	var (
		updated ports.Issue
		next    domainissue.Status
		wrote   bool
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		stored, err := s.issues.GetByID(txCtx, issueID)
		if err != nil {
			return err
		}
		if stored.ProjectID != projectID {
			return ports.ErrIssueNotFound
		}

		current, err := domainissue.ParseStatus(stored.Status)
		if err != nil {
			return err
		}

		tr := apply(current)
		next = tr.Next
		if !tr.Changed && !tr.Refresh {
			updated = stored
			return nil
		}

		var resolvedAt *string
		if tr.Next == domainissue.StatusResolved {
			resolvedAt = &now
		}
		if err := s.issues.UpdateStatus(txCtx, issueID, string(tr.Next), now, resolvedAt); err != nil {
			return err
		}

		updated, err = s.issues.GetByID(txCtx, issueID)
		if err != nil {
			return err
		}
		wrote = true
		return nil
	}); err != nil {
		return IssueItem{}, err
	}

	if wrote {
		s.publish(broadcast.IssueResolved(projectID, issueID, shortID(projectID, issueID), string(next), now))
	}
	return issueItem(updated), nil
}

// AssignIssue sets or clears (empty assignee) the triage owner.
func (s *Service) AssignIssue(ctx context.Context, projectID string, issueID uint64, assignee string) (IssueItem, error) {
	if ctx == nil {
		return IssueItem{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return IssueItem{}, errs.Wrap(err, "check context")
	}
	if s.uow == nil {
		return IssueItem{}, errors.New("unit of work is required")
	}

	projectID = strings.TrimSpace(projectID)
	assignee = strings.TrimSpace(assignee)
	now := nowUTCString()

	var updated ports.Issue
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		stored, err := s.issues.GetByID(txCtx, issueID)
		if err != nil {
			return err
		}
		if stored.ProjectID != projectID {
			return ports.ErrIssueNotFound
		}

		if err := s.issues.SetAssignee(txCtx, issueID, assignee, now); err != nil {
			return err
		}

		updated, err = s.issues.GetByID(txCtx, issueID)
		return err
	}); err != nil {
		return IssueItem{}, err
	}

	s.publish(broadcast.IssueAssigned(projectID, issueID, shortID(projectID, issueID), assignee, now))
	return issueItem(updated), nil
}

// DeleteIssue removes the issue and every event it owns in one
// transaction.
func (s *Service) DeleteIssue(ctx context.Context, projectID string, issueID uint64) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}

	projectID = strings.TrimSpace(projectID)

	var removedEvents int64
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		stored, err := s.issues.GetByID(txCtx, issueID)
		if err != nil {
			return err
		}
		if stored.ProjectID != projectID {
			return ports.ErrIssueNotFound
		}

		removedEvents, err = s.events.DeleteByIssue(txCtx, issueID)
		if err != nil {
			return err
		}
		return s.issues.Delete(txCtx, issueID)
	}); err != nil {
		return err
	}

	logging.Info(ctx, "issue deleted",
		slog.String("project", projectID),
		slog.Uint64("issue_id", issueID),
		slog.Int64("events_removed", removedEvents))
	return nil
}
