package intake

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/domain/crash"
	domainissue "faultline/internal/domain/issue"
	"faultline/internal/errs"
	"faultline/internal/metrics"
	"faultline/internal/ports"
	"faultline/internal/symbolicate"
)

// errUpsertLostRace restarts one upsert attempt: the insert hit the
// uniqueness constraint but the winning row was not yet visible.
var errUpsertLostRace = errors.New("issue upsert lost the race")

// Capture runs the full pipeline for a single event. Symbolication state
// lives and dies with this call.
func (s *Service) Capture(ctx context.Context, projectID string, input crash.Input) (CaptureResult, error) {
	return s.capture(ctx, projectID, input, symbolicate.NewSession())
}

func (s *Service) capture(ctx context.Context, projectID string, input crash.Input, session *symbolicate.Session) (CaptureResult, error) {
	if ctx == nil {
		return CaptureResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return CaptureResult{}, errs.Wrap(err, "check context")
	}
	if s.issues == nil || s.events == nil || s.uow == nil || s.prints == nil {
		return CaptureResult{}, errors.New("intake service is not fully wired")
	}

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		metrics.EventsCaptured.WithLabelValues(metrics.OutcomeValidationError).Inc()
		return CaptureResult{}, crash.ErrProjectRequired
	}
	if err := input.Validate(); err != nil {
		metrics.EventsCaptured.WithLabelValues(metrics.OutcomeValidationError).Inc()
		return CaptureResult{}, err
	}

	// Both parses were exercised by Validate and cannot fail here.
	platform, _ := crash.ParsePlatform(input.Platform)
	level, _ := crash.ParseLevel(input.Level)
	release := strings.TrimSpace(input.Release)

	raw := input.RawStacktrace()
	symbolicated := raw
	if s.engine != nil {
		symbolicated = s.engine.Symbolicate(ctx, session, projectID, release, platform, raw)
	}

	fp := s.prints.Compute(projectID, input.ExceptionType(), input.ExceptionValue(), symbolicated)
	culprit := s.prints.Culprit(projectID, symbolicated)
	title := input.Title()

	now := nowUTCString()
	timestamp := strings.TrimSpace(input.Timestamp)
	if timestamp == "" {
		timestamp = now
	}

	event := ports.CrashEvent{
		EventID:        uuid.NewString(),
		ProjectID:      projectID,
		Platform:       string(platform),
		Level:          string(level),
		ExceptionType:  input.ExceptionType(),
		ExceptionValue: input.ExceptionValue(),
		Message:        strings.TrimSpace(input.Message),
		Release:        release,
		Environment:    strings.TrimSpace(input.Environment),
		Fingerprint:    fp,
		Timestamp:      timestamp,
		ReceivedAt:     now,
	}
	if err := encodeEventBlobs(&event, input, raw, symbolicated); err != nil {
		metrics.EventsCaptured.WithLabelValues(metrics.OutcomeValidationError).Inc()
		return CaptureResult{}, err
	}

	stored, isNew, regressed, err := s.upsertIssue(ctx, upsertIssueInput{
		projectID: projectID,
		fp:        fp,
		title:     title,
		culprit:   culprit,
		level:     level,
		release:   release,
		now:       now,
		event:     &event,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConflictRetryExhausted):
			metrics.EventsCaptured.WithLabelValues(metrics.OutcomeConflictExhausted).Inc()
		default:
			metrics.EventsCaptured.WithLabelValues(metrics.OutcomeStorageError).Inc()
		}
		return CaptureResult{}, err
	}

	metrics.EventsCaptured.WithLabelValues(metrics.OutcomeOK).Inc()
	if isNew {
		metrics.IssuesOpened.Inc()
	}
	if regressed {
		metrics.IssueRegressions.Inc()
	}

	short := shortID(projectID, stored.IssueID)
	s.publish(broadcast.NewEvent(projectID, event.EventID, stored.IssueID, short, title, string(level), release, isNew, now))
	if regressed {
		s.publish(broadcast.IssueRegressed(projectID, stored.IssueID, short, title, release, now))
	}

	logging.Debug(ctx, "event captured",
		slog.String("project", projectID),
		slog.String("event_id", event.EventID),
		slog.Uint64("issue_id", stored.IssueID),
		slog.Bool("new_issue", isNew),
		slog.Bool("regression", regressed))

	return CaptureResult{
		EventID:      event.EventID,
		IssueID:      stored.IssueID,
		ShortID:      short,
		IsNewIssue:   isNew,
		IsRegression: regressed,
	}, nil
}

type upsertIssueInput struct {
	projectID string
	fp        string
	title     string
	culprit   string
	level     crash.Level
	release   string
	now       string
	event     *ports.CrashEvent
}

// upsertIssue races the (project, fingerprint) uniqueness constraint and
// persists the event in the same transaction as the issue bookkeeping.
// Each attempt is one transaction; losing the race rolls back cleanly and
// retries after a jittered backoff.
func (s *Service) upsertIssue(ctx context.Context, in upsertIssueInput) (ports.Issue, bool, bool, error) {
	var (
		stored    ports.Issue
		isNew     bool
		regressed bool
	)

	for attempt := 0; attempt < s.cfg.UpsertMaxAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(backoffDelay(attempt-1, s.cfg.UpsertBackoffBase, s.cfg.UpsertBackoffMax))
		}

		isNew, regressed = false, false
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			existing, err := s.issues.GetByFingerprint(txCtx, in.projectID, in.fp)
			switch {
			case errors.Is(err, ports.ErrIssueNotFound):
				inserted, created, insertErr := s.issues.InsertIfAbsent(txCtx, ports.Issue{
					ProjectID:   in.projectID,
					Fingerprint: in.fp,
					Status:      string(domainissue.StatusUnresolved),
					Level:       string(in.level),
					Priority:    in.level.Priority(),
					Title:       in.title,
					Culprit:     in.culprit,
					FirstSeen:   in.now,
					LastSeen:    in.now,
					EventCount:  1,
					CreatedAt:   in.now,
					UpdatedAt:   in.now,
				})
				if insertErr != nil {
					return insertErr
				}
				if created {
					stored = inserted
					isNew = true
					break
				}
				// Another writer inserted first; fetch the winner and
				// count this event as a recurrence of it.
				existing, err = s.issues.GetByFingerprint(txCtx, in.projectID, in.fp)
				if errors.Is(err, ports.ErrIssueNotFound) {
					return errUpsertLostRace
				}
				if err != nil {
					return err
				}
				if err := s.applyRecurrence(txCtx, existing, in, &regressed); err != nil {
					return err
				}
				stored = existing
			case err != nil:
				return err
			default:
				if err := s.applyRecurrence(txCtx, existing, in, &regressed); err != nil {
					return err
				}
				stored = existing
			}

			in.event.IssueID = stored.IssueID
			if err := s.events.Create(txCtx, *in.event); err != nil {
				return err
			}

			if in.release != "" && s.releases != nil {
				if err := s.releases.BumpCounters(txCtx, in.projectID, in.release, in.now, isNew, regressed); err != nil {
					return err
				}
			}
			return nil
		})

		if err == nil {
			return stored, isNew, regressed, nil
		}
		if errors.Is(err, errUpsertLostRace) {
			continue
		}
		return ports.Issue{}, false, false, err
	}

	return ports.Issue{}, false, false, ErrConflictRetryExhausted
}

// applyRecurrence records one more event against an existing issue,
// reopening it when it was resolved.
func (s *Service) applyRecurrence(ctx context.Context, existing ports.Issue, in upsertIssueInput, regressed *bool) error {
	_, reg := domainissue.OnRecurrence(domainissue.Status(existing.Status))
	if reg {
		if err := s.issues.RecordRegression(ctx, existing.IssueID, in.release, in.now); err != nil {
			return err
		}
		*regressed = true
		return nil
	}
	return s.issues.RecordRecurrence(ctx, existing.IssueID, in.now)
}

// encodeEventBlobs fills the JSON text columns. Empty structures stay ""
// so the row carries no noise for events without context.
func encodeEventBlobs(event *ports.CrashEvent, input crash.Input, raw, symbolicated crash.Stacktrace) error {
	if !raw.IsEmpty() {
		encoded, err := toJSON(raw)
		if err != nil {
			return err
		}
		event.RawStacktrace = encoded
	}
	if !symbolicated.IsEmpty() {
		encoded, err := toJSON(symbolicated)
		if err != nil {
			return err
		}
		event.Stacktrace = encoded
	}

	contexts := map[string]any{}
	for key, value := range map[string]map[string]any{
		"user":    input.User,
		"device":  input.Device,
		"os":      input.OS,
		"browser": input.Browser,
		"request": input.Request,
	} {
		if len(value) > 0 {
			contexts[key] = value
		}
	}
	if len(contexts) > 0 {
		encoded, err := toJSON(contexts)
		if err != nil {
			return err
		}
		event.Contexts = encoded
	}

	if len(input.Breadcrumbs) > 0 {
		encoded, err := toJSON(input.Breadcrumbs)
		if err != nil {
			return err
		}
		event.Breadcrumbs = encoded
	}
	if len(input.Tags) > 0 {
		encoded, err := toJSON(input.Tags)
		if err != nil {
			return err
		}
		event.Tags = encoded
	}
	return nil
}

func (s *Service) publish(env broadcast.Envelope) {
	if s.registry == nil {
		return
	}
	s.registry.Publish(env)
}
