package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

// DeleteOldArtifacts removes artifacts last touched by symbolication
// before cutoff, falling back to upload time for artifacts never touched.
// The caller owns the schedule; this is predicate plus delete only.
func (s *Service) DeleteOldArtifacts(ctx context.Context, cutoff time.Time) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}

	removed, err := s.artifacts.DeleteOlderThan(ctx, formatCutoff(cutoff))
	if err != nil {
		return 0, err
	}
	logging.Info(ctx, "artifact retention sweep",
		slog.Time("cutoff", cutoff.UTC()),
		slog.Int64("removed", removed))
	return removed, nil
}

// DeleteOldEvents removes events received before cutoff. Issues keep
// their counters; only the raw occurrences age out.
func (s *Service) DeleteOldEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}

	removed, err := s.events.DeleteOlderThan(ctx, formatCutoff(cutoff))
	if err != nil {
		return 0, err
	}
	logging.Info(ctx, "event retention sweep",
		slog.Time("cutoff", cutoff.UTC()),
		slog.Int64("removed", removed))
	return removed, nil
}
