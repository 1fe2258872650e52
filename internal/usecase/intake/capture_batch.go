package intake

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"faultline/internal/domain/crash"
	"faultline/internal/errs"
	"faultline/internal/symbolicate"
)

// CaptureBatch processes up to BatchMax events with per-item isolation:
// one item failing never aborts its siblings, and the returned slice
// preserves input order. Items share one symbolication session so a
// source map is fetched and parsed once per batch.
func (s *Service) CaptureBatch(ctx context.Context, projectID string, inputs []crash.Input) ([]BatchItemResult, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	if len(inputs) > s.cfg.BatchMax {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchSizeExceeded, len(inputs), s.cfg.BatchMax)
	}
	if len(inputs) == 0 {
		return []BatchItemResult{}, nil
	}

	session := symbolicate.NewSession()
	results := make([]BatchItemResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchParallelism)
	for i := range inputs {
		g.Go(func() error {
			res, err := s.capture(gctx, projectID, inputs[i], session)
			results[i] = BatchItemResult{Index: i, Result: res, Err: err}
			// Item errors live in the result slot; returning nil keeps
			// the group from cancelling siblings.
			return nil
		})
	}
	// No goroutine returns an error, so Wait only synchronizes.
	_ = g.Wait()

	return results, nil
}
