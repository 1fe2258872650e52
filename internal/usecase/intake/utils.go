package intake

import (
	"encoding/json"
	"math"
	"math/rand"
	"time"

	domainissue "faultline/internal/domain/issue"
	"faultline/internal/errs"
)

func shortID(projectID string, issueID uint64) string {
	return domainissue.ShortID(projectID, issueID)
}

// timeLayout renders UTC instants at fixed width so lexicographic
// comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func nowUTCString() string {
	return time.Now().UTC().Format(timeLayout)
}

func formatCutoff(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// backoffDelay computes base * 2^attempt capped at max, with 10% jitter
// so concurrent losers of an upsert race spread out instead of colliding
// again.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	delay := float64(base) * math.Pow(2, float64(attempt))
	if max > 0 && delay > float64(max) {
		delay = float64(max)
	}

	jitter := delay * 0.10 * (rand.Float64()*2 - 1)
	return time.Duration(delay + jitter)
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(err, "encode json blob")
	}
	return string(data), nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
