// Package issue holds the pure lifecycle rules for deduplicated crash
// issues: the closed status set, the transition table, and short id
// rendering. Persistence and orchestration live elsewhere.
package issue

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the persisted lifecycle state. A regression is not a status:
// it is recorded as metadata while status reverts to unresolved.
type Status string

const (
	StatusUnresolved Status = "unresolved"
	StatusResolved   Status = "resolved"
	StatusIgnored    Status = "ignored"
)

var statuses = map[Status]struct{}{
	StatusUnresolved: {},
	StatusResolved:   {},
	StatusIgnored:    {},
}

func ParseStatus(value string) (Status, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	s := Status(trimmed)
	if _, ok := statuses[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// Transition is the outcome of applying a user action to a status.
// Changed reports whether the status actually moved; Refresh reports
// whether timestamps must be bumped even when it did not (resolve and
// ignore always refresh, per the lifecycle contract).
type Transition struct {
	Next    Status
	Changed bool
	Refresh bool
}

func Resolve(current Status) Transition {
	return Transition{Next: StatusResolved, Changed: current != StatusResolved, Refresh: true}
}

func Unresolve(current Status) Transition {
	changed := current != StatusUnresolved
	return Transition{Next: StatusUnresolved, Changed: changed, Refresh: changed}
}

func Ignore(current Status) Transition {
	return Transition{Next: StatusIgnored, Changed: current != StatusIgnored, Refresh: true}
}

// OnRecurrence decides what a new event does to an existing issue: a
// resolved issue regresses back to unresolved, anything else stays put.
func OnRecurrence(current Status) (next Status, regressed bool) {
	if current == StatusResolved {
		return StatusUnresolved, true
	}
	return current, false
}

// ShortID renders the human-facing issue handle, e.g. ACME-2N for issue 95
// in project acme: uppercase project slug plus the base-36 issue id.
func ShortID(project string, issueID uint64) string {
	slug := strings.ToUpper(strings.TrimSpace(project))
	return slug + "-" + strings.ToUpper(strconv.FormatUint(issueID, 36))
}
