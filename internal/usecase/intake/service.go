// Package intake orchestrates the capture pipeline: validate, symbolicate,
// fingerprint, upsert the issue, persist the event, then notify. It also
// carries the issue action, artifact and retention operations the outer
// surfaces call.
package intake

import (
	"time"

	"faultline/internal/broadcast"
	"faultline/internal/fingerprint"
	"faultline/internal/ports"
	"faultline/internal/symbolicate"
)

// Config bounds the pipeline. Zero values fall back to the documented
// defaults.
type Config struct {
	BatchMax          int
	BatchParallelism  int
	UpsertMaxAttempts int
	UpsertBackoffBase time.Duration
	UpsertBackoffMax  time.Duration
	MaxUploadBytes    int64
	EventsPerIssue    int
}

const (
	defaultBatchMax          = 100
	defaultBatchParallelism  = 4
	defaultUpsertMaxAttempts = 5
	defaultUpsertBackoffBase = 25 * time.Millisecond
	defaultUpsertBackoffMax  = 400 * time.Millisecond
	defaultMaxUploadBytes    = 32 << 20
	defaultEventsPerIssue    = 100
)

func (c Config) withDefaults() Config {
	if c.BatchMax < 1 {
		c.BatchMax = defaultBatchMax
	}
	if c.BatchParallelism < 1 {
		c.BatchParallelism = defaultBatchParallelism
	}
	if c.UpsertMaxAttempts < 1 {
		c.UpsertMaxAttempts = defaultUpsertMaxAttempts
	}
	if c.UpsertBackoffBase <= 0 {
		c.UpsertBackoffBase = defaultUpsertBackoffBase
	}
	if c.UpsertBackoffMax <= 0 {
		c.UpsertBackoffMax = defaultUpsertBackoffMax
	}
	if c.MaxUploadBytes < 1 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.EventsPerIssue < 1 {
		c.EventsPerIssue = defaultEventsPerIssue
	}
	return c
}

type Service struct {
	issues    ports.IssueRepository
	events    ports.EventRepository
	artifacts ports.ArtifactRepository
	releases  ports.ReleaseRepository
	uow       ports.UnitOfWork
	engine    *symbolicate.Engine
	prints    *fingerprint.Fingerprinter
	registry  *broadcast.Registry
	cfg       Config

	// sleep is swapped out by tests so retry backoff costs nothing.
	sleep func(time.Duration)
}

// NewService wires the capture pipeline. registry may be nil when no live
// consumers exist (one-shot CLI invocations).
func NewService(
	issues ports.IssueRepository,
	events ports.EventRepository,
	artifacts ports.ArtifactRepository,
	releases ports.ReleaseRepository,
	uow ports.UnitOfWork,
	engine *symbolicate.Engine,
	prints *fingerprint.Fingerprinter,
	registry *broadcast.Registry,
	cfg Config,
) *Service {
	return &Service{
		issues:    issues,
		events:    events,
		artifacts: artifacts,
		releases:  releases,
		uow:       uow,
		engine:    engine,
		prints:    prints,
		registry:  registry,
		cfg:       cfg.withDefaults(),
		sleep:     time.Sleep,
	}
}

// CaptureResult reports what one accepted event resolved to.
type CaptureResult struct {
	EventID      string `json:"event_id"`
	IssueID      uint64 `json:"issue_id"`
	ShortID      string `json:"short_id"`
	IsNewIssue   bool   `json:"is_new_issue"`
	IsRegression bool   `json:"is_regression"`
}

// BatchItemResult is one slot of a batch response, ok or error, never
// both.
type BatchItemResult struct {
	Index  int
	Result CaptureResult
	Err    error
}

// IssueItem is the list/detail projection of an issue for API, CLI and
// console consumers.
type IssueItem struct {
	IssueID            uint64 `json:"issue_id"`
	ShortID            string `json:"short_id"`
	ProjectID          string `json:"project_id"`
	Status             string `json:"status"`
	Level              string `json:"level"`
	Priority           string `json:"priority"`
	Title              string `json:"title"`
	Culprit            string `json:"culprit"`
	FirstSeen          string `json:"first_seen"`
	LastSeen           string `json:"last_seen"`
	EventCount         uint64 `json:"event_count"`
	TimesRegressed     uint64 `json:"times_regressed"`
	RegressedInRelease string `json:"regressed_in_release,omitempty"`
	Assignee           string `json:"assignee,omitempty"`
	ResolvedAt         string `json:"resolved_at,omitempty"`
}

// EventItem summarizes one stored occurrence under an issue.
type EventItem struct {
	EventID     string `json:"event_id"`
	Level       string `json:"level"`
	Platform    string `json:"platform"`
	Release     string `json:"release,omitempty"`
	Environment string `json:"environment,omitempty"`
	Timestamp   string `json:"timestamp"`
	ReceivedAt  string `json:"received_at"`
}

// IssueDetail is an IssueItem plus its most recent events.
type IssueDetail struct {
	IssueItem
	Events []EventItem `json:"events"`
}

type ListIssuesInput struct {
	ProjectID string
	Status    string
	Assignee  string
	Limit     int
}

func issueItem(stored ports.Issue) IssueItem {
	return IssueItem{
		IssueID:            stored.IssueID,
		ShortID:            shortID(stored.ProjectID, stored.IssueID),
		ProjectID:          stored.ProjectID,
		Status:             stored.Status,
		Level:              stored.Level,
		Priority:           stored.Priority,
		Title:              stored.Title,
		Culprit:            stored.Culprit,
		FirstSeen:          stored.FirstSeen,
		LastSeen:           stored.LastSeen,
		EventCount:         stored.EventCount,
		TimesRegressed:     stored.TimesRegressed,
		RegressedInRelease: stored.RegressedInRelease,
		Assignee:           derefString(stored.Assignee),
		ResolvedAt:         derefString(stored.ResolvedAt),
	}
}

func eventItem(event ports.CrashEvent) EventItem {
	return EventItem{
		EventID:     event.EventID,
		Level:       event.Level,
		Platform:    event.Platform,
		Release:     event.Release,
		Environment: event.Environment,
		Timestamp:   event.Timestamp,
		ReceivedAt:  event.ReceivedAt,
	}
}
