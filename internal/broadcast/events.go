package broadcast

// Kind names one envelope variant on a project stream.
type Kind string

const (
	KindInit           Kind = "init"
	KindNewEvent       Kind = "new-event"
	KindIssueRegressed Kind = "issue-regressed"
	KindIssueResolved  Kind = "issue-resolved"
	KindIssueAssigned  Kind = "issue-assigned"
)

// Envelope is the wire shape delivered to every subscriber of a project
// stream. Only the fields relevant to the kind are populated; the rest
// stay omitted from the JSON encoding.
type Envelope struct {
	Kind      Kind   `json:"kind"`
	ProjectID string `json:"project_id"`
	Timestamp string `json:"timestamp"`

	// init only.
	IssueCount int64 `json:"issue_count,omitempty"`

	// new-event only.
	EventID string `json:"event_id,omitempty"`

	// Issue summary, carried by every kind except init.
	IssueID    uint64 `json:"issue_id,omitempty"`
	ShortID    string `json:"short_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Level      string `json:"level,omitempty"`
	Status     string `json:"status,omitempty"`
	Assignee   string `json:"assignee,omitempty"`
	Release    string `json:"release,omitempty"`
	IsNewIssue bool   `json:"is_new_issue,omitempty"`
}

// NewEvent builds the envelope published once per captured event.
func NewEvent(projectID, eventID string, issueID uint64, shortID, title, level, release string, isNewIssue bool, at string) Envelope {
	return Envelope{
		Kind:       KindNewEvent,
		ProjectID:  projectID,
		Timestamp:  at,
		EventID:    eventID,
		IssueID:    issueID,
		ShortID:    shortID,
		Title:      title,
		Level:      level,
		Release:    release,
		IsNewIssue: isNewIssue,
	}
}

// IssueRegressed builds the extra envelope emitted when a recurrence
// reopened a resolved issue.
func IssueRegressed(projectID string, issueID uint64, shortID, title, release string, at string) Envelope {
	return Envelope{
		Kind:      KindIssueRegressed,
		ProjectID: projectID,
		Timestamp: at,
		IssueID:   issueID,
		ShortID:   shortID,
		Title:     title,
		Status:    "unresolved",
		Release:   release,
	}
}

// IssueResolved builds the envelope for a status transition out of the
// issue action surface. Status carries the new status, so the same kind
// also announces ignore and unresolve.
func IssueResolved(projectID string, issueID uint64, shortID, status string, at string) Envelope {
	return Envelope{
		Kind:      KindIssueResolved,
		ProjectID: projectID,
		Timestamp: at,
		IssueID:   issueID,
		ShortID:   shortID,
		Status:    status,
	}
}

// IssueAssigned builds the envelope for an assignment change.
func IssueAssigned(projectID string, issueID uint64, shortID, assignee string, at string) Envelope {
	return Envelope{
		Kind:      KindIssueAssigned,
		ProjectID: projectID,
		Timestamp: at,
		IssueID:   issueID,
		ShortID:   shortID,
		Assignee:  assignee,
	}
}

func initEnvelope(projectID string, issueCount int64, at string) Envelope {
	return Envelope{
		Kind:       KindInit,
		ProjectID:  projectID,
		Timestamp:  at,
		IssueCount: issueCount,
	}
}
