package model

// Issue rows enforce the one-issue-per-(project, fingerprint) invariant
// through the composite unique index; the intake upsert races against it.
type Issue struct {
	IssueID            uint64  `gorm:"column:issue_id;primaryKey;autoIncrement"`
	ProjectID          string  `gorm:"column:project_id;type:text;not null;uniqueIndex:idx_issues_project_fingerprint,priority:1"`
	Fingerprint        string  `gorm:"column:fingerprint;type:text;not null;uniqueIndex:idx_issues_project_fingerprint,priority:2"`
	Status             string  `gorm:"column:status;type:text;not null"`
	Level              string  `gorm:"column:level;type:text;not null"`
	Priority           string  `gorm:"column:priority;type:text;not null"`
	Title              string  `gorm:"column:title;type:text;not null"`
	Culprit            string  `gorm:"column:culprit;type:text;not null"`
	FirstSeen          string  `gorm:"column:first_seen;type:text;not null"`
	LastSeen           string  `gorm:"column:last_seen;type:text;not null"`
	EventCount         uint64  `gorm:"column:event_count;not null;default:0"`
	TimesRegressed     uint64  `gorm:"column:times_regressed;not null;default:0"`
	RegressedInRelease string  `gorm:"column:regressed_in_release;type:text;not null;default:''"`
	LastRegressedAt    *string `gorm:"column:last_regressed_at;type:text"`
	Assignee           *string `gorm:"column:assignee;type:text"`
	ResolvedAt         *string `gorm:"column:resolved_at;type:text"`
	CreatedAt          string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt          string  `gorm:"column:updated_at;type:text;not null"`
}

func (Issue) TableName() string {
	return "issues"
}
