package model

type Release struct {
	ReleaseID       uint64 `gorm:"column:release_id;primaryKey;autoIncrement"`
	ProjectID       string `gorm:"column:project_id;type:text;not null;uniqueIndex:idx_releases_project_version,priority:1"`
	Version         string `gorm:"column:version;type:text;not null;uniqueIndex:idx_releases_project_version,priority:2"`
	CrashCount      uint64 `gorm:"column:crash_count;not null;default:0"`
	NewIssueCount   uint64 `gorm:"column:new_issue_count;not null;default:0"`
	RegressionCount uint64 `gorm:"column:regression_count;not null;default:0"`
	FirstEventAt    string `gorm:"column:first_event_at;type:text;not null"`
	LastEventAt     string `gorm:"column:last_event_at;type:text;not null"`
}

func (Release) TableName() string {
	return "releases"
}
