package model

type CrashEvent struct {
	EventID        string `gorm:"column:event_id;type:text;primaryKey"`
	ProjectID      string `gorm:"column:project_id;type:text;not null;index"`
	IssueID        uint64 `gorm:"column:issue_id;not null;index"`
	Platform       string `gorm:"column:platform;type:text;not null"`
	Level          string `gorm:"column:level;type:text;not null"`
	ExceptionType  string `gorm:"column:exception_type;type:text;not null;default:''"`
	ExceptionValue string `gorm:"column:exception_value;type:text;not null;default:''"`
	Message        string `gorm:"column:message;type:text;not null;default:''"`
	Release        string `gorm:"column:release;type:text;not null;default:''"`
	Environment    string `gorm:"column:environment;type:text;not null;default:''"`
	Fingerprint    string `gorm:"column:fingerprint;type:text;not null"`
	RawStacktrace  string `gorm:"column:raw_stacktrace;type:text;not null;default:''"`
	Stacktrace     string `gorm:"column:stacktrace;type:text;not null;default:''"`
	Contexts       string `gorm:"column:contexts;type:text;not null;default:''"`
	Breadcrumbs    string `gorm:"column:breadcrumbs;type:text;not null;default:''"`
	Tags           string `gorm:"column:tags;type:text;not null;default:''"`
	Timestamp      string `gorm:"column:timestamp;type:text;not null"`
	ReceivedAt     string `gorm:"column:received_at;type:text;not null;index"`
}

func (CrashEvent) TableName() string {
	return "events"
}
