package model

// Artifact stores uploaded debug file bytes inline; the composite unique
// index is what makes re-uploads of identical content a no-op.
type Artifact struct {
	ArtifactID        uint64  `gorm:"column:artifact_id;primaryKey;autoIncrement"`
	ProjectID         string  `gorm:"column:project_id;type:text;not null;uniqueIndex:idx_artifacts_project_sha,priority:1;index:idx_artifacts_name_lookup,priority:1"`
	SHA256            string  `gorm:"column:sha256;type:text;not null;uniqueIndex:idx_artifacts_project_sha,priority:2"`
	Release           string  `gorm:"column:release;type:text;not null;default:'';index:idx_artifacts_name_lookup,priority:2"`
	Name              string  `gorm:"column:name;type:text;not null;index:idx_artifacts_name_lookup,priority:3"`
	Type              string  `gorm:"column:type;type:text;not null"`
	Content           []byte  `gorm:"column:content;type:blob;not null"`
	Size              int64   `gorm:"column:size;not null"`
	HasSourcesContent bool    `gorm:"column:has_sources_content;not null;default:0"`
	UploadedAt        string  `gorm:"column:uploaded_at;type:text;not null"`
	LastAccessedAt    *string `gorm:"column:last_accessed_at;type:text"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
