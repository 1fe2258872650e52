package model

// KV backs the generic cache port: map-parse failure memos and other
// small bookkeeping entries.
type KV struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (KV) TableName() string {
	return "faultline_kv"
}
