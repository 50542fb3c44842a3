package model

// KVEntry backs the local key-value namespace: image mappings and serialized
// notification preferences.
type KVEntry struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (KVEntry) TableName() string {
	return "local_kv"
}
