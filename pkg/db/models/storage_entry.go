package models

import "time"

// StorageEntry is one shopper key-value entry of the SQL storage backend.
type StorageEntry struct {
	Namespace string    `gorm:"column:namespace;primaryKey;size:128"`
	EntryKey  string    `gorm:"column:entry_key;primaryKey;size:64"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (StorageEntry) TableName() string { return "storage_entries" }
