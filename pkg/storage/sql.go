package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
)

const defaultSQLNamespace = "default"

// SQL stores entries as rows of storage_entries keyed by (namespace, entry_key).
type SQL struct {
	client    *db.Client
	namespace string
	now       func() time.Time
}

func NewSQL(client *db.Client) *SQL {
	return &SQL{client: client, namespace: defaultSQLNamespace, now: time.Now}
}

func (s *SQL) WithNamespace(namespace string) Storage {
	return &SQL{client: s.client, namespace: namespace, now: s.now}
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var entry models.StorageEntry
	err := s.client.DB().WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", s.namespace, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.upsert(s.client.DB().WithContext(ctx), key, value)
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	return s.remove(s.client.DB().WithContext(ctx), key)
}

func (s *SQL) Apply(ctx context.Context, sets map[string]string, removes []string) error {
	for key := range sets {
		if err := validateKey(key); err != nil {
			return err
		}
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, key := range sortedKeys(sets) {
			if err := s.upsert(tx, key, sets[key]); err != nil {
				return err
			}
		}
		for _, key := range removes {
			if err := s.remove(tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQL) upsert(conn *gorm.DB, key, value string) error {
	entry := models.StorageEntry{
		Namespace: s.namespace,
		EntryKey:  key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	return conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQL) remove(conn *gorm.DB, key string) error {
	return conn.
		Where("namespace = ? AND entry_key = ?", s.namespace, key).
		Delete(&models.StorageEntry{}).Error
}

// PurgeBefore deletes entries of every namespace last written before cutoff.
func (s *SQL) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.client.DB().WithContext(ctx).
		Where("updated_at < ?", cutoff.UTC()).
		Delete(&models.StorageEntry{})
	return res.RowsAffected, res.Error
}
