package models

import (
	"fmt"

	"gorm.io/gorm"
)

// UpdateVersioned writes the named columns of rec to the row with id, but
// only while the stored version still equals version. The caller sets rec's
// Version to version+1. A missing row yields ErrNotFound, a stale version
// ErrConflict.
func UpdateVersioned[T any](tx *gorm.DB, id string, version int, rec *T, columns []string) error {
	cols := append([]string{"version", "updated_at"}, columns...)
	res := tx.Model(new(T)).
		Where("id = ? AND version = ?", id, version).
		Select(cols).
		Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("%s at version %d: %w", id, version, ErrConflict)
}
