// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the activity-log store used by the
// best-effort request recorder.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

// CreateActivityLog appends a request snapshot. Status and latency are
// typically zero here and patched later via PatchActivityLog.
func CreateActivityLog(ctx context.Context, db *gorm.DB, entry *domain.ActivityLog) error {
	entry.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(entry).Error
}

// PatchActivityLog fills in the response status and latency of an existing
// log entry once the response has been flushed. Returns ErrNotFound when
// the entry does not exist.
func PatchActivityLog(ctx context.Context, db *gorm.DB, id string, status int, latency time.Duration) error {
	res := db.WithContext(ctx).
		Model(&domain.ActivityLog{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "latency_ms": latency.Milliseconds()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActivity returns the total number of recorded requests for an
// account.
func CountActivity(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ActivityLog{}).
		Where("account_id = ?", accountID).
		Count(&total).Error
	return total, err
}
