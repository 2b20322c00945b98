// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the durable document-context store:
// the no-TTL variant of the upload-and-query context, keyed by a generated
// id.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

// CreateDocument persists an extracted document context permanently.
func CreateDocument(ctx context.Context, db *gorm.DB, id, accountID, title, text string) (*domain.DocumentRecord, error) {
	d := &domain.DocumentRecord{
		ID:            id,
		AccountID:     accountID,
		Title:         title,
		ExtractedText: text,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument fetches a durable document context by id, or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.DocumentRecord, error) {
	var d domain.DocumentRecord
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}
