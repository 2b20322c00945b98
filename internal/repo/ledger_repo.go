// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the conversation ledger: day-bucketed
// writes, flat indexed reads.
//
// The ledger files every conversation under the calendar day current at
// creation time (ChatEntry.Day) but resolves lookups by conversation ID
// through the primary key, so a read never scans buckets. Day buckets are
// organizational (per-day analytics and listing), not a TTL: entries are
// never auto-expired.
//
// Functions:
//
//   - AppendToday(ctx, db, entry): insert a new ChatEntry (and its seed
//     messages) into today's bucket, atomically.
//   - FindEntry(ctx, db, accountID, id): locate an entry in any bucket,
//     with messages ordered by sequence; ErrNotFound when absent.
//   - AppendMessages(ctx, db, entryID, msgs): append ordered turns.
//   - ListEntriesPage / CountEntries: paginated ledger listing.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

// DayBucket formats t (UTC) as the calendar-day bucket key.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AppendToday inserts entry into the bucket for the current day. The entry
// and all of its messages are written in one transaction: either the whole
// conversation lands in the ledger or nothing does.
func AppendToday(ctx context.Context, db *gorm.DB, entry *domain.ChatEntry) error {
	now := time.Now().UTC()
	entry.Day = DayBucket(now)
	entry.CreatedAt = now
	for i := range entry.Messages {
		if entry.Messages[i].ID == "" {
			entry.Messages[i].ID = uuid.NewString()
		}
		entry.Messages[i].ChatEntryID = entry.ID
		entry.Messages[i].Seq = i
		entry.Messages[i].CreatedAt = now
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

// FindEntry locates a conversation by ID for the given account, regardless
// of which day bucket it was filed under. Messages are loaded in sequence
// order. Returns ErrNotFound when no entry matches.
func FindEntry(ctx context.Context, db *gorm.DB, accountID, id string) (*domain.ChatEntry, error) {
	var e domain.ChatEntry
	err := db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq asc") }).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AppendMessages appends msgs to an existing entry, continuing its sequence
// numbering, in one transaction. The parent entry's UpdatedAt is bumped so
// listing by recency stays meaningful.
func AppendMessages(ctx context.Context, db *gorm.DB, entryID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&domain.Message{}).
			Where("chat_entry_id = ?", entryID).
			Select("COALESCE(MAX(seq), -1)").
			Scan(&last).Error
		if err != nil {
			return err
		}
		for i := range msgs {
			if msgs[i].ID == "" {
				msgs[i].ID = uuid.NewString()
			}
			msgs[i].ChatEntryID = entryID
			msgs[i].Seq = last + 1 + i
			msgs[i].CreatedAt = now
		}
		if err := tx.Create(&msgs).Error; err != nil {
			return err
		}
		return tx.Model(&domain.ChatEntry{}).
			Where("id = ?", entryID).
			Update("updated_at", now).Error
	})
}

// CountEntries returns the total number of ledger entries for an account.
func CountEntries(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatEntry{}).
		Where("account_id = ?", accountID).
		Count(&total).Error
	return total, err
}

// ListEntriesPage returns a page of ledger entries for an account, most
// recently created first. Messages are not preloaded; use FindEntry for the
// full history of one conversation.
func ListEntriesPage(ctx context.Context, db *gorm.DB, accountID string, offset, limit int) ([]domain.ChatEntry, error) {
	var out []domain.ChatEntry
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
