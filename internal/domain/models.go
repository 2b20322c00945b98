// Package domain defines the persistence models for accounts, API keys,
// quota state, the per-account conversation ledger, activity logs, and
// durable document contexts. These types are mapped with GORM and form the
// core data layer of the legal-assistant backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Subscription plans. Unknown values are treated as PlanFree by the quota
// layer, so persisting an unexpected string never grants extra capacity.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// Message roles within a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Account is a billable identity identified by one or more API secrets.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identifier for the first-party surface.
//   - PasswordHash: opaque credential digest (hashing is delegated to an
//     external adapter; the core never inspects this value).
//   - Plan: subscription tier governing quota policy (free|pro|premium).
//   - LegacyAPIKey: single-key field from the previous key scheme. Kept so
//     both key formats resolve to one identity; new keys live in Keys.
//   - Keys: issued key entries; appended by issuance, deactivated, never
//     physically deleted.
type Account struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Name         string         `json:"name"           gorm:"type:varchar(128);not null"`
	Email        string         `json:"email"          gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string         `json:"-"              gorm:"type:varchar(255);not null"`
	Plan         string         `json:"plan"           gorm:"type:varchar(16);not null;default:'free'"`
	LegacyAPIKey *string        `json:"-"              gorm:"type:varchar(64);uniqueIndex"`
	Keys         []APIKey       `json:"-"              gorm:"foreignKey:AccountID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// APIKey is one issued key entry for an account. At most one account may
// resolve from any given non-expired active secret (enforced by the unique
// index on Secret together with the resolver query).
type APIKey struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID string         `json:"account_id" gorm:"type:char(36);not null;index"`
	Secret    string         `json:"-"          gorm:"type:varchar(64);not null;uniqueIndex"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Active    bool           `json:"active"     gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for APIKey.
func (APIKey) TableName() string { return "api_keys" }

// Expired reports whether the key entry carries an expiry in the past
// relative to now. A nil ExpiresAt never expires.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// QuotaState is the per-account rolling request counter. Count only grows
// within a window; it is zeroed when the elapsed time since LastReset meets
// or exceeds the plan's window duration. The reset is lazy: computed at
// admission time, not by a background timer.
type QuotaState struct {
	AccountID string    `json:"account_id" gorm:"type:char(36);primaryKey"`
	Count     int64     `json:"count"      gorm:"not null;default:0"`
	LastReset time.Time `json:"last_reset" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for QuotaState.
func (QuotaState) TableName() string { return "quota_states" }

// ChatEntry is one conversation in an account's ledger. Entries are filed
// under the calendar day (Day, "2006-01-02") current at creation time; the
// day bucket is organizational only and never expires entries. Conversation
// IDs are unique per account across all day buckets, so lookup by ID goes
// through the primary key rather than a bucket scan.
type ChatEntry struct {
	ID        string         `json:"conversation_id" gorm:"type:varchar(64);primaryKey"`
	AccountID string         `json:"account_id"      gorm:"type:char(36);not null;index:idx_account_day,priority:1"`
	Day       string         `json:"day"             gorm:"type:char(10);not null;index:idx_account_day,priority:2"`
	Title     string         `json:"title"           gorm:"type:varchar(255);not null"`
	Messages  []Message      `json:"messages"        gorm:"foreignKey:ChatEntryID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for ChatEntry.
func (ChatEntry) TableName() string { return "chat_entries" }

// Message is a single ordered turn within a conversation. Messages are
// append-only and immutable once written; Seq fixes the replay order.
type Message struct {
	ID          string         `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatEntryID string         `json:"-"       gorm:"type:varchar(64);not null;index:idx_entry_seq,priority:1"`
	Seq         int            `json:"-"       gorm:"not null;index:idx_entry_seq,priority:2"`
	Role        string         `json:"role"    gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content     string         `json:"content" gorm:"type:text;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"-"       gorm:"index"`

	// ChatEntry is the parent conversation. Messages are cascade-deleted
	// if their entry is removed.
	ChatEntry ChatEntry `json:"-" gorm:"foreignKey:ChatEntryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DocumentRecord is the durable variant of an uploaded document context:
// the same {id, extractedText} shape held by the TTL cache, persisted with
// no expiry.
type DocumentRecord struct {
	ID            string         `json:"document_id" gorm:"type:char(36);primaryKey"`
	AccountID     string         `json:"account_id"  gorm:"type:char(36);not null;index"`
	Title         string         `json:"title"       gorm:"type:varchar(255);not null"`
	ExtractedText string         `json:"-"           gorm:"type:text;not null"`
	CreatedAt     time.Time      `json:"created_at"`
	DeletedAt     gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for DocumentRecord.
func (DocumentRecord) TableName() string { return "document_records" }

// ActivityLog is one structured request/response record, appended at
// request-start and patched with status/latency once the response has been
// flushed. Recording is best-effort and never gates the request path.
type ActivityLog struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	AccountID  string    `json:"account_id"  gorm:"type:char(36);not null;index"`
	Method     string    `json:"method"      gorm:"type:varchar(8);not null"`
	Path       string    `json:"path"        gorm:"type:varchar(255);not null"`
	Query      string    `json:"query"       gorm:"type:text"`
	BodySample string    `json:"body_sample" gorm:"type:text"`
	UserAgent  string    `json:"user_agent"  gorm:"type:varchar(255)"`
	RemoteIP   string    `json:"remote_ip"   gorm:"type:varchar(64)"`
	Status     int       `json:"status"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for ActivityLog.
func (ActivityLog) TableName() string { return "activity_logs" }

// IdempotencyRecord stores the response of a completed chat turn, keyed by
// (account_id, key) where key is the client-supplied Idempotency-Key header.
// A retry carrying the same key within the TTL window replays the recorded
// status and body instead of re-running generation.
type IdempotencyRecord struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID string    `json:"account_id" gorm:"type:char(36);not null;uniqueIndex:ux_account_idem_key,priority:1"`
	Key       string    `json:"key"        gorm:"type:varchar(200);not null;uniqueIndex:ux_account_idem_key,priority:2"`
	Status    int       `json:"status"     gorm:"not null"`
	Body      string    `json:"-"          gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName returns the database table name for IdempotencyRecord.
func (IdempotencyRecord) TableName() string { return "idempotency_records" }
