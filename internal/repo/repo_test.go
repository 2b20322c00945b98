package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
)

var testDBSeq int

// newTestDB opens a fresh in-memory database (pure-Go sqlite, no CGO) with
// the full schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:repodb%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// --- accounts & keys ---

func TestCreateAccount_AndLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := CreateAccount(ctx, db, "Ada", "ada@example.com", "hash", domain.PlanFree)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID == "" || acc.Plan != domain.PlanFree {
		t.Fatalf("unexpected account: %+v", acc)
	}

	got, err := GetAccount(ctx, db, acc.ID)
	if err != nil || got.Email != "ada@example.com" {
		t.Fatalf("GetAccount: %v %+v", err, got)
	}

	byEmail, err := GetAccountByEmail(ctx, db, "ada@example.com")
	if err != nil || byEmail.ID != acc.ID {
		t.Fatalf("GetAccountByEmail: %v", err)
	}

	if _, err := GetAccountByEmail(ctx, db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindAccountBySecret_LegacyField(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	legacy := "jk_legacy_secret"
	acc := &domain.Account{
		ID: uuid.NewString(), Name: "L", Email: "l@example.com",
		PasswordHash: "x", Plan: domain.PlanPro, LegacyAPIKey: &legacy,
	}
	if err := db.Create(acc).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, entry, err := FindAccountBySecret(ctx, db, legacy)
	if err != nil {
		t.Fatalf("FindAccountBySecret: %v", err)
	}
	if got.ID != acc.ID {
		t.Fatalf("wrong account resolved")
	}
	// Legacy matches carry no key entry.
	if entry != nil {
		t.Fatalf("legacy match should not return a key entry")
	}
}

func TestFindAccountBySecret_KeyEntry_IncludingExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := CreateAccount(ctx, db, "K", "k@example.com", "x", domain.PlanFree)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	past := time.Now().Add(-time.Minute)
	if _, err := CreateAPIKey(ctx, db, acc.ID, "jk_expiring", &past); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	// The lookup itself does not filter expired entries; that judgement is
	// the caller's, so expired stays distinguishable from unknown.
	got, entry, err := FindAccountBySecret(ctx, db, "jk_expiring")
	if err != nil {
		t.Fatalf("FindAccountBySecret: %v", err)
	}
	if got.ID != acc.ID || entry == nil {
		t.Fatalf("expected account + entry")
	}
	if !entry.Expired(time.Now()) {
		t.Fatalf("entry should report expired")
	}

	if _, _, err := FindAccountBySecret(ctx, db, "jk_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown secret should be ErrNotFound, got %v", err)
	}
}

func TestFindAccountBySecret_InactiveEntryNotResolved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, err := CreateAccount(ctx, db, "R", "r@example.com", "x", domain.PlanFree)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	entry, err := CreateAPIKey(ctx, db, acc.ID, "jk_revoked", nil)
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := DeactivateAPIKey(ctx, db, acc.ID, entry.ID); err != nil {
		t.Fatalf("DeactivateAPIKey: %v", err)
	}

	if _, _, err := FindAccountBySecret(ctx, db, "jk_revoked"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked secret should not resolve, got %v", err)
	}
}

func TestDeactivateAPIKey_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := DeactivateAPIKey(context.Background(), db, "acc", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAPIKeys_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	acc, _ := CreateAccount(ctx, db, "N", "n@example.com", "x", domain.PlanFree)
	for i := 0; i < 3; i++ {
		if _, err := CreateAPIKey(ctx, db, acc.ID, fmt.Sprintf("jk_%d", i), nil); err != nil {
			t.Fatalf("CreateAPIKey: %v", err)
		}
	}
	keys, err := ListAPIKeys(ctx, db, acc.ID)
	if err != nil || len(keys) != 3 {
		t.Fatalf("ListAPIKeys: %v len=%d", err, len(keys))
	}
}

// --- quota state ---

func TestGetQuotaState_CreatesZeroedRowAnchoredAtNow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	qs, err := GetQuotaState(ctx, db, "acc-1", now)
	if err != nil {
		t.Fatalf("GetQuotaState: %v", err)
	}
	if qs.Count != 0 || !qs.LastReset.Equal(now) {
		t.Fatalf("fresh state should be zeroed at now: %+v", qs)
	}

	qs.Count = 5
	if err := SaveQuotaState(ctx, db, qs); err != nil {
		t.Fatalf("SaveQuotaState: %v", err)
	}
	again, err := GetQuotaState(ctx, db, "acc-1", now.Add(time.Hour))
	if err != nil || again.Count != 5 {
		t.Fatalf("second read should keep persisted state: %v %+v", err, again)
	}
	// The anchor must not move on read.
	if !again.LastReset.Equal(now) {
		t.Fatalf("LastReset moved on read: %v vs %v", again.LastReset, now)
	}
}

// --- conversation ledger ---

func TestAppendToday_FilesUnderTodayBucket(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := &domain.ChatEntry{
		ID:        "CID1-test",
		AccountID: "acc-1",
		Title:     "Lease question",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "seed"},
			{Role: domain.RoleUser, Content: "q"},
			{Role: domain.RoleAssistant, Content: "a"},
		},
	}
	if err := AppendToday(ctx, db, entry); err != nil {
		t.Fatalf("AppendToday: %v", err)
	}
	if entry.Day != DayBucket(time.Now()) {
		t.Fatalf("entry filed under %q, want today's bucket", entry.Day)
	}

	got, err := FindEntry(ctx, db, "acc-1", "CID1-test")
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	// Seq fixes replay order.
	for i, m := range got.Messages {
		if m.Seq != i {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
}

func TestFindEntry_CrossBucketAndOwnership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Simulate an entry created on an earlier day: insert directly with an
	// old bucket value.
	old := &domain.ChatEntry{
		ID:        "CID2-old",
		AccountID: "acc-1",
		Day:       "2024-01-15",
		Title:     "Old matter",
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Lookup by id succeeds regardless of which day bucket holds the entry.
	got, err := FindEntry(ctx, db, "acc-1", "CID2-old")
	if err != nil || got.Day != "2024-01-15" {
		t.Fatalf("cross-bucket lookup failed: %v %+v", err, got)
	}

	// Another account cannot see it.
	if _, err := FindEntry(ctx, db, "acc-2", "CID2-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign account lookup should be ErrNotFound, got %v", err)
	}
	// Unknown id is ErrNotFound, never an implicit create.
	if _, err := FindEntry(ctx, db, "acc-1", "CID-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id should be ErrNotFound, got %v", err)
	}
	if n, _ := CountEntries(ctx, db, "acc-1"); n != 1 {
		t.Fatalf("lookup must not create entries, count=%d", n)
	}
}

func TestAppendMessages_ContinuesSequence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := &domain.ChatEntry{
		ID:        "CID3-seq",
		AccountID: "acc-1",
		Title:     "T",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "seed"},
			{Role: domain.RoleUser, Content: "q1"},
			{Role: domain.RoleAssistant, Content: "a1"},
		},
	}
	if err := AppendToday(ctx, db, entry); err != nil {
		t.Fatalf("AppendToday: %v", err)
	}

	err := AppendMessages(ctx, db, entry.ID, []domain.Message{
		{Role: domain.RoleUser, Content: "q2"},
		{Role: domain.RoleAssistant, Content: "a2"},
	})
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	got, err := FindEntry(ctx, db, "acc-1", entry.ID)
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if len(got.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(got.Messages))
	}
	want := []string{"seed", "q1", "a1", "q2", "a2"}
	for i, m := range got.Messages {
		if m.Content != want[i] {
			t.Fatalf("message %d = %q, want %q", i, m.Content, want[i])
		}
		if m.Seq != i {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
}

func TestListEntriesPage_And_Count(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := &domain.ChatEntry{
			ID:        fmt.Sprintf("CID-page-%d", i),
			AccountID: "acc-1",
			Title:     fmt.Sprintf("t%d", i),
		}
		if err := AppendToday(ctx, db, e); err != nil {
			t.Fatalf("AppendToday: %v", err)
		}
	}

	total, err := CountEntries(ctx, db, "acc-1")
	if err != nil || total != 5 {
		t.Fatalf("CountEntries: %v total=%d", err, total)
	}

	page, err := ListEntriesPage(ctx, db, "acc-1", 0, 3)
	if err != nil || len(page) != 3 {
		t.Fatalf("ListEntriesPage: %v len=%d", err, len(page))
	}
	rest, err := ListEntriesPage(ctx, db, "acc-1", 3, 3)
	if err != nil || len(rest) != 2 {
		t.Fatalf("second page: %v len=%d", err, len(rest))
	}
}

func TestDayBucket_UTC(t *testing.T) {
	// 23:30 in UTC-5 is 04:30 next day UTC; buckets are UTC-based.
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	if got := DayBucket(local); got != "2024-03-11" {
		t.Fatalf("DayBucket = %q, want 2024-03-11", got)
	}
}

// --- documents ---

func TestDocumentRecord_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateDocument(ctx, db, "doc-1", "acc-1", "Contract", "full text")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	got, err := GetDocument(ctx, db, rec.ID)
	if err != nil || got.ExtractedText != "full text" || got.Title != "Contract" {
		t.Fatalf("GetDocument: %v %+v", err, got)
	}
	if _, err := GetDocument(ctx, db, "doc-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- activity logs ---

func TestActivityLog_AppendThenPatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := &domain.ActivityLog{
		ID:        uuid.NewString(),
		AccountID: "acc-1",
		Method:    "POST",
		Path:      "/api/v1/chat",
	}
	if err := CreateActivityLog(ctx, db, entry); err != nil {
		t.Fatalf("CreateActivityLog: %v", err)
	}
	if err := PatchActivityLog(ctx, db, entry.ID, 200, 150*time.Millisecond); err != nil {
		t.Fatalf("PatchActivityLog: %v", err)
	}

	var got domain.ActivityLog
	if err := db.First(&got, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Status != 200 || got.LatencyMS != 150 {
		t.Fatalf("patch not applied: %+v", got)
	}

	if err := PatchActivityLog(ctx, db, "missing", 200, time.Millisecond); !errors.Is(err, ErrNotFound) {
		t.Fatalf("patch of missing entry should be ErrNotFound, got %v", err)
	}

	if n, _ := CountActivity(ctx, db, "acc-1"); n != 1 {
		t.Fatalf("CountActivity = %d", n)
	}
}

// --- idempotency records ---

func TestIdempotency_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := SaveIdempotency(ctx, db, "acc-1", "retry-1", 200, `{"ok":true}`, time.Hour)
	if err != nil {
		t.Fatalf("SaveIdempotency: %v", err)
	}
	if rec.ID == "" || !rec.ExpiresAt.After(now) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "acc-1", "retry-1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.Status != 200 || got.Body != `{"ok":true}` {
		t.Fatalf("round trip: %+v", got)
	}

	// Empty key and unknown key are both misses.
	if _, err := GetIdempotency(ctx, db, "acc-1", "", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty key: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "acc-1", "other", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown key: %v", err)
	}
}

func TestIdempotency_ExpiryAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := SaveIdempotency(ctx, db, "acc-1", "retry-1", 200, "{}", time.Hour); err != nil {
		t.Fatalf("SaveIdempotency: %v", err)
	}

	// Past the TTL the record no longer resolves.
	later := time.Now().UTC().Add(2 * time.Hour)
	if _, err := GetIdempotency(ctx, db, "acc-1", "retry-1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be ErrNotFound, got %v", err)
	}

	// Same (account, key) pair cannot be inserted twice.
	if _, err := SaveIdempotency(ctx, db, "acc-1", "retry-1", 200, "{}", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different account may reuse the key.
	if _, err := SaveIdempotency(ctx, db, "acc-2", "retry-1", 200, "{}", time.Hour); err != nil {
		t.Fatalf("other account save: %v", err)
	}
}
