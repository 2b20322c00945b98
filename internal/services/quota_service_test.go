package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

func freeAccount(id string) *domain.Account {
	return &domain.Account{ID: id, Plan: domain.PlanFree}
}

func TestQuotaAdmit_FreePlanAllowanceThenReject(t *testing.T) {
	db := newTestDB(t)
	q := NewQuotaService(db)
	ctx := context.Background()
	acc := freeAccount("acc-free")

	for i := 0; i < 10; i++ {
		d, err := q.Admit(ctx, acc)
		if err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("admit %d should be allowed", i+1)
		}
		if want := int64(10 - i - 1); d.Remaining != want {
			t.Fatalf("admit %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d, err := q.Admit(ctx, acc)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("11th admit should be ErrQuotaExceeded, got %v", err)
	}
	if d == nil || d.Allowed {
		t.Fatalf("rejection decision missing or allowed: %+v", d)
	}
	if d.Plan != domain.PlanFree {
		t.Fatalf("decision plan = %q", d.Plan)
	}
	// Finite window: the hint is a countdown, not a support message.
	if !strings.Contains(d.RetryAfter, "m ") || !strings.HasSuffix(d.RetryAfter, "s") {
		t.Fatalf("retry hint %q not in countdown form", d.RetryAfter)
	}
}

func TestQuotaAdmit_PremiumNeverTouchesState(t *testing.T) {
	db := newTestDB(t)
	q := NewQuotaService(db)
	ctx := context.Background()
	acc := &domain.Account{ID: "acc-prem", Plan: domain.PlanPremium}

	for i := 0; i < 50; i++ {
		d, err := q.Admit(ctx, acc)
		if err != nil || !d.Allowed {
			t.Fatalf("premium admit %d: %v %+v", i+1, err, d)
		}
	}

	var rows int64
	if err := db.Model(&domain.QuotaState{}).Count(&rows).Error; err != nil {
		t.Fatalf("count quota rows: %v", err)
	}
	if rows != 0 {
		t.Fatalf("premium admission created %d quota rows", rows)
	}
}

func TestQuotaAdmit_UnknownPlanFallsBackToFree(t *testing.T) {
	db := newTestDB(t)
	q := NewQuotaService(db)
	ctx := context.Background()
	acc := &domain.Account{ID: "acc-odd", Plan: "enterprise-gold"}

	for i := 0; i < 10; i++ {
		if _, err := q.Admit(ctx, acc); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}
	if _, err := q.Admit(ctx, acc); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("unknown plan should get the free allowance, got %v", err)
	}
}

func TestQuotaAdmit_WindowElapsedResetsCounter(t *testing.T) {
	db := newTestDB(t)
	q := NewQuotaService(db)
	ctx := context.Background()
	acc := freeAccount("acc-reset")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.Now = func() time.Time { return base }

	for i := 0; i < 10; i++ {
		if _, err := q.Admit(ctx, acc); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}
	if _, err := q.Admit(ctx, acc); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	// One full window later the counter starts over.
	q.Now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }
	d, err := q.Admit(ctx, acc)
	if err != nil || !d.Allowed {
		t.Fatalf("post-window admit: %v %+v", err, d)
	}
	if d.Remaining != 9 {
		t.Fatalf("post-window remaining = %d, want 9", d.Remaining)
	}

	state, err := repo.GetQuotaState(ctx, db, acc.ID, q.Now())
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Count != 1 || !state.LastReset.Equal(q.Now()) {
		t.Fatalf("reset not persisted: %+v", state)
	}
}

func TestQuotaAdmit_ResetPersistsEvenOnRejection(t *testing.T) {
	db := newTestDB(t)
	q := NewQuotaService(db)
	ctx := context.Background()
	acc := freeAccount("acc-rej")

	// Zero-point policy: every request is rejected, but the lazy reset must
	// still be observed and written.
	q.Policies = map[string]PlanPolicy{
		domain.PlanFree: {Points: 0, Window: time.Hour},
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stale := &domain.QuotaState{AccountID: acc.ID, Count: 7, LastReset: base.Add(-2 * time.Hour)}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed state: %v", err)
	}
	q.Now = func() time.Time { return base }

	if _, err := q.Admit(ctx, acc); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected rejection, got %v", err)
	}

	state, err := repo.GetQuotaState(ctx, db, acc.ID, base)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Count != 0 {
		t.Fatalf("stale counter not zeroed on reject path: %+v", state)
	}
	if !state.LastReset.Equal(base) {
		t.Fatalf("reset anchor not moved: %v", state.LastReset)
	}
}

func TestRetryAfterHint(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("countdown", func(t *testing.T) {
		p := PlanPolicy{Points: 10, Window: time.Hour}
		got := retryAfterHint(p, now.Add(-58*time.Minute-30*time.Second), now)
		if got != "1m 30s" {
			t.Fatalf("hint = %q, want 1m 30s", got)
		}
	})

	t.Run("window already elapsed", func(t *testing.T) {
		p := PlanPolicy{Points: 10, Window: time.Hour}
		if got := retryAfterHint(p, now.Add(-2*time.Hour), now); got != retryAfterElapsed {
			t.Fatalf("hint = %q", got)
		}
	})

	t.Run("unbounded window", func(t *testing.T) {
		p := PlanPolicy{Points: 10}
		if got := retryAfterHint(p, now, now); got != retryAfterFallback {
			t.Fatalf("hint = %q", got)
		}
	})
}
