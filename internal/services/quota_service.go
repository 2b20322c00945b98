// Package services – QuotaService
//
// This file implements the per-plan request quota with time-windowed
// resets. The reset is lazy: elapsed-time observation happens at admission
// time and is persisted immediately, even when the request is ultimately
// rejected: the reset is a side effect of observing time, independent of
// the admit decision.
//
// Counter updates are read-modify-write without cross-request locking, so
// enforcement under concurrency is best-effort, not exact (accepted
// limitation; see DESIGN.md).
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

// retryAfterFallback is surfaced when no numeric retry estimate can be
// computed (unbounded window).
const retryAfterFallback = "Please contact support"

// retryAfterElapsed is surfaced when the window has already elapsed by the
// time the hint is computed.
const retryAfterElapsed = "Try refreshing"

// PlanPolicy is one plan's quota allowance: Points requests per Window.
// Unlimited plans skip the quota check entirely.
type PlanPolicy struct {
	Points    int64
	Window    time.Duration
	Unlimited bool
}

// DefaultPolicies returns the shipped plan table. Unknown plans fall back
// to the free policy at admission time.
func DefaultPolicies() map[string]PlanPolicy {
	return map[string]PlanPolicy{
		domain.PlanFree:    {Points: 10, Window: 24 * time.Hour},
		domain.PlanPro:     {Points: 100, Window: 24 * time.Hour},
		domain.PlanPremium: {Unlimited: true},
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Plan is the plan name the decision was made under.
	Plan string
	// Remaining is the allowance left after this request (0 when rejected
	// or the plan is unlimited).
	Remaining int64
	// RetryAfter is a human-readable wait hint, set only on rejection.
	RetryAfter string
}

// QuotaService decides admit/reject for resolved accounts.
type QuotaService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Policies maps plan names to allowances. Nil falls back to
	// DefaultPolicies().
	Policies map[string]PlanPolicy
	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewQuotaService constructs a QuotaService with the default plan table.
func NewQuotaService(db *gorm.DB) *QuotaService {
	return &QuotaService{DB: db, Policies: DefaultPolicies(), Now: time.Now}
}

// Admit checks and consumes one quota point for the account.
//
// Behavior:
//   - Unlimited plans admit immediately and never touch state.
//   - If the window has elapsed since the last reset, the counter is
//     zeroed and the reset anchor moved to now, persisted immediately.
//   - A counter at or above the allowance rejects with ErrQuotaExceeded;
//     the returned Decision carries the retry hint and plan.
//   - Otherwise the counter is incremented, persisted, and the request
//     admitted.
func (s *QuotaService) Admit(ctx context.Context, account *domain.Account) (*Decision, error) {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "Admit",
		trace.WithAttributes(
			attribute.String("account.id", account.ID),
			attribute.String("account.plan", account.Plan),
		),
	)
	defer span.End()

	policy := s.policyFor(account.Plan)
	if policy.Unlimited {
		return &Decision{Allowed: true, Plan: account.Plan}, nil
	}

	now := s.now()
	state, err := repo.GetQuotaState(ctx, s.DB, account.ID, now)
	if err != nil {
		return nil, err
	}

	// Lazy window reset. Persisted even when the request is about to be
	// rejected: the reset reflects elapsed time, not the admit outcome.
	if policy.Window > 0 && now.Sub(state.LastReset) >= policy.Window {
		state.Count = 0
		state.LastReset = now
		if err := repo.SaveQuotaState(ctx, s.DB, state); err != nil {
			return nil, err
		}
	}

	if state.Count >= policy.Points {
		return &Decision{
			Allowed:    false,
			Plan:       account.Plan,
			RetryAfter: retryAfterHint(policy, state.LastReset, now),
		}, ErrQuotaExceeded
	}

	state.Count++
	if err := repo.SaveQuotaState(ctx, s.DB, state); err != nil {
		return nil, err
	}
	return &Decision{
		Allowed:   true,
		Plan:      account.Plan,
		Remaining: policy.Points - state.Count,
	}, nil
}

// policyFor resolves a plan name, defaulting unknown plans to free.
func (s *QuotaService) policyFor(plan string) PlanPolicy {
	policies := s.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	if p, ok := policies[plan]; ok {
		return p
	}
	return policies[domain.PlanFree]
}

// retryAfterHint formats the time until the current window resets. Only
// finite windows produce a numeric estimate; otherwise a human fallback is
// returned.
func retryAfterHint(policy PlanPolicy, lastReset, now time.Time) string {
	if policy.Window <= 0 {
		return retryAfterFallback
	}
	left := lastReset.Add(policy.Window).Sub(now)
	if left <= 0 {
		return retryAfterElapsed
	}
	mins := int(left / time.Minute)
	secs := int(left%time.Minute) / int(time.Second)
	return fmt.Sprintf("%dm %ds", mins, secs)
}

func (s *QuotaService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
