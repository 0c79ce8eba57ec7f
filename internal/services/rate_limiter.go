package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

// RateLimiter caps report submissions per user per calendar day. The day is
// always taken from the server clock.
type RateLimiter struct {
	quotas repository.QuotaRepository
	clock  clock.Clock
	limit  int
	exempt map[models.Role]bool
}

// NewRateLimiter builds a limiter allowing limit reports per day. A limit of
// zero or less disables the cap; exempt roles are never counted.
func NewRateLimiter(quotas repository.QuotaRepository, clk clock.Clock, limit int, exempt []models.Role) *RateLimiter {
	ex := make(map[models.Role]bool, len(exempt))
	for _, r := range exempt {
		ex[r] = true
	}
	return &RateLimiter{quotas: quotas, clock: clk, limit: limit, exempt: ex}
}

// Reservation is one consumed attempt. It is released if the report it was
// taken for could not be stored.
type Reservation struct {
	UserID   uuid.UUID
	Date     clock.Date
	Attempts int
	counted  bool
}

type QuotaStatus struct {
	Date      clock.Date `json:"date"`
	Attempts  int        `json:"attempts_today"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	Exempt    bool       `json:"exempt"`
}

func (r *RateLimiter) applies(role models.Role) bool {
	return r.limit > 0 && !r.exempt[role]
}

// Reserve atomically resets the user's counter on a new day and consumes one
// attempt. It fails with QUOTA_EXCEEDED once the limit is reached.
func (r *RateLimiter) Reserve(ctx context.Context, actor models.Actor) (*Reservation, error) {
	today := r.clock.Today()
	res := &Reservation{UserID: actor.UserID, Date: today}
	if !r.applies(actor.Role) {
		return res, nil
	}

	attempts, ok, err := r.quotas.ConsumeQuota(ctx, actor.UserID, today.String(), r.limit, r.clock.Now())
	if err != nil {
		return nil, storeError("failed to check daily quota", err)
	}
	if !ok {
		metrics.QuotaRejectedTotal.Inc()
		slog.Info("daily report quota reached", "component", "quota", "user_id", actor.UserID, "date", today, "limit", r.limit)
		return nil, newError(KindQuotaExceeded, "daily limit of %d reports reached; try again tomorrow", r.limit)
	}
	res.Attempts = attempts
	res.counted = true
	return res, nil
}

// Release gives back an attempt taken by Reserve.
func (r *RateLimiter) Release(ctx context.Context, res *Reservation) {
	if res == nil || !res.counted {
		return
	}
	if err := r.quotas.RefundQuota(ctx, res.UserID, res.Date.String(), r.clock.Now()); err != nil {
		slog.Error("failed to refund quota attempt", "component", "quota", "user_id", res.UserID, "error", err)
		return
	}
	res.counted = false
}

// Status reports the caller's usage for today without consuming anything.
func (r *RateLimiter) Status(ctx context.Context, actor models.Actor) (*QuotaStatus, error) {
	today := r.clock.Today()
	status := &QuotaStatus{Date: today, Limit: r.limit, Exempt: !r.applies(actor.Role)}
	if status.Exempt {
		return status, nil
	}

	q, err := r.quotas.GetQuota(ctx, actor.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, storeError("failed to read daily quota", err)
	case q.LastReportDate == today.String():
		status.Attempts = q.AttemptsToday
	}

	status.Remaining = r.limit - status.Attempts
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}
