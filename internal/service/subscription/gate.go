package subscription

import (
	"math"
	"time"

	"github.com/jwalitptl/agenda-api/internal/model"
)

// CanUseAgenda is the access gate: the grant is active and not yet expired.
func CanUseAgenda(rec model.SubscriptionRecord, now time.Time) bool {
	return rec.Status == model.SubscriptionStatusActive &&
		rec.ExpiresAt != nil &&
		rec.ExpiresAt.After(now)
}

// DaysRemaining rounds the time left up to whole days, never below zero.
func DaysRemaining(rec model.SubscriptionRecord, now time.Time) int {
	if rec.ExpiresAt == nil {
		return 0
	}
	left := rec.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// View derives the access view of rec at now. An active record past its
// expiry is reported as expired.
func View(rec model.SubscriptionRecord, now time.Time) model.SubscriptionStatusResponse {
	status := rec.Status
	if status == model.SubscriptionStatusActive && !CanUseAgenda(rec, now) {
		status = model.SubscriptionStatusExpired
	}
	return model.SubscriptionStatusResponse{
		Status:        status,
		ExpiresAt:     rec.ExpiresAt,
		DaysRemaining: DaysRemaining(rec, now),
		CanUseAgenda:  CanUseAgenda(rec, now),
	}
}
