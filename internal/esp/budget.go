package esp

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// StatusSource is anything that can produce a status snapshot.
type StatusSource interface {
	Status(ctx context.Context) (StatusMap, error)
}

// BudgetGuard refuses status calls that would overrun a daily budget.
//
// Tokens refill at budget/24h with a burst of three hours' share. The caller
// sizes the budget to cover the allowance-derived cadence, so only a cadence
// override that polls faster gets TooManyRequests locally.
type BudgetGuard struct {
	next StatusSource
	lim  *rate.Limiter
}

// NewBudgetGuard wraps next with a limit of perDay calls. perDay <= 0
// disables the guard.
func NewBudgetGuard(perDay int, next StatusSource) *BudgetGuard {
	g := &BudgetGuard{next: next}
	if perDay > 0 {
		burst := perDay / 8
		if burst < 1 {
			burst = 1
		}
		g.lim = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(perDay)), burst)
	}
	return g
}

func (g *BudgetGuard) Status(ctx context.Context) (StatusMap, error) {
	if g.lim != nil && !g.lim.Allow() {
		return nil, &Error{Kind: KindTooManyRequests, Operation: "status", Detail: "local daily budget exhausted"}
	}
	return g.next.Status(ctx)
}
