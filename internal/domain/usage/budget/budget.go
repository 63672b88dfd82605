// Package budget is a point-in-time view of the embedding token budget.
package budget

// Budget is a snapshot of one budget period. A zero limit means unlimited.
type Budget struct {
	limit     int64
	used      int64
	remaining int64
	resetsAt  int64 // unix millis
}

// New creates a Budget snapshot. remaining is -1 for unlimited budgets.
func New(limit, used, remaining, resetsAt int64) Budget {
	return Budget{limit: limit, used: used, remaining: remaining, resetsAt: resetsAt}
}

// TokensLimit returns the token cap.
func (b Budget) TokensLimit() int64 { return b.limit }

// TokensUsed returns tokens consumed in the period.
func (b Budget) TokensUsed() int64 { return b.used }

// TokensRemaining returns tokens left, -1 when unlimited.
func (b Budget) TokensRemaining() int64 { return b.remaining }

// IsExhausted reports whether a limited budget is spent.
func (b Budget) IsExhausted() bool { return b.limit > 0 && b.remaining <= 0 }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
