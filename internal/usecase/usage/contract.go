package usage

import "context"

// BudgetReader provides read-only access to the embedding token budget.
type BudgetReader interface {
	MonthlyLimit() int64
	MonthlyUsed() int64
	RemainingMonthly() int64
}

// QuotaReader reads a tenant's monthly search allowance and count.
type QuotaReader interface {
	Limit(tenantID string) int64
	Used(ctx context.Context, tenantID string) (int64, error)
}
