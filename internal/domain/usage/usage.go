// Package usage describes a tenant's consumption for the current month.
package usage

import "github.com/kailas-cloud/recall/internal/domain/usage/budget"

// Searches is the tenant's monthly search count against its quota.
// A zero limit means unlimited.
type Searches struct {
	Used  int64
	Limit int64
}

// Remaining returns searches left, -1 when unlimited.
func (s Searches) Remaining() int64 {
	if s.Limit <= 0 {
		return -1
	}
	return max(0, s.Limit-s.Used)
}

// Report is the month-to-date usage of one tenant.
type Report struct {
	tenantID    string
	periodStart int64
	periodEnd   int64
	searches    Searches
	budget      budget.Budget
}

// NewReport creates a usage report. Period bounds are unix millis.
func NewReport(tenantID string, start, end int64, s Searches, b budget.Budget) Report {
	return Report{
		tenantID:    tenantID,
		periodStart: start,
		periodEnd:   end,
		searches:    s,
		budget:      b,
	}
}

// TenantID returns the tenant the report is for.
func (r *Report) TenantID() string { return r.tenantID }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Searches returns the search quota state.
func (r *Report) Searches() Searches { return r.searches }

// Budget returns the shared embedding budget state.
func (r *Report) Budget() budget.Budget { return r.budget }
