package usage

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
	"github.com/kailas-cloud/recall/internal/domain/usage/budget"
)

// Service handles usage reporting.
type Service struct {
	quota QuotaReader
	br    BudgetReader
	now   func() time.Time
}

// New creates a Service. Either reader can be nil (unlimited mode).
func New(quota QuotaReader, br BudgetReader) *Service {
	return &Service{quota: quota, br: br, now: time.Now}
}

// Report builds the month-to-date report for tenantID. Months are UTC.
func (s *Service) Report(ctx context.Context, tenantID string) (domusage.Report, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var searches domusage.Searches
	if s.quota != nil {
		used, err := s.quota.Used(ctx, tenantID)
		if err != nil {
			return domusage.Report{}, fmt.Errorf("read search quota: %w", err)
		}
		searches = domusage.Searches{Used: used, Limit: s.quota.Limit(tenantID)}
	}

	b := budget.New(0, 0, -1, monthEnd.UnixMilli())
	if s.br != nil {
		b = budget.New(s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly(), monthEnd.UnixMilli())
	}

	return domusage.NewReport(tenantID, monthStart.UnixMilli(), monthEnd.UnixMilli(), searches, b), nil
}
