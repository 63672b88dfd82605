// Package scope describes the hard boundaries of one per-source retrieval:
// the tenant, plus optional date, amount and category filters.
package scope

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Scope bounds a retrieval against a single source index.
type Scope struct {
	TenantID   string
	Source     source.Type
	From       *time.Time
	To         *time.Time
	MinAmount  *float64
	MaxAmount  *float64
	Currency   string
	Categories []string
}

// HasAmount reports whether an amount bound is set.
func (s Scope) HasAmount() bool { return s.MinAmount != nil || s.MaxAmount != nil }

// Validate checks that the scope names a tenant and a known source.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.TenantID) == "" {
		return domain.ErrTenantRequired
	}
	if !s.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", domain.ErrValidation, s.Source)
	}
	return nil
}

// Expression builds the index pre-filter. The tenant condition is always first.
func (s Scope) Expression() (filter.Expression, error) {
	if err := s.Validate(); err != nil {
		return filter.Expression{}, err
	}

	tenant, err := filter.NewMatch(source.FieldTenant, s.TenantID)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("tenant condition: %w", err)
	}
	conds := []filter.Condition{tenant}

	if s.From != nil || s.To != nil {
		c, err := rangeCondition(source.FieldDate, unix(s.From), unix(s.To))
		if err != nil {
			return filter.Expression{}, fmt.Errorf("date condition: %w", err)
		}
		conds = append(conds, c)
	}

	if s.HasAmount() && s.Source.HasAmount() {
		c, err := rangeCondition(source.FieldAmount, s.MinAmount, s.MaxAmount)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("amount condition: %w", err)
		}
		conds = append(conds, c)
		if s.Currency != "" {
			cur, err := filter.NewMatch(source.FieldCurrency, strings.ToUpper(s.Currency))
			if err != nil {
				return filter.Expression{}, fmt.Errorf("currency condition: %w", err)
			}
			conds = append(conds, cur)
		}
	}

	if len(s.Categories) > 0 && s.Source != source.Category {
		c, err := filter.NewMatch(source.FieldCategory, s.Categories...)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("category condition: %w", err)
		}
		conds = append(conds, c)
	}

	expr, err := filter.NewExpression(conds...)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return expr, nil
}

func rangeCondition(key string, minV, maxV *float64) (filter.Condition, error) {
	r, err := filter.NewRangeFilter(minV, maxV)
	if err != nil {
		return filter.Condition{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return filter.NewRange(key, r)
}

func unix(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	v := float64(t.Unix())
	return &v
}
