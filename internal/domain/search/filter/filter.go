// Package filter describes hard pre-filters applied inside the index query.
package filter

import "fmt"

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 16

// Expression is a conjunction of conditions: a record must satisfy all of them.
type Expression struct {
	conditions []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{conditions: conds}, nil
}

// Conditions returns the conditions in declaration order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Condition is either a tag match against one of several values or an
// inclusive numeric range.
type Condition struct {
	key    string
	values []string
	rng    *Range
}

// NewMatch creates a tag condition satisfied by any of values.
func NewMatch(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty match value for key %q", key)
		}
	}
	return Condition{key: key, values: values}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rng: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted tag values.
func (c Condition) Values() []string { return c.values }

// Range returns the numeric range, nil for tag conditions.
func (c Condition) Range() *Range { return c.rng }

// IsMatch reports whether this is a tag condition.
func (c Condition) IsMatch() bool { return len(c.values) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rng != nil }

// Range is an inclusive numeric range. A nil bound is open.
type Range struct {
	min *float64
	max *float64
}

// NewRangeFilter validates and creates a Range. At least one bound is required.
func NewRangeFilter(minV, maxV *float64) (Range, error) {
	if minV == nil && maxV == nil {
		return Range{}, fmt.Errorf("at least one range bound is required")
	}
	if minV != nil && maxV != nil && *minV > *maxV {
		return Range{}, fmt.Errorf("range min %g is greater than max %g", *minV, *maxV)
	}
	return Range{min: minV, max: maxV}, nil
}

// Min returns the lower bound.
func (r Range) Min() *float64 { return r.min }

// Max returns the upper bound.
func (r Range) Max() *float64 { return r.max }
