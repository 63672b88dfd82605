package source

import (
	"fmt"
	"time"
)

// Type identifies a searchable record source. Each type has its own FT index.
type Type string

// Known source types.
const (
	Receipt           Type = "receipt"
	BusinessDirectory Type = "business_directory"
	Category          Type = "category"
	Claim             Type = "claim"
)

var known = []Type{Receipt, BusinessDirectory, Category, Claim}

// Plural names sent by older clients.
var aliases = map[string]Type{
	"receipts":             Receipt,
	"business_directories": BusinessDirectory,
	"categories":           Category,
	"claims":               Claim,
}

// All returns every known source type in default priority order.
func All() []Type {
	out := make([]Type, len(known))
	copy(out, known)
	return out
}

// IsValid reports whether t is a known source type.
func (t Type) IsValid() bool {
	for _, k := range known {
		if t == k {
			return true
		}
	}
	return false
}

// HasAmount reports whether records of this type carry an amount and currency.
func (t Type) HasAmount() bool {
	return t == Receipt || t == Claim
}

func (t Type) String() string { return string(t) }

// ParseTypes converts raw names into source types, dropping duplicates and
// keeping the caller's order. Plural aliases map to their singular type.
func ParseTypes(raw []string) ([]Type, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	seen := make(map[Type]struct{}, len(raw))
	out := make([]Type, 0, len(raw))
	for _, r := range raw {
		t := Type(r)
		if a, ok := aliases[r]; ok {
			t = a
		}
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown source %q", r)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Record is one indexed record as read back from a source index.
// Amount is nil for sources without amounts.
type Record struct {
	ID        string
	Type      Type
	TenantID  string
	Title     string
	Content   string
	Vector    []float32
	Date      time.Time
	CreatedAt time.Time
	Amount    *float64
	Currency  string
	Metadata  Metadata
}

// Hit is a record paired with the raw score of the channel that produced it.
type Hit struct {
	Record Record
	Score  float64
}
