// Package temporal recognizes relative date expressions in free-form queries
// and decides how a search should be routed around them.
//
// Parsing is deterministic: every calculation is relative to the now value
// supplied by the caller, and the wall clock is never read.
package temporal

import (
	"regexp"
	"sort"
	"time"

	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
)

// DateRange is an inclusive time range. Start is never after End.
type DateRange struct {
	Start time.Time
	End   time.Time
	// Preset is the canonical phrase that produced the range.
	// Parsing Preset again at the same now yields the same range.
	Preset string
}

// Contains reports whether t falls inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Intent describes what a query asks for in temporal terms.
type Intent struct {
	IsTemporalQuery    bool
	RoutingStrategy    strategy.Name
	HasSemanticContent bool
	SemanticTerms      []string
	Confidence         float64
}

// Result is the outcome of Parse.
type Result struct {
	Intent Intent
	// DateRange is nil when the query is not temporal or the range was dropped.
	DateRange  *DateRange
	Confidence float64
	// Rule names the rule that matched. Empty for non-temporal queries.
	Rule string
	// Dropped holds a range that was recognized but discarded because its rule
	// cannot be combined with semantic retrieval.
	Dropped *DateRange
}

type rule struct {
	name          string
	pattern       *regexp.Regexp
	priority      int
	confidence    float64
	hybridCapable bool
	build         func(phrase string, now time.Time) (DateRange, bool)
}

const (
	presetPast   = `yesterday|today|(?:this|last|past)\s+(?:week|month)`
	presetFuture = `tomorrow|next\s+(?:week|month)`
	windowLong   = `(?:last|past)\s+\d+\s+(?:days?|weeks?|months?)`
	windowShort  = `(?:last|past)\s+\d+\s+(?:hours?|minutes?|mins?)`
	windowSingle = `(?:last|past)\s+(?:hour|minute)`
	domainNouns  = `receipts|purchases|expenses|transactions|bills`
)

// Every pattern captures the temporal phrase itself as the "when" group.
var rules = sortRules([]rule{
	{
		name:          "compound_action",
		priority:      10,
		confidence:    0.95,
		hybridCapable: true,
		pattern: regexp.MustCompile(`(?i)\b(?:find|get|show|give)\s+(?:me\s+)?(?:all\s+)?(?:my\s+|the\s+)?(?:` +
			domainNouns + `)\s+(?:from|in|during|for|of)\s+(?P<when>` + presetPast + `|` + windowLong + `)\b`),
		build: resolve,
	},
	{
		name:          "window_days",
		priority:      20,
		confidence:    0.9,
		hybridCapable: true,
		pattern:       regexp.MustCompile(`(?i)\b(?P<when>` + windowLong + `)\b`),
		build:         window,
	},
	{
		name:       "window_subday",
		priority:   30,
		confidence: 0.9,
		pattern:    regexp.MustCompile(`(?i)\b(?P<when>` + windowShort + `)\b`),
		build:      window,
	},
	{
		name:       "window_singular",
		priority:   40,
		confidence: 0.85,
		pattern:    regexp.MustCompile(`(?i)\b(?P<when>` + windowSingle + `)\b`),
		build:      window,
	},
	{
		name:          "preset",
		priority:      50,
		confidence:    0.8,
		hybridCapable: true,
		pattern:       regexp.MustCompile(`(?i)\b(?P<when>` + presetPast + `)\b`),
		build:         preset,
	},
	{
		name:       "preset_future",
		priority:   60,
		confidence: 0.7,
		pattern:    regexp.MustCompile(`(?i)\b(?P<when>` + presetFuture + `)\b`),
		build:      preset,
	},
})

func sortRules(rs []rule) []rule {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].priority < rs[j].priority })
	return rs
}

// Parse extracts a temporal intent from text relative to now.
// The first rule whose pattern matches and whose phrase resolves wins.
func Parse(text string, now time.Time) Result {
	for _, r := range rules {
		loc := r.pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		wi := r.pattern.SubexpIndex("when")
		start, end := loc[2*wi], loc[2*wi+1]
		dr, ok := r.build(text[start:end], now)
		if !ok {
			continue
		}
		return route(r, dr, Terms(text[:start]+" "+text[end:]))
	}

	terms := Terms(text)
	return Result{
		Intent: Intent{
			RoutingStrategy:    strategy.SemanticOnly,
			HasSemanticContent: len(terms) > 0,
			SemanticTerms:      terms,
		},
	}
}

func route(r rule, dr DateRange, terms []string) Result {
	res := Result{
		Intent: Intent{
			IsTemporalQuery:    true,
			HasSemanticContent: len(terms) > 0,
			SemanticTerms:      terms,
			Confidence:         r.confidence,
		},
		Confidence: r.confidence,
		Rule:       r.name,
	}
	switch {
	case len(terms) == 0:
		res.Intent.RoutingStrategy = strategy.DateFilterOnly
		res.DateRange = &dr
	case r.hybridCapable:
		res.Intent.RoutingStrategy = strategy.HybridTemporalSemantic
		res.DateRange = &dr
	default:
		res.Intent.RoutingStrategy = strategy.SemanticOnly
		res.Dropped = &dr
	}
	return res
}
