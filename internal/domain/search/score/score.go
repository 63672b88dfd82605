// Package score blends per-channel relevance into a single ranking.
package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/recall/internal/domain/source"
)

const weightTolerance = 1e-6

// Weights are the per-channel blend factors. They sum to 1.
type Weights struct {
	Semantic float64
	Keyword  float64
	Trigram  float64
}

// Validate checks that every weight is in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"semantic": w.Semantic, "keyword": w.Keyword, "trigram": w.Trigram} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%s weight %v out of range [0,1]", name, v)
		}
	}
	if sum := w.Semantic + w.Keyword + w.Trigram; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return nil
}

// Combine returns the weighted sum of the channel scores.
func (w Weights) Combine(vector, keyword, trigram float64) float64 {
	return w.Semantic*vector + w.Keyword*keyword + w.Trigram*trigram
}

// Channels selects which relevance channels take part in retrieval.
type Channels struct {
	Vector  bool
	Keyword bool
	Trigram bool
}

// Any reports whether at least one channel is enabled.
func (c Channels) Any() bool { return c.Vector || c.Keyword || c.Trigram }

// Floors are the per-channel minimum scores. A candidate is kept when it
// clears the floor of any enabled channel.
type Floors struct {
	Vector  float64
	Keyword float64
	Trigram float64
}

// Validate checks that floors are in [0,1].
func (f Floors) Validate() error {
	for name, v := range map[string]float64{"vector": f.Vector, "keyword": f.Keyword, "trigram": f.Trigram} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%s floor %v out of range [0,1]", name, v)
		}
	}
	return nil
}

// Admits reports whether c clears at least one floor among enabled channels.
func (f Floors) Admits(c *Candidate, ch Channels) bool {
	return (ch.Vector && c.VectorScore > 0 && c.VectorScore >= f.Vector) ||
		(ch.Keyword && c.KeywordScore > 0 && c.KeywordScore >= f.Keyword) ||
		(ch.Trigram && c.TrigramScore > 0 && c.TrigramScore >= f.Trigram)
}

// Key identifies a record across sources.
type Key struct {
	Source source.Type
	ID     string
}

// Candidate is a record with its per-channel and combined scores.
type Candidate struct {
	Record        source.Record
	VectorScore   float64
	KeywordScore  float64
	TrigramScore  float64
	CombinedScore float64
}

// Key returns the dedupe key of the candidate.
func (c *Candidate) Key() Key { return Key{Source: c.Record.Type, ID: c.Record.ID} }

// SaturateKeyword maps an unbounded BM25 score into [0,1).
func SaturateKeyword(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) {
		return 0
	}
	if math.IsInf(raw, 1) {
		return 1
	}
	return raw / (raw + 1)
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Mismatched or zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return Clamp(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// FromDistance converts a cosine distance reported by the index into a similarity.
func FromDistance(d float64) float64 {
	return Clamp(1 - d)
}

// Clamp bounds a similarity to [0,1]; NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Sort orders candidates by combined score descending, newest first on ties.
// The sort is stable.
func Sort(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CombinedScore != cs[j].CombinedScore {
			return cs[i].CombinedScore > cs[j].CombinedScore
		}
		return cs[i].Record.CreatedAt.After(cs[j].Record.CreatedAt)
	})
}
