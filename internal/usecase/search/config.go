package search

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Profile is the blend and the floors used by one retrieval approach.
// A channel takes part when its weight is positive.
type Profile struct {
	Weights score.Weights
	Floors  score.Floors
}

// Channels derives the enabled channels from the weights.
func (p Profile) Channels() score.Channels {
	return score.Channels{
		Vector:  p.Weights.Semantic > 0,
		Keyword: p.Weights.Keyword > 0,
		Trigram: p.Weights.Trigram > 0,
	}
}

// Config holds orchestrator tuning.
type Config struct {
	// Timeout bounds embedding plus retrieval of one search.
	Timeout time.Duration
	// FallbackTimeout bounds the recent listing run after Timeout expires.
	FallbackTimeout time.Duration
	// RecentWindow is how far back the recent listing looks.
	RecentWindow time.Duration
	// Depth is the minimum per-source candidate pool.
	Depth int
	// Priority orders sources in grouped aggregation.
	Priority []source.Type
	Profiles map[strategy.Profile]Profile
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		FallbackTimeout: 2 * time.Second,
		RecentWindow:    30 * 24 * time.Hour,
		Depth:           50,
		Priority:        source.All(),
		Profiles: map[strategy.Profile]Profile{
			strategy.ProfileHybridTemporal: {
				Weights: score.Weights{Semantic: 0.6, Keyword: 0.3, Trigram: 0.1},
				Floors:  score.Floors{Vector: 0.3, Keyword: 0.2, Trigram: 0.3},
			},
			strategy.ProfileSemantic: {
				Weights: score.Weights{Semantic: 0.65, Keyword: 0.25, Trigram: 0.1},
				Floors:  score.Floors{Vector: 0.35, Keyword: 0.3, Trigram: 0.35},
			},
			strategy.ProfileLookup: {
				Weights: score.Weights{Semantic: 0.3, Keyword: 0.45, Trigram: 0.25},
				Floors:  score.Floors{Vector: 0.45, Keyword: 0.2, Trigram: 0.3},
			},
			strategy.ProfileVectorOnly: {
				Weights: score.Weights{Semantic: 1},
				Floors:  score.Floors{Vector: 0.3},
			},
			strategy.ProfileLegacyKeyword: {
				Weights: score.Weights{Keyword: 0.7, Trigram: 0.3},
				Floors:  score.Floors{Keyword: 0.1, Trigram: 0.2},
			},
		},
	}
}

// Validate checks timeouts, the source priority and every profile.
func (c Config) Validate() error {
	if c.Timeout <= 0 || c.FallbackTimeout <= 0 {
		return fmt.Errorf("search timeouts must be positive")
	}
	if c.RecentWindow <= 0 {
		return fmt.Errorf("recent window must be positive")
	}
	for _, t := range c.Priority {
		if !t.IsValid() {
			return fmt.Errorf("unknown source %q in priority", t)
		}
	}
	for _, name := range strategy.Profiles() {
		p, ok := c.Profiles[name]
		if !ok {
			return fmt.Errorf("weight profile %q is not configured", name)
		}
		if err := p.Weights.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		if err := p.Floors.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return nil
}
