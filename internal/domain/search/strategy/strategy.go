// Package strategy names the retrieval approaches a search can take.
package strategy

// Name identifies a routing strategy or a fallback level.
type Name string

// Routing strategies chosen from the parsed query intent.
const (
	HybridTemporalSemantic Name = "hybrid_temporal_semantic"
	SemanticOnly           Name = "semantic_only"
	DateFilterOnly         Name = "date_filter_only"
)

// Fallback levels tried after the primary strategy.
const (
	VectorOnly    Name = "vector_only"
	LegacyKeyword Name = "legacy_keyword"
	RecentListing Name = "recent_listing"
)

func (n Name) String() string { return string(n) }

// NeedsEmbedding reports whether retrieval under n uses the vector channel.
func (n Name) NeedsEmbedding() bool {
	switch n {
	case HybridTemporalSemantic, SemanticOnly, VectorOnly:
		return true
	default:
		return false
	}
}

// Profile names a weight profile in configuration.
type Profile string

// Weight profiles.
const (
	ProfileHybridTemporal Profile = "hybrid_temporal_semantic"
	ProfileSemantic       Profile = "semantic_only"
	ProfileLookup         Profile = "lookup"
	ProfileVectorOnly     Profile = "vector_only"
	ProfileLegacyKeyword  Profile = "legacy_keyword"
)

// Profiles returns every profile that must be configured.
func Profiles() []Profile {
	return []Profile{ProfileHybridTemporal, ProfileSemantic, ProfileLookup, ProfileVectorOnly, ProfileLegacyKeyword}
}
