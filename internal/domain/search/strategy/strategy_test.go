package strategy

import "testing"

func TestName_NeedsEmbedding(t *testing.T) {
	tests := []struct {
		name Name
		want bool
	}{
		{HybridTemporalSemantic, true},
		{SemanticOnly, true},
		{VectorOnly, true},
		{DateFilterOnly, false},
		{LegacyKeyword, false},
		{RecentListing, false},
	}
	for _, tt := range tests {
		if got := tt.name.NeedsEmbedding(); got != tt.want {
			t.Errorf("%s.NeedsEmbedding() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestProfiles_Unique(t *testing.T) {
	seen := map[Profile]bool{}
	for _, p := range Profiles() {
		if seen[p] {
			t.Errorf("duplicate profile %s", p)
		}
		seen[p] = true
	}
	if len(seen) != 5 {
		t.Errorf("got %d profiles, want 5", len(seen))
	}
}
