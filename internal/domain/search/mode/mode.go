package mode

// Aggregation controls how per-source result lists are merged.
type Aggregation string

// Aggregation mode constants.
const (
	// Relevance sorts all sources together by combined score.
	Relevance Aggregation = "relevance"
	// Grouped keeps each source's order and concatenates sources by priority.
	Grouped Aggregation = "grouped"
)

// IsValid checks if the mode is one of the supported values.
func (m Aggregation) IsValid() bool {
	return m == Relevance || m == Grouped
}
