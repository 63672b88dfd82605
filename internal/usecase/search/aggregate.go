package search

import (
	"strings"

	"github.com/kailas-cloud/recall/internal/domain/search/mode"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// aggregate merges per-source candidates into one page.
// Duplicates of a (source, id) keep the higher combined score. Relevance mode
// sorts globally; grouped mode concatenates sources in priority order.
// Offset and limit apply to the merged list. total counts deduplicated rows.
func aggregate(
	perSource map[source.Type][]score.Candidate, m mode.Aggregation,
	priority []source.Type, offset, limit int,
) (page []score.Candidate, total int) {
	at := make(map[score.Key]int)
	var merged []score.Candidate
	for _, t := range priority {
		for _, c := range perSource[t] {
			k := c.Key()
			if i, ok := at[k]; ok {
				if c.CombinedScore > merged[i].CombinedScore {
					merged[i] = c
				}
				continue
			}
			at[k] = len(merged)
			merged = append(merged, c)
		}
	}

	if m == mode.Relevance {
		score.Sort(merged)
	}

	total = len(merged)
	if offset >= total {
		return []score.Candidate{}, total
	}
	end := min(offset+limit, total)
	return merged[offset:end], total
}

// priorityOf orders the requested sources: configured priority first, then
// any requested source the priority does not name, in request order.
func priorityOf(configured, requested []source.Type) []source.Type {
	want := make(map[source.Type]bool, len(requested))
	for _, t := range requested {
		want[t] = true
	}
	out := make([]source.Type, 0, len(requested))
	for _, t := range configured {
		if want[t] {
			out = append(out, t)
			delete(want, t)
		}
	}
	for _, t := range requested {
		if want[t] {
			out = append(out, t)
			delete(want, t)
		}
	}
	return out
}

const snippetRunes = 200

// snippet is the record content cut at a word boundary, or the title when the
// record has no content.
func snippet(rec source.Record) string {
	text := strings.Join(strings.Fields(rec.Content), " ")
	if text == "" {
		return rec.Title
	}
	r := []rune(text)
	if len(r) <= snippetRunes {
		return text
	}
	cut := string(r[:snippetRunes])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
