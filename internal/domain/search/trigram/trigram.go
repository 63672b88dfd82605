// Package trigram implements word-padded trigram similarity in the style of
// PostgreSQL pg_trgm: each lower-cased alphanumeric word is padded with two
// leading blanks and one trailing blank, and similarity is the ratio of shared
// trigrams to the union of both sets.
package trigram

import (
	"strings"
	"unicode"
)

// maxWindowWords bounds the content scanned by WordSimilarity.
const maxWindowWords = 2000

// Set returns the distinct trigrams of s.
func Set(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range words(s) {
		addWord(out, w)
	}
	return out
}

func addWord(dst map[string]struct{}, w string) {
	r := []rune("  " + w + " ")
	for i := 0; i+3 <= len(r); i++ {
		dst[string(r[i:i+3])] = struct{}{}
	}
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b, in [0,1].
func Similarity(a, b string) float64 {
	return jaccard(Set(a), Set(b))
}

// WordSimilarity returns the best Similarity between query and any window of
// consecutive words in text, where the window has as many words as query.
func WordSimilarity(query, text string) float64 {
	qw := words(query)
	tw := words(text)
	if len(qw) == 0 || len(tw) == 0 {
		return 0
	}
	if len(tw) > maxWindowWords {
		tw = tw[:maxWindowWords]
	}
	q := make(map[string]struct{})
	for _, w := range qw {
		addWord(q, w)
	}

	size := len(qw)
	if size > len(tw) {
		size = len(tw)
	}
	best := 0.0
	for i := 0; i+size <= len(tw); i++ {
		win := make(map[string]struct{})
		for _, w := range tw[i : i+size] {
			addWord(win, w)
		}
		if s := jaccard(q, win); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Score is the trigram channel score for a record: the better of the title
// similarity and the best content window.
func Score(query, title, content string) float64 {
	s := Similarity(query, title)
	if s == 1 {
		return s
	}
	if w := WordSimilarity(query, content); w > s {
		s = w
	}
	return s
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
