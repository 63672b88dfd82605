package temporal

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Domain nouns are kept even though they read like filler; their presence is
// what marks a temporal query as carrying semantic content.
var domainNounSet = set(
	"receipts", "receipt", "purchases", "purchase", "expenses", "expense",
	"transactions", "transaction", "bills", "bill",
)

var noise = set(
	// stop words
	"a", "an", "the", "of", "for", "in", "on", "at", "to", "from", "during", "since",
	"by", "with", "and", "or", "my", "me", "i", "we", "our", "us", "all", "any", "some",
	"is", "are", "was", "were", "be", "been", "did", "do", "does", "have", "has", "had",
	"what", "which", "when", "where", "how", "that", "this", "these", "those", "it",
	"please", "ago", "last", "past", "next",
	// action verbs
	"find", "get", "show", "give", "list", "display", "search", "look", "lookup",
	"fetch", "see", "view", "tell",
	// container words
	"everything", "anything", "something", "stuff", "things", "items", "records",
	"entries", "results", "documents", "data",
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Terms tokenizes text and returns the content words, in order and verbatim.
// Noise words are dropped unless they are domain nouns. Typographic apostrophes
// are read as ASCII ones, and single letters left behind by a cut possessive
// ("today's" without "today") are dropped.
func Terms(text string) []string {
	tokens := strings.FieldsFunc(strings.ReplaceAll(text, "’", "'"), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	var out []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, "'-")
		if tok == "" || isLoneLetter(tok) {
			continue
		}
		lower := strings.ToLower(tok)
		if _, ok := domainNounSet[lower]; ok {
			out = append(out, tok)
			continue
		}
		if _, ok := noise[lower]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isLoneLetter(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	return size == len(tok) && unicode.IsLetter(r)
}

// IsDomainNoun reports whether word is one of the record nouns users search by.
func IsDomainNoun(word string) bool {
	_, ok := domainNounSet[strings.ToLower(word)]
	return ok
}
