// Package amount extracts comparative money ranges ("over 200", "under RM50")
// from free-form queries.
package amount

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Range is an amount bound in a single currency. At least one of Min and Max is set.
type Range struct {
	Min      *float64
	Max      *float64
	Currency string
	// Explicit is true when the query named the currency.
	Explicit bool
	// Phrases are the matched phrases, in query order.
	Phrases []string
}

const (
	currencyPrefix = `\$|€|£|rm|usd|myr|eur|gbp|sgd`
	currencySuffix = `usd|myr|eur|gbp|sgd|rm|dollars?|ringgit|euros?|pounds?`
	number         = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`
)

var (
	comparativeRe = regexp.MustCompile(`(?i)\b(?P<op>over|above|more\s+than|greater\s+than|under|below|less\s+than)\s+` +
		`(?P<pre>` + currencyPrefix + `)?\s*(?P<num>` + number + `)(?:\s*(?P<post>` + currencySuffix + `)\b)?`)
	betweenRe = regexp.MustCompile(`(?i)\bbetween\s+(?P<pre>` + currencyPrefix + `)?\s*(?P<lo>` + number + `)` +
		`\s*(?:and|to|-)\s*(?:` + currencyPrefix + `)?\s*(?P<hi>` + number + `)(?:\s*(?P<post>` + currencySuffix + `)\b)?`)
	// Durations such as "more than 3 days" are not amounts.
	durationRe = regexp.MustCompile(`(?i)^\s*(?:minutes?|mins?|hours?|days?|weeks?|months?|years?)\b`)
)

var currencies = map[string]string{
	"$": "USD", "usd": "USD", "dollar": "USD", "dollars": "USD",
	"rm": "MYR", "myr": "MYR", "ringgit": "MYR",
	"€": "EUR", "eur": "EUR", "euro": "EUR", "euros": "EUR",
	"£": "GBP", "gbp": "GBP", "pound": "GBP", "pounds": "GBP",
	"sgd": "SGD",
}

type match struct {
	start, end int
	min, max   *float64
	currency   string
}

// Parse returns the amount range expressed in text, or nil when there is none.
// Several comparatives narrow the range; contradictory bounds yield nil.
// defaultCurrency applies when the query names no currency.
func Parse(text, defaultCurrency string) *Range {
	ms := matches(text)
	if len(ms) == 0 {
		return nil
	}

	r := &Range{Currency: strings.ToUpper(defaultCurrency)}
	for _, m := range ms {
		if m.min != nil && (r.Min == nil || *m.min > *r.Min) {
			r.Min = m.min
		}
		if m.max != nil && (r.Max == nil || *m.max < *r.Max) {
			r.Max = m.max
		}
		if m.currency != "" && !r.Explicit {
			r.Currency = m.currency
			r.Explicit = true
		}
		r.Phrases = append(r.Phrases, strings.TrimSpace(text[m.start:m.end]))
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return nil
	}
	return r
}

// Strip removes every amount phrase from text.
func Strip(text string) string {
	ms := matches(text)
	if len(ms) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, m := range ms {
		b.WriteString(text[prev:m.start])
		b.WriteByte(' ')
		prev = m.end
	}
	b.WriteString(text[prev:])
	return strings.Join(strings.Fields(b.String()), " ")
}

func matches(text string) []match {
	var out []match

	for _, loc := range betweenRe.FindAllStringSubmatchIndex(text, -1) {
		lo, ok1 := parseNumber(group(text, betweenRe, loc, "lo"))
		hi, ok2 := parseNumber(group(text, betweenRe, loc, "hi"))
		if !ok1 || !ok2 {
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		out = append(out, match{
			start:    loc[0],
			end:      loc[1],
			min:      &lo,
			max:      &hi,
			currency: currencyOf(group(text, betweenRe, loc, "pre"), group(text, betweenRe, loc, "post")),
		})
	}

	for _, loc := range comparativeRe.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(out, loc[0], loc[1]) || durationRe.MatchString(text[loc[1]:]) {
			continue
		}
		v, ok := parseNumber(group(text, comparativeRe, loc, "num"))
		if !ok {
			continue
		}
		m := match{
			start:    loc[0],
			end:      loc[1],
			currency: currencyOf(group(text, comparativeRe, loc, "pre"), group(text, comparativeRe, loc, "post")),
		}
		switch op := strings.Join(strings.Fields(strings.ToLower(group(text, comparativeRe, loc, "op"))), " "); op {
		case "over", "above", "more than", "greater than":
			m.min = &v
		default:
			m.max = &v
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func group(text string, re *regexp.Regexp, loc []int, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || loc[2*i] < 0 {
		return ""
	}
	return text[loc[2*i]:loc[2*i+1]]
}

func overlaps(ms []match, start, end int) bool {
	for _, m := range ms {
		if start < m.end && m.start < end {
			return true
		}
	}
	return false
}

func currencyOf(pre, post string) string {
	if c, ok := currencies[strings.ToLower(pre)]; ok {
		return c
	}
	if c, ok := currencies[strings.ToLower(post)]; ok {
		return c
	}
	return ""
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
