package catalog

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizedTitle is the derived comparison form of a raw title.
// Base is the lossy grouping key: subtitle, sequel marker and known
// sequel tokens stripped, then case-folded with punctuation removed and
// diacritics folded. SequenceHint carries a stripped trailing sequel
// number ("2", "III") so distinct entries in a franchise are not
// collapsed into one group.
type NormalizedTitle struct {
	Base         string
	SequenceHint string
}

// sequelTokens is the closed set of single-word sequel markers stripped
// from the end of a title. Intentionally lossy: "Tron: Legacy" and an
// unrelated film called "Legacy" can normalize to the same base. That is
// accepted source behavior, not a defect to fix with stricter heuristics.
var sequelTokens = map[string]struct{}{
	"reloaded":      {},
	"returns":       {},
	"revolutions":   {},
	"resurrections": {},
	"legacy":        {},
	"begins":        {},
	"forever":       {},
	"rises":         {},
}

// romanNumerals maps trailing roman sequel markers to their value.
// Single-letter numerals (I, V, X) are excluded on purpose: "Malcolm X"
// is not the tenth Malcolm film.
var romanNumerals = map[string]int{
	"ii": 2, "iii": 3, "iv": 4, "vi": 6, "vii": 7, "viii": 8,
	"ix": 9, "xi": 11, "xii": 12, "xiii": 13, "xiv": 14, "xv": 15,
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize derives the comparison key for a raw title. The policy,
// applied in order:
//
//  1. strip a trailing colon-delimited subtitle ("Title: Subtitle" -> "Title")
//  2. strip a trailing integer or roman numeral sequel marker, retaining
//     it as SequenceHint
//  3. strip a known single-word sequel token from the end
//  4. case-fold, fold diacritics and remove punctuation
func Normalize(title string) NormalizedTitle {
	s := strings.TrimSpace(title)

	if idx := strings.Index(s, ":"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}

	var hint string
	if fields := strings.Fields(s); len(fields) > 1 {
		last := strings.ToLower(fields[len(fields)-1])
		if n, err := strconv.Atoi(last); err == nil && n > 0 {
			hint = strconv.Itoa(n)
			s = strings.Join(fields[:len(fields)-1], " ")
		} else if n, ok := romanNumerals[last]; ok {
			hint = strconv.Itoa(n)
			s = strings.Join(fields[:len(fields)-1], " ")
		}
	}

	if fields := strings.Fields(s); len(fields) > 1 {
		if _, ok := sequelTokens[strings.ToLower(fields[len(fields)-1])]; ok {
			s = strings.Join(fields[:len(fields)-1], " ")
		}
	}

	return NormalizedTitle{Base: Fold(s), SequenceHint: hint}
}

// Fold lowercases s, folds diacritics to their base letters and reduces
// everything that is not a letter or digit to single-space separators.
func Fold(s string) string {
	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// YearBucket maps a year to its grouping bucket. Items without a year
// share one bucket so a missing year never splits a group on its own.
func YearBucket(year int) string {
	if year <= 0 {
		return "na"
	}
	return strconv.Itoa(year)
}

// GroupKey returns the cross-source grouping key for an item: normalized
// base title plus sequence hint, content type and year bucket. Every
// member of a content group shares this key.
func GroupKey(it Item) string {
	return it.NormalizedTitle + "|" + it.SequenceHint + "|" + string(it.ContentType) + "|" + YearBucket(it.Year)
}
