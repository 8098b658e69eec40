package service

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// nameTokens lowercases s and splits it on whitespace into a word set. Each
// word is cut at the first '*' (card processors append reference codes as
// "AMAZON.COM*1A2B3") and stripped of surrounding punctuation.
func nameTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if i := strings.IndexByte(word, '*'); i >= 0 {
			word = word[:i]
		}
		word = strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if word != "" {
			out[word] = struct{}{}
		}
	}
	return out
}

// NameSimilarity is the Jaccard index of the two names' word sets.
func NameSimilarity(a, b string) float64 {
	ta, tb := nameTokens(a), nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// editRatio is the levenshtein distance between the normalised names over
// the longer name's length; 0 means identical.
func editRatio(a, b string) float64 {
	na, nb := normalizedName(a), normalizedName(b)
	longest := len([]rune(na))
	if n := len([]rune(nb)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return float64(levenshtein.ComputeDistance(na, nb)) / float64(longest)
}

func normalizedName(s string) string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if i := strings.IndexByte(word, '*'); i >= 0 {
			word = word[:i]
		}
		if word != "" {
			words = append(words, word)
		}
	}
	return strings.Join(words, " ")
}
