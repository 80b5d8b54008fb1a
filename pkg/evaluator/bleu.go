package evaluator

import (
	"math"
	"strings"
	"unicode"
)

const maxNGramOrder = 4

// tokenize lowercases and splits on any non-alphanumeric rune, so metric
// scores do not hinge on punctuation or casing.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// bleuScore computes a smoothed BLEU between candidate and reference
// tokens: geometric mean of n-gram precisions for n=1..4 with add-one
// smoothing, times a brevity penalty. Smoothing keeps a missing 4-gram
// order from collapsing the whole score to zero on short policy texts.
func bleuScore(candidate, reference []string) float64 {
	if len(candidate) == 0 || len(reference) == 0 {
		return 0.0
	}

	logSum := 0.0
	for n := 1; n <= maxNGramOrder; n++ {
		matched, total := nGramMatches(candidate, reference, n)
		precision := (float64(matched) + 1.0) / (float64(total) + 1.0)
		logSum += math.Log(precision)
	}
	geoMean := math.Exp(logSum / maxNGramOrder)

	brevity := 1.0
	if len(candidate) < len(reference) {
		brevity = math.Exp(1.0 - float64(len(reference))/float64(len(candidate)))
	}
	return clamp(geoMean * brevity)
}

// nGramMatches counts clipped n-gram matches: each candidate n-gram may
// match a reference n-gram at most as often as it appears in the reference.
func nGramMatches(candidate, reference []string, n int) (matched, total int) {
	if len(candidate) < n {
		return 0, 0
	}

	refCounts := make(map[string]int)
	for i := 0; i+n <= len(reference); i++ {
		refCounts[strings.Join(reference[i:i+n], " ")]++
	}

	for i := 0; i+n <= len(candidate); i++ {
		total++
		gram := strings.Join(candidate[i:i+n], " ")
		if refCounts[gram] > 0 {
			refCounts[gram]--
			matched++
		}
	}
	return matched, total
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
