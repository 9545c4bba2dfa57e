package search

import (
	"regexp"
	"strings"
)

// Fixed token patterns for cross-provider agreement. Numbers, prices,
// percentages, clock times and dates are the facts two engines are most
// likely to repeat verbatim when they agree.
var numericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\d+(?:\.\d+)?(?:/\w+)?`),
	regexp.MustCompile(`\d+(?:\.\d+)?%`),
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s?(?:am|pm)?\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2}(?:,?\s+\d{4})?\b`),
	regexp.MustCompile(`\b\d+(?:\.\d+)?\b`),
}

// keyFactVerbs filters sentences down to ones stating a fact.
var keyFactVerbs = regexp.MustCompile(`(?i)\b(?:is|are|was|were|costs?|opens?|closes?|starts?|launched)\b`)

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// extractNumericTokens pulls every numeric-pattern token from a snippet bag,
// lowercased for exact-match comparison.
func extractNumericTokens(snippets []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, snippet := range snippets {
		for _, pattern := range numericPatterns {
			for _, match := range pattern.FindAllString(snippet, -1) {
				tokens[strings.ToLower(strings.TrimSpace(match))] = true
			}
		}
	}
	return tokens
}

// keyFactSentences splits a snippet bag into trimmed sentences of 10..150
// characters that contain a key-fact verb.
func keyFactSentences(snippets []string) []string {
	var sentences []string
	for _, snippet := range snippets {
		for _, raw := range sentenceSplit.Split(snippet, -1) {
			s := strings.TrimSpace(raw)
			if len(s) < 10 || len(s) > 150 {
				continue
			}
			if keyFactVerbs.MatchString(s) {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

// wordSet returns the lowercased >3-char words of a string.
func wordSet(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

// similarSentences reports whether two word sets overlap by at least 60% of
// the smaller set.
func similarSentences(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	return float64(shared) >= 0.6*float64(smaller)
}

// jaccard computes |a∩b| / |a∪b| over word sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// snippetsOf collects the non-empty snippets of a result list, in rank order.
func snippetsOf(results []Result) []string {
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Snippet != "" {
			snippets = append(snippets, r.Snippet)
		}
	}
	return snippets
}

// matchConsensus computes agreement between a primary and a secondary result
// set. Checks run in fixed order and the first hit wins: shared numeric
// tokens (high), similar key-fact sentences (high), first-snippet Jaccard
// overlap >= 0.5 (medium), otherwise low with no consensus text.
func matchConsensus(primary, secondary []Result) (text string, confidence string) {
	primarySnippets := snippetsOf(primary)
	secondarySnippets := snippetsOf(secondary)
	if len(primarySnippets) == 0 || len(secondarySnippets) == 0 {
		return "", ConfidenceLow
	}

	// Shared numeric/price/percent/time/date tokens.
	secondaryTokens := extractNumericTokens(secondarySnippets)
	for _, snippet := range primarySnippets {
		for token := range extractNumericTokens([]string{snippet}) {
			if secondaryTokens[token] {
				return snippet, ConfidenceHigh
			}
		}
	}

	// Similar key-fact sentences.
	secondaryFacts := keyFactSentences(secondarySnippets)
	secondarySets := make([]map[string]bool, len(secondaryFacts))
	for i, s := range secondaryFacts {
		secondarySets[i] = wordSet(s)
	}
	for _, fact := range keyFactSentences(primarySnippets) {
		factSet := wordSet(fact)
		for _, other := range secondarySets {
			if similarSentences(factSet, other) {
				return fact, ConfidenceHigh
			}
		}
	}

	// Top-snippet word overlap.
	if jaccard(wordSet(primarySnippets[0]), wordSet(secondarySnippets[0])) >= 0.5 {
		return primarySnippets[0], ConfidenceMedium
	}

	return "", ConfidenceLow
}
