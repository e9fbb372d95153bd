package matching

import (
	"strings"
	"unicode"
)

// Common headline words that carry no search signal.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "again": {}, "against": {},
	"all": {}, "also": {}, "amid": {}, "an": {}, "and": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "been": {}, "before": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"down": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "how": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "just": {}, "may": {},
	"more": {}, "most": {}, "new": {}, "no": {}, "not": {}, "now": {},
	"of": {}, "off": {}, "on": {}, "or": {}, "out": {}, "over": {},
	"says": {}, "she": {}, "so": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "they": {},
	"this": {}, "to": {}, "up": {}, "was": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "would": {},
}

func tokenize(text string) []string {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return nil
	}
	parts := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// SalientTerms extracts the search-worthy terms of a headline in rank
// order: multi-word capitalized entity sequences first (joined with a
// space, leading sentence-start words included only when capitalized
// mid-sentence too), then informative lowercase tokens. Stop words and
// the article's own source name and domain tokens never survive, so a
// search can never just find the source's own coverage.
func SalientTerms(title, sourceName, sourceDomain string) []string {
	words := splitWords(title)
	if len(words) == 0 {
		return nil
	}

	selfTokens := make(map[string]struct{})
	for _, token := range tokenize(sourceName) {
		selfTokens[token] = struct{}{}
	}
	for _, token := range tokenize(strings.ReplaceAll(sourceDomain, ".", " ")) {
		selfTokens[token] = struct{}{}
	}

	excluded := func(lower string) bool {
		if _, ok := stopWords[lower]; ok {
			return true
		}
		_, self := selfTokens[lower]
		return self
	}

	var terms []string
	seen := make(map[string]struct{})
	add := func(term string) {
		if term == "" {
			return
		}
		// Case-insensitive: the entity pass already claimed "AMD", the
		// lowercase pass must not spend a second slot on "amd".
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	// Pass 1: capitalized entity sequences. A run of capitalized words
	// is one entity; runs keep their original casing.
	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = nil
		}
	}
	for i, word := range words {
		lower := strings.ToLower(stripEdges(word))
		if lower == "" {
			flush()
			continue
		}
		capitalized := isCapitalized(word)
		// The first word of a headline is capitalized regardless of
		// being an entity; count it only when it extends a run or is
		// all-caps (tickers, acronyms).
		if i == 0 && capitalized && !isAllCaps(word) {
			if !excluded(lower) && len(words) > 1 && isCapitalized(words[1]) {
				run = append(run, stripEdges(word))
			}
			continue
		}
		if capitalized && !excluded(lower) {
			run = append(run, stripEdges(word))
			continue
		}
		flush()
	}
	flush()

	// Pass 2: informative lowercase tokens.
	for _, token := range tokenize(title) {
		if len(token) < minInformativeTokenLen || excluded(token) {
			continue
		}
		add(token)
	}

	return terms
}

// minInformativeTokenLen is the floor below which a token carries no
// signal on its own; "S&P" tokenizes to "s"/"p", which must not count
// against the overlap denominator any more than they would be emitted
// as standalone terms.
const minInformativeTokenLen = 3

// SharedTermRatio is the lexical fallback for candidates that cannot be
// embedded: the fraction of the source's salient terms (tokenized) that
// also appear in the candidate title.
func SharedTermRatio(sourceTerms []string, candidateTitle string) float64 {
	sourceTokens := make(map[string]struct{})
	for _, term := range sourceTerms {
		for _, token := range tokenize(term) {
			if len(token) < minInformativeTokenLen {
				continue
			}
			sourceTokens[token] = struct{}{}
		}
	}
	if len(sourceTokens) == 0 {
		return 0
	}

	candidateTokens := make(map[string]struct{})
	for _, token := range tokenize(candidateTitle) {
		candidateTokens[token] = struct{}{}
	}

	shared := 0
	for token := range sourceTokens {
		if _, ok := candidateTokens[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(sourceTokens))
}

func splitWords(text string) []string {
	return strings.Fields(text)
}

func stripEdges(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isCapitalized(word string) bool {
	stripped := stripEdges(word)
	if stripped == "" {
		return false
	}
	first, _ := firstRune(stripped)
	return unicode.IsUpper(first) || unicode.IsNumber(first)
}

func isAllCaps(word string) bool {
	stripped := stripEdges(word)
	if stripped == "" {
		return false
	}
	hasLetter := false
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}
