// Package langdetect guesses an article's language when its feed does
// not declare one.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"

	"horse.fit/vantage/internal/language"
)

// minSampleLetters keeps lingua from firing on bare tickers or
// one-word headlines, where its n-gram confidence is noise.
const minSampleLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// ForArticle detects the language of an article from its headline and
// summary, returning a bare ISO 639-1 code. Samples too short to
// classify, and anything lingua cannot place, come back as
// language.Undetermined.
func ForArticle(title, description string) string {
	sample := strings.TrimSpace(strings.TrimSpace(title) + " " + description)
	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minSampleLetters {
		return language.Undetermined
	}

	detected, ok := sharedDetector().DetectLanguageOf(sample)
	if !ok {
		return language.Undetermined
	}
	return language.CodeOrUndetermined(detected.IsoCode639_1().String())
}

func sharedDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		// Every model stays resident; outlets publish in whatever
		// language they please and feeds mix freely.
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
