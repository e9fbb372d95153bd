// Package language reduces the language tags that ride along on feeds
// and detector output to the bare ISO 639-1 codes stored on articles.
package language

import "strings"

// Undetermined is stored on articles whose language could not be
// established, following the ISO 639 convention.
const Undetermined = "und"

// NormalizeCode reduces a language tag to its lowercase primary
// subtag: "en-US" and "en_us" both become "en". Region and script
// subtags are discarded; articles only carry the base code. Returns
// "" when the value is blank or the primary subtag is not two or
// three letters.
func NormalizeCode(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.ReplaceAll(tag, "_", "-")

	primary := tag
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		primary = tag[:dash]
	}
	if len(primary) < 2 || len(primary) > 3 || !isAlphaLower(primary) {
		return ""
	}
	return primary
}

// CodeOrUndetermined is NormalizeCode with the storage fallback
// applied: anything unusable comes back as Undetermined.
func CodeOrUndetermined(raw string) string {
	if code := NormalizeCode(raw); code != "" {
		return code
	}
	return Undetermined
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
