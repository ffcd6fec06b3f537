package cultural

import (
	"strings"
	"unicode"

	"github.com/leon-madara/resona-core/internal/records"
)

type tokenLanguage int

const (
	tokenAmbiguous tokenLanguage = iota
	tokenSwahili
	tokenEnglish
)

// swahiliMarkers is a small dictionary of high-frequency Swahili function
// words and morphological markers (verb prefixes/suffixes) used to bias the
// classifier toward Swahili when a token carries one of them, without
// requiring a full morphological analyzer.
var swahiliMarkers = toSet(
	"na", "ya", "wa", "ni", "si", "tu", "sana", "sawa", "lakini", "kwa",
	"hii", "hiyo", "yangu", "yako", "lake", "zetu", "sijui", "nimechoka",
	"tutaona", "nataka", "kufa", "sababu", "kuishi", "nzuri", "mbaya",
	"furaha", "huzuni", "salama", "vizuri", "shukrani", "imara", "hofu",
)

var englishMarkers = toSet(
	"the", "is", "am", "are", "was", "were", "and", "but", "feel", "feeling",
	"today", "good", "bad", "fine", "okay", "everything", "tired", "because",
)

func classifyToken(token string) tokenLanguage {
	lower := strings.ToLower(token)
	if _, ok := swahiliMarkers[lower]; ok {
		return tokenSwahili
	}
	if _, ok := englishMarkers[lower]; ok {
		return tokenEnglish
	}
	if hasSwahiliMorphology(lower) {
		return tokenSwahili
	}
	return tokenAmbiguous
}

// hasSwahiliMorphology applies a few cheap prefix/suffix heuristics (common
// Swahili verb/noun affixes) for tokens absent from the dictionary.
func hasSwahiliMorphology(token string) bool {
	prefixes := []string{"ni", "u", "a", "tu", "m", "wa", "ki", "vi"}
	suffixes := []string{"cha", "sha", "ana", "ika", "ishi"}
	for _, p := range prefixes {
		if strings.HasPrefix(token, p) && len(token) > len(p)+2 {
			for _, s := range suffixes {
				if strings.HasSuffix(token, s) {
					return true
				}
			}
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// analyzeCodeSwitching tokenizes text, classifies each token, and computes
// the swahili_ratio / switch_count / intensity band per §4.4. Ambiguous
// tokens do not count toward switches (a switch is an adjacent change
// between two classified-but-different languages).
func analyzeCodeSwitching(text string) records.CodeSwitching {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return records.CodeSwitching{Intensity: records.IntensityNone}
	}

	var swahiliCount, classifiedCount, switchCount int
	lastLang := tokenAmbiguous
	haveLast := false

	for _, tok := range tokens {
		lang := classifyToken(tok)
		if lang == tokenAmbiguous {
			continue
		}
		classifiedCount++
		if lang == tokenSwahili {
			swahiliCount++
		}
		if haveLast && lang != lastLang {
			switchCount++
		}
		lastLang = lang
		haveLast = true
	}

	var ratio float64
	if classifiedCount > 0 {
		ratio = float64(swahiliCount) / float64(classifiedCount)
	}

	return records.CodeSwitching{
		Detected:     switchCount > 0,
		Intensity:    intensityBand(switchCount),
		SwitchCount:  switchCount,
		SwahiliRatio: ratio,
	}
}

func intensityBand(switchCount int) records.CodeSwitchingIntensity {
	switch {
	case switchCount >= 7:
		return records.IntensityHigh
	case switchCount >= 4:
		return records.IntensityMedium
	case switchCount >= 2:
		return records.IntensityLow
	default:
		return records.IntensityNone
	}
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
