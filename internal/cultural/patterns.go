package cultural

import (
	"regexp"
	"sort"
	"strings"

	"github.com/leon-madara/resona-core/internal/records"
)

// pattern is one compiled deflection-detection rule. Grounded on the
// teacher's enum-keyed rule-table style (AnomalySeverity -> threshold maps
// in its anomaly detector), generalized here to a linguistic-pattern table:
// each row names a regex form, a type, a severity, a cultural_meaning
// template, a default probe, and the languages the pattern applies to.
type pattern struct {
	name            string
	re              *regexp.Regexp
	findingType     string
	severity        records.FindingSeverity
	culturalMeaning string
	interpretation  string
	defaultProbe    string
	languages       map[records.Language]struct{}
}

// contextWindow is the ±40 char context snippet width §4.4 specifies.
const contextWindow = 40

var deflectionPatterns = buildPatterns()

func buildPatterns() []pattern {
	swOnly := map[records.Language]struct{}{records.LanguageSwahili: {}, records.LanguageMixed: {}}

	return []pattern{
		{
			name:            "minimization",
			re:              regexp.MustCompile(`(?i)sawa\s+tu`),
			findingType:     "minimization",
			severity:        records.SeverityMedium,
			culturalMeaning: "dismissing distress as unremarkable (\"just fine\") to avoid burdening others",
			interpretation:  "likely minimizing real distress rather than reporting genuine wellbeing",
			defaultProbe:    "Can you tell me a bit more about how today actually felt for you?",
			languages:       swOnly,
		},
		{
			name:            "emotional_exhaustion",
			re:              regexp.MustCompile(`(?i)nimechoka`),
			findingType:     "emotional_exhaustion",
			severity:        records.SeverityMedium,
			culturalMeaning: "expressing depletion through tiredness language rather than naming emotional pain directly",
			interpretation:  "fatigue idiom standing in for emotional exhaustion",
			defaultProbe:    "When you say you're tired, is that more in your body, or more in your heart/mind?",
			languages:       swOnly,
		},
		{
			name:            "avoidance",
			re:              regexp.MustCompile(`(?i)sijui`),
			findingType:     "avoidance",
			severity:        records.SeverityLow,
			culturalMeaning: "\"I don't know\" used to deflect a question the speaker finds too difficult to answer directly",
			interpretation:  "possible avoidance of a difficult topic rather than genuine uncertainty",
			defaultProbe:    "That's okay — take your time. Is there a part of it you do have a sense of?",
			languages:       swOnly,
		},
		{
			name:            "fatalism",
			re:              regexp.MustCompile(`(?i)tutaona`),
			findingType:     "fatalism",
			severity:        records.SeverityLow,
			culturalMeaning: "\"we'll see\" expressing resignation or learned helplessness about the outcome",
			interpretation:  "passive acceptance that may mask hopelessness",
			defaultProbe:    "What would it look like if things did get better?",
			languages:       swOnly,
		},
		{
			name:            "suicidal_ideation_nataka_kufa",
			re:              regexp.MustCompile(`(?i)nataka\s+kufa`),
			findingType:     "suicidal_ideation",
			severity:        records.SeverityCritical,
			culturalMeaning: "direct statement of a wish to die",
			interpretation:  "explicit suicidal ideation",
			defaultProbe:    "Thank you for telling me that. Are you thinking about ending your life right now?",
			languages:       swOnly,
		},
		{
			name:            "suicidal_ideation_sina_sababu",
			re:              regexp.MustCompile(`(?i)sina\s+sababu\s+ya\s+kuishi`),
			findingType:     "suicidal_ideation",
			severity:        records.SeverityCritical,
			culturalMeaning: "statement of having no reason to live",
			interpretation:  "explicit suicidal ideation",
			defaultProbe:    "Is there someone with you right now, or somewhere safe you can go?",
			languages:       swOnly,
		},
	}
}

// detectFindings runs every pattern against text and returns matches in
// order of appearance. A pattern whose language set excludes the declared
// language is still checked for mixed/auto text, since code-switched
// speech is exactly where these markers appear embedded in otherwise
// English sentences.
func detectFindings(sessionID, text string, language records.Language) []records.DeflectionFinding {
	var findings []records.DeflectionFinding

	for _, p := range deflectionPatterns {
		if !patternApplies(p, language) {
			continue
		}
		locs := p.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			findings = append(findings, records.DeflectionFinding{
				SessionID:       sessionID,
				Position:        start,
				PatternText:     text[start:end],
				Type:            p.findingType,
				Severity:        p.severity,
				Confidence:      0.9,
				CulturalMeaning: p.culturalMeaning,
				Interpretation:  p.interpretation,
				Context:         snippet(text, start, end),
				ProbeSuggestion: p.defaultProbe,
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Position < findings[j].Position
	})
	return findings
}

func patternApplies(p pattern, language records.Language) bool {
	if language == records.LanguageAuto || language == "" {
		return true
	}
	_, ok := p.languages[language]
	return ok || language == records.LanguageMixed
}

func snippet(text string, start, end int) string {
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}
