package sentiment

import (
	"strings"

	"github.com/leon-madara/resona-core/internal/records"
)

// Model classifies normalized text into a sentiment label with a
// confidence (the model's top-class probability). Analyzer maps the label
// to a fixed valence anchor itself; Model never returns a valence directly.
type Model interface {
	Predict(normalizedText string) (label records.SentimentLabel, confidence float64)
}

// LexiconModel is a word-scoring default implementation covering English
// and Swahili, used when no external pretrained model is wired in. Real
// deployments can swap in a gRPC/HTTP-backed Model without touching
// Analyzer.
type LexiconModel struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexiconModel builds the default lexicon model.
func NewLexiconModel() *LexiconModel {
	return &LexiconModel{
		positive: toSet(
			"good", "great", "happy", "fine", "okay", "ok", "well", "better",
			"calm", "relieved", "hopeful", "grateful", "proud", "love", "nzuri",
			"furaha", "salama", "shukrani", "nafurahi", "vizuri", "imara",
		),
		negative: toSet(
			"bad", "sad", "angry", "upset", "worried", "anxious", "tired",
			"exhausted", "hopeless", "scared", "afraid", "hurt", "alone",
			"lonely", "hate", "cry", "crying", "mbaya", "huzuni", "hofu",
			"uchovu", "nimechoka", "shida", "taabu", "kufa",
		),
	}
}

func toSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Predict scores normalizedText by counting lexicon hits. Confidence grows
// with the margin between the winning and losing counts relative to total
// hits, capped at 0.95 so the lexicon model never claims full certainty.
func (m *LexiconModel) Predict(normalizedText string) (records.SentimentLabel, float64) {
	words := strings.Fields(normalizedText)
	if len(words) == 0 {
		return records.SentimentNeutral, 0
	}

	var pos, neg int
	for _, w := range words {
		if _, ok := m.positive[w]; ok {
			pos++
		}
		if _, ok := m.negative[w]; ok {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return records.SentimentNeutral, 0.5
	}

	margin := float64(pos-neg) / float64(total)
	confidence := 0.5 + 0.45*absFloat(margin)

	switch {
	case margin > 0.05:
		return records.SentimentPositive, confidence
	case margin < -0.05:
		return records.SentimentNegative, confidence
	default:
		return records.SentimentNeutral, confidence
	}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
