// Package sentiment implements SentimentAnalyzer: mapping free text to a
// scalar valence and discrete label suitable for dissonance math.
package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// valenceAnchors are the fixed per-label valence values §4.1 mandates.
// Not recalibrated — see DESIGN.md's Open Question decisions.
var valenceAnchors = map[records.SentimentLabel]float64{
	records.SentimentPositive: 0.75,
	records.SentimentNeutral:  0.0,
	records.SentimentNegative: -0.75,
}

// LanguageHint is the caller-declared language for a piece of text.
type LanguageHint string

const (
	HintEnglish LanguageHint = "en"
	HintSwahili LanguageHint = "sw"
	HintAuto    LanguageHint = "auto"
)

// Result is SentimentAnalyzer's contract output.
type Result struct {
	Label      records.SentimentLabel
	Valence    float64
	Confidence float64
	Degraded   bool
}

// SharedCache is an optional second-tier cache behind the process-local LRU,
// shared across every session-processor instance so a cache entry warmed by
// one process is visible to the rest. Keyed the same way as the LRU — by
// text-hash only, never by user identity.
type SharedCache interface {
	Get(ctx context.Context, key string) (records.SentimentScore, bool, error)
	Put(ctx context.Context, key string, score records.SentimentScore) error
}

// Analyzer is SentimentAnalyzer. It is safe for concurrent use; its mutable
// state is the bounded LRU cache (internally synchronized) plus, optionally,
// a shared second-tier cache reached over the network.
type Analyzer struct {
	model   Model
	cache   *lruCache
	shared  SharedCache
	logger  *observability.Logger
	metrics *observability.MetricsProvider
}

// NewAnalyzer constructs an Analyzer. model may be nil, in which case the
// analyzer always operates in degraded mode — this models §4.1's "on model
// unavailability" failure path explicitly rather than via a panic/recover.
// shared may be nil, in which case the analyzer relies solely on its
// in-process LRU.
func NewAnalyzer(cfg config.SentimentConfig, model Model, shared SharedCache, logger *observability.Logger, metrics *observability.MetricsProvider) *Analyzer {
	return &Analyzer{
		model:   model,
		cache:   newLRUCache(cfg.CacheMaxEntries),
		shared:  shared,
		logger:  logger,
		metrics: metrics,
	}
}

// Analyze implements the `analyze(text, language_hint) -> {label, valence,
// confidence}` contract. A cache hit returns the prior result unchanged; a
// cache miss invokes the model and stores the result keyed by text hash
// (§3: "Sentiment cache entries are process-wide, keyed only by text-hash
// — no user identity in keys").
func (a *Analyzer) Analyze(ctx context.Context, text string, hint LanguageHint) Result {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordSentimentDuration(ctx, time.Since(start))
		}
	}()

	normalized := normalize(text)
	key := textHash(normalized)

	if cached, ok := a.cache.get(key); ok {
		a.recordCache(ctx, true)
		return Result{
			Label:      cached.Label,
			Valence:    cached.Valence,
			Confidence: cached.Confidence,
			Degraded:   cached.Degraded,
		}
	}

	if a.shared != nil {
		if cached, ok, err := a.shared.Get(ctx, key); err == nil && ok {
			a.recordCache(ctx, true)
			a.cache.put(key, cached)
			return Result{
				Label:      cached.Label,
				Valence:    cached.Valence,
				Confidence: cached.Confidence,
				Degraded:   cached.Degraded,
			}
		}
	}
	a.recordCache(ctx, false)

	if normalized == "" {
		// Boundary case: empty transcript -> neutral, confidence 0, not degraded.
		result := Result{Label: records.SentimentNeutral, Valence: 0, Confidence: 0}
		a.store(key, result)
		return result
	}

	if a.model == nil {
		if a.logger != nil {
			a.logger.Warn(ctx, "sentiment model unavailable, returning degraded result", nil)
		}
		result := Result{Label: records.SentimentNeutral, Valence: 0, Confidence: 0, Degraded: true}
		a.store(key, result)
		return result
	}

	label, confidence := a.model.Predict(normalized)
	result := Result{
		Label:      label,
		Valence:    valenceAnchors[label],
		Confidence: confidence,
	}
	a.store(key, result)
	return result
}

func (a *Analyzer) store(key string, r Result) {
	score := records.SentimentScore{
		TextHash:   key,
		Label:      r.Label,
		Valence:    r.Valence,
		Confidence: r.Confidence,
		Degraded:   r.Degraded,
		ComputedAt: time.Now(),
	}
	a.cache.put(key, score)
	if a.shared != nil {
		if err := a.shared.Put(context.Background(), key, score); err != nil && a.logger != nil {
			a.logger.Warn(context.Background(), "shared sentiment cache put failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (a *Analyzer) recordCache(ctx context.Context, hit bool) {
	if a.metrics != nil {
		a.metrics.RecordSentimentCache(ctx, hit)
	}
}

// normalize lowercases, strips punctuation, and collapses whitespace so
// the cache key and lexicon lookups are stable across superficial variants
// of the same utterance.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastWasSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		default:
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func textHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
