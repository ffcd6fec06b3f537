// Command session-processor runs one utterance through the full analytical
// pipeline — SentimentAnalyzer, DissonanceEngine, BaselineTracker and
// CulturalAnalyzer — and prints the resulting records as JSON. It has no
// HTTP surface; the voice/transcript pipeline that calls it per-utterance is
// out of scope for this core.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/leon-madara/resona-core/internal/baseline"
	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/cultural"
	"github.com/leon-madara/resona-core/internal/dissonance"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/internal/sentiment"
	"github.com/leon-madara/resona-core/pkg/database"
	"github.com/leon-madara/resona-core/pkg/observability"
)

var (
	userID      = flag.String("user-id", "", "user identifier (required)")
	sessionID   = flag.String("session-id", "", "session identifier (required)")
	seq         = flag.Int("seq", 0, "utterance sequence number within the session")
	text        = flag.String("text", "", "transcript text (required)")
	language    = flag.String("language", "auto", "declared language: en, sw, mixed, auto")
	voiceLabel  = flag.String("voice-emotion", "", "acoustic emotion label (neutral, happy, sad, angry, fear, surprise, disgust); omit if unavailable")
	voiceConf   = flag.Float64("voice-confidence", 0, "confidence of the voice-emotion label")
	pitchMean   = flag.Float64("pitch-mean", 0, "acoustic pitch mean")
	pitchStd    = flag.Float64("pitch-std", 0, "acoustic pitch stddev")
	energyMean  = flag.Float64("energy-mean", 0, "acoustic energy mean")
	energyStd   = flag.Float64("energy-std", 0, "acoustic energy stddev")
	speechRate  = flag.Float64("speech-rate", 0, "acoustic speech rate")
	pauseFreq   = flag.Float64("pause-freq", 0, "acoustic pause frequency")
	verbose     = flag.Bool("verbose", false, "enable debug logging")
	timeout     = flag.Duration("timeout", 10*time.Second, "pipeline timeout")
)

func main() {
	flag.Parse()

	if *userID == "" || *text == "" {
		fmt.Fprintln(os.Stderr, "user-id and text are required")
		flag.Usage()
		os.Exit(1)
	}
	if *sessionID == "" {
		// A standalone invocation (e.g. ad hoc testing) has no caller-assigned
		// session — mint one so every record this run produces shares a key.
		*sessionID = uuid.NewString()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Observability.LogLevel
	if *verbose {
		logLevel = "debug"
	}
	logger := observability.NewLogger(config.ObservabilityConfig{
		ServiceName: "session-processor",
		LogLevel:    logLevel,
		LogFormat:   cfg.Observability.LogFormat,
	})

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName: "session-processor",
		Enabled:     false,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init metrics: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, fingerprintStore, baselineStore, sharedCache, err := buildStores(ctx, *cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build stores: %v\n", err)
		os.Exit(1)
	}

	sentimentAnalyzer := sentiment.NewAnalyzer(cfg.Sentiment, sentiment.NewLexiconModel(), sharedCache, logger, metrics)
	engine := dissonance.NewEngine(cfg.Dissonance, sentimentAnalyzer, store, logger, metrics)
	tracker := baseline.NewTracker(cfg.Baseline, fingerprintStore, baselineStore, store, logger, metrics)
	kb := cultural.NewKBLoader(cfg.Cultural, logger)
	defer kb.Close()
	culturalAnalyzer := cultural.NewAnalyzer(cfg.Cultural, kb, store, logger, metrics)

	transcript := records.Transcript{
		SessionID:        *sessionID,
		Seq:              *seq,
		UserID:           *userID,
		Text:             *text,
		DetectedLanguage: records.Language(*language),
		CreatedAt:        time.Now(),
	}
	if err := store.AppendTranscript(ctx, transcript); err != nil {
		logger.Warn(ctx, "append transcript failed", map[string]interface{}{"error": err.Error()})
	}

	var voiceEmotion *records.VoiceEmotion
	var voiceCue *cultural.VoiceCue
	if *voiceLabel != "" {
		ve := records.VoiceEmotion{
			SessionID:  *sessionID,
			Seq:        *seq,
			Label:      records.VoiceEmotionLabel(*voiceLabel),
			Confidence: *voiceConf,
			Features: records.AcousticFeatures{
				PitchMean:  *pitchMean,
				PitchStd:   *pitchStd,
				EnergyMean: *energyMean,
				EnergyStd:  *energyStd,
				SpeechRate: *speechRate,
				PauseFrequency: *pauseFreq,
			},
			CreatedAt: time.Now(),
		}
		if err := store.AppendVoiceEmotion(ctx, ve); err != nil {
			logger.Warn(ctx, "append voice emotion failed", map[string]interface{}{"error": err.Error()})
		}
		voiceEmotion = &ve
		voiceCue = &cultural.VoiceCue{Label: ve.Label, Confidence: ve.Confidence}

		if _, err := tracker.Update(ctx, *userID, &ve.Features, &baseline.EmotionSample{Label: ve.Label, Confidence: ve.Confidence}); err != nil {
			logger.Warn(ctx, "baseline update failed", map[string]interface{}{"error": err.Error()})
		}
	}

	dissonanceRecord := engine.Score(ctx, transcript, voiceEmotion)
	culturalAnalysis := culturalAnalyzer.Analyze(ctx, *sessionID, *userID, *text, records.Language(*language), voiceCue)

	output := map[string]interface{}{
		"dissonance": dissonanceRecord,
		"cultural":   culturalAnalysis,
	}
	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}

// buildStores wires the in-memory store when no DATABASE_URL is configured
// (local/dev use), or the Postgres/Redis-backed adapters in a deployed
// environment.
func buildStores(ctx context.Context, cfg config.Config, logger *observability.Logger) (records.Store, records.FingerprintStore, records.BaselineStore, sentiment.SharedCache, error) {
	if cfg.Database.URL == "" {
		mem := records.NewMemoryStore()
		return mem, mem, mem, nil, nil
	}

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	var sharedCache sentiment.SharedCache
	if redisClient, err := database.NewRedisClient(cfg.Redis, logger); err != nil {
		logger.Warn(ctx, "redis unavailable, sentiment analyzer will run without a shared cache tier", map[string]interface{}{"error": err.Error()})
	} else {
		sharedCache = database.NewRedisSentimentCache(redisClient)
	}

	return database.NewPostgresRecordStore(db), database.NewPostgresFingerprintStore(db), database.NewPostgresBaselineStore(db), sharedCache, nil
}
