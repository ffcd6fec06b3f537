package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leon-madara/resona-core/internal/records"
)

// PostgresRecordStore implements records.Store on top of DB. Each per-
// utterance record kind gets its own append-only table; nested structures
// (acoustic features, z-scores, findings) are stored as JSONB since they're
// never queried by field, only read back whole.
type PostgresRecordStore struct {
	db *DB
}

// NewPostgresRecordStore constructs a PostgresRecordStore.
func NewPostgresRecordStore(db *DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) AppendTranscript(ctx context.Context, t records.Transcript) error {
	_, err := s.db.ExecWithMetrics(ctx, `
		INSERT INTO transcripts (session_id, seq, user_id, text, detected_language, detection_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		t.SessionID, t.Seq, t.UserID, t.Text, t.DetectedLanguage, t.DetectionConfidence, t.CreatedAt)
	return err
}

func (s *PostgresRecordStore) AppendVoiceEmotion(ctx context.Context, v records.VoiceEmotion) error {
	features, err := json.Marshal(v.Features)
	if err != nil {
		return fmt.Errorf("marshal acoustic features: %w", err)
	}
	_, err = s.db.ExecWithMetrics(ctx, `
		INSERT INTO voice_emotions (session_id, seq, label, confidence, features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		v.SessionID, v.Seq, v.Label, v.Confidence, features, v.CreatedAt)
	return err
}

func (s *PostgresRecordStore) AppendDissonanceRecord(ctx context.Context, r records.DissonanceRecord) error {
	_, err := s.db.ExecWithMetrics(ctx, `
		INSERT INTO dissonance_records (session_id, seq, user_id, stated_emotion, actual_emotion,
			stated_valence, actual_valence, gap, normalized_gap, level, interpretation, risk_level,
			confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		r.SessionID, r.Seq, r.UserID, r.StatedEmotion, r.ActualEmotion, r.StatedValence,
		r.ActualValence, r.Gap, r.NormalizedGap, r.Level, r.Interpretation, r.RiskLevel,
		r.Confidence, r.CreatedAt)
	return err
}

func (s *PostgresRecordStore) AppendDeviationRecord(ctx context.Context, d records.DeviationRecord) error {
	zscores, err := json.Marshal(d.ZScores)
	if err != nil {
		return fmt.Errorf("marshal z-scores: %w", err)
	}
	_, err = s.db.ExecWithMetrics(ctx, `
		INSERT INTO deviation_records (user_id, timestamp, type, score, severity, detected, z_scores)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.UserID, d.Timestamp, d.Type, d.Score, d.Severity, d.Detected, zscores)
	return err
}

func (s *PostgresRecordStore) AppendCulturalAnalysis(ctx context.Context, c records.CulturalAnalysis) error {
	findings, err := json.Marshal(c.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	codeSwitching, err := json.Marshal(c.CodeSwitching)
	if err != nil {
		return fmt.Errorf("marshal code switching: %w", err)
	}
	probes, err := json.Marshal(c.ProbeSuggestions)
	if err != nil {
		return fmt.Errorf("marshal probe suggestions: %w", err)
	}
	_, err = s.db.ExecWithMetrics(ctx, `
		INSERT INTO cultural_analyses (session_id, user_id, findings, code_switching,
			voice_text_contradictions, overall_risk_level, probe_suggestions, recommended_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.SessionID, c.UserID, findings, codeSwitching, c.VoiceTextContradictions,
		c.OverallRiskLevel, probes, c.RecommendedAction, c.CreatedAt)
	return err
}

func (s *PostgresRecordStore) DissonanceRecordsSince(ctx context.Context, userID string, since time.Time) ([]records.DissonanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, user_id, stated_emotion, actual_emotion, stated_valence,
			actual_valence, gap, normalized_gap, level, interpretation, risk_level, confidence, created_at
		FROM dissonance_records
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("query dissonance records: %w", err)
	}
	defer rows.Close()

	var out []records.DissonanceRecord
	for rows.Next() {
		var r records.DissonanceRecord
		if err := rows.Scan(&r.SessionID, &r.Seq, &r.UserID, &r.StatedEmotion, &r.ActualEmotion,
			&r.StatedValence, &r.ActualValence, &r.Gap, &r.NormalizedGap, &r.Level,
			&r.Interpretation, &r.RiskLevel, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dissonance record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRecordStore) CulturalAnalysesSince(ctx context.Context, userID string, since time.Time) ([]records.CulturalAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, findings, code_switching, voice_text_contradictions,
			overall_risk_level, probe_suggestions, recommended_action, created_at
		FROM cultural_analyses
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("query cultural analyses: %w", err)
	}
	defer rows.Close()

	var out []records.CulturalAnalysis
	for rows.Next() {
		var c records.CulturalAnalysis
		var findings, codeSwitching, probes []byte
		if err := rows.Scan(&c.SessionID, &c.UserID, &findings, &codeSwitching,
			&c.VoiceTextContradictions, &c.OverallRiskLevel, &probes, &c.RecommendedAction,
			&c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cultural analysis: %w", err)
		}
		if err := json.Unmarshal(findings, &c.Findings); err != nil {
			return nil, fmt.Errorf("unmarshal findings: %w", err)
		}
		if err := json.Unmarshal(codeSwitching, &c.CodeSwitching); err != nil {
			return nil, fmt.Errorf("unmarshal code switching: %w", err)
		}
		if err := json.Unmarshal(probes, &c.ProbeSuggestions); err != nil {
			return nil, fmt.Errorf("unmarshal probe suggestions: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostgresFingerprintStore implements records.FingerprintStore.
type PostgresFingerprintStore struct {
	db *DB
}

// NewPostgresFingerprintStore constructs a PostgresFingerprintStore.
func NewPostgresFingerprintStore(db *DB) *PostgresFingerprintStore {
	return &PostgresFingerprintStore{db: db}
}

func (s *PostgresFingerprintStore) GetFingerprint(ctx context.Context, userID string) (records.VoiceFingerprint, bool, error) {
	var fp records.VoiceFingerprint
	var pitchMean, pitchStd, energyMean, energyStd, speechRate, pauseFreq []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, sample_count, pitch_mean, pitch_std, energy_mean, energy_std,
			speech_rate, pause_freq, confidence, calculated_at
		FROM voice_fingerprints WHERE user_id = $1`, userID)
	err := row.Scan(&fp.UserID, &fp.SampleCount, &pitchMean, &pitchStd, &energyMean,
		&energyStd, &speechRate, &pauseFreq, &fp.Confidence, &fp.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.VoiceFingerprint{}, false, nil
	}
	if err != nil {
		return records.VoiceFingerprint{}, false, fmt.Errorf("get fingerprint: %w", err)
	}
	for _, pair := range []struct {
		data []byte
		dst  *records.WelfordStat
	}{
		{pitchMean, &fp.PitchMean}, {pitchStd, &fp.PitchStd},
		{energyMean, &fp.EnergyMean}, {energyStd, &fp.EnergyStd},
		{speechRate, &fp.SpeechRate}, {pauseFreq, &fp.PauseFreq},
	} {
		if err := json.Unmarshal(pair.data, pair.dst); err != nil {
			return records.VoiceFingerprint{}, false, fmt.Errorf("unmarshal welford stat: %w", err)
		}
	}
	return fp, true, nil
}

func (s *PostgresFingerprintStore) PutFingerprint(ctx context.Context, fp records.VoiceFingerprint) error {
	marshal := func(w records.WelfordStat) ([]byte, error) { return json.Marshal(w) }
	pitchMean, err := marshal(fp.PitchMean)
	if err != nil {
		return err
	}
	pitchStd, err := marshal(fp.PitchStd)
	if err != nil {
		return err
	}
	energyMean, err := marshal(fp.EnergyMean)
	if err != nil {
		return err
	}
	energyStd, err := marshal(fp.EnergyStd)
	if err != nil {
		return err
	}
	speechRate, err := marshal(fp.SpeechRate)
	if err != nil {
		return err
	}
	pauseFreq, err := marshal(fp.PauseFreq)
	if err != nil {
		return err
	}
	_, err = s.db.ExecWithMetrics(ctx, `
		INSERT INTO voice_fingerprints (user_id, sample_count, pitch_mean, pitch_std, energy_mean,
			energy_std, speech_rate, pause_freq, confidence, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			sample_count = EXCLUDED.sample_count, pitch_mean = EXCLUDED.pitch_mean,
			pitch_std = EXCLUDED.pitch_std, energy_mean = EXCLUDED.energy_mean,
			energy_std = EXCLUDED.energy_std, speech_rate = EXCLUDED.speech_rate,
			pause_freq = EXCLUDED.pause_freq, confidence = EXCLUDED.confidence,
			calculated_at = EXCLUDED.calculated_at`,
		fp.UserID, fp.SampleCount, pitchMean, pitchStd, energyMean, energyStd,
		speechRate, pauseFreq, fp.Confidence, fp.CalculatedAt)
	return err
}

// PostgresBaselineStore implements records.BaselineStore.
type PostgresBaselineStore struct {
	db *DB
}

// NewPostgresBaselineStore constructs a PostgresBaselineStore.
func NewPostgresBaselineStore(db *DB) *PostgresBaselineStore {
	return &PostgresBaselineStore{db: db}
}

func (s *PostgresBaselineStore) GetEmotionBaseline(ctx context.Context, userID string) (records.EmotionBaseline, bool, error) {
	var eb records.EmotionBaseline
	var distribution, rawWeights []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, distribution, raw_weights, dominant_emotion, average_confidence,
			window_days, sample_count, updated_at
		FROM emotion_baselines WHERE user_id = $1`, userID)
	err := row.Scan(&eb.UserID, &distribution, &rawWeights, &eb.DominantEmotion,
		&eb.AverageConfidence, &eb.WindowDays, &eb.SampleCount, &eb.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.EmotionBaseline{}, false, nil
	}
	if err != nil {
		return records.EmotionBaseline{}, false, fmt.Errorf("get emotion baseline: %w", err)
	}
	if err := json.Unmarshal(distribution, &eb.Distribution); err != nil {
		return records.EmotionBaseline{}, false, fmt.Errorf("unmarshal distribution: %w", err)
	}
	if err := json.Unmarshal(rawWeights, &eb.RawWeights); err != nil {
		return records.EmotionBaseline{}, false, fmt.Errorf("unmarshal raw weights: %w", err)
	}
	return eb, true, nil
}

func (s *PostgresBaselineStore) PutEmotionBaseline(ctx context.Context, eb records.EmotionBaseline) error {
	distribution, err := json.Marshal(eb.Distribution)
	if err != nil {
		return fmt.Errorf("marshal distribution: %w", err)
	}
	rawWeights, err := json.Marshal(eb.RawWeights)
	if err != nil {
		return fmt.Errorf("marshal raw weights: %w", err)
	}
	_, err = s.db.ExecWithMetrics(ctx, `
		INSERT INTO emotion_baselines (user_id, distribution, raw_weights, dominant_emotion,
			average_confidence, window_days, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			distribution = EXCLUDED.distribution, raw_weights = EXCLUDED.raw_weights,
			dominant_emotion = EXCLUDED.dominant_emotion, average_confidence = EXCLUDED.average_confidence,
			window_days = EXCLUDED.window_days, sample_count = EXCLUDED.sample_count,
			updated_at = EXCLUDED.updated_at`,
		eb.UserID, distribution, rawWeights, eb.DominantEmotion, eb.AverageConfidence,
		eb.WindowDays, eb.SampleCount, eb.UpdatedAt)
	return err
}

func (s *PostgresBaselineStore) RecentDeviations(ctx context.Context, userID string, limit int) ([]records.DeviationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, timestamp, type, score, severity, detected, z_scores
		FROM deviation_records
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent deviations: %w", err)
	}
	defer rows.Close()

	var out []records.DeviationRecord
	for rows.Next() {
		var d records.DeviationRecord
		var zscores []byte
		if err := rows.Scan(&d.UserID, &d.Timestamp, &d.Type, &d.Score, &d.Severity,
			&d.Detected, &zscores); err != nil {
			return nil, fmt.Errorf("scan deviation record: %w", err)
		}
		if err := json.Unmarshal(zscores, &d.ZScores); err != nil {
			return nil, fmt.Errorf("unmarshal z-scores: %w", err)
		}
		out = append(out, d)
	}
	// oldest-first, matching MemoryStore's RecentDeviations contract
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// PostgresUIConfigStore implements records.UIConfigStore. Upsert runs the
// read-compare-write as one transaction so the version check is race-free
// against a concurrent overnight build for the same user.
type PostgresUIConfigStore struct {
	db *DB
}

// NewPostgresUIConfigStore constructs a PostgresUIConfigStore.
func NewPostgresUIConfigStore(db *DB) *PostgresUIConfigStore {
	return &PostgresUIConfigStore{db: db}
}

func (s *PostgresUIConfigStore) GetUIConfig(ctx context.Context, userID string) (records.UIConfig, bool, error) {
	var cfg records.UIConfig
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, version, generated_at, encrypted_config, salt
		FROM ui_configs WHERE user_id = $1`, userID)
	err := row.Scan(&cfg.UserID, &cfg.Version, &cfg.GeneratedAt, &cfg.EncryptedConfig, &cfg.Salt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.UIConfig{}, false, nil
	}
	if err != nil {
		return records.UIConfig{}, false, fmt.Errorf("get ui config: %w", err)
	}
	return cfg, true, nil
}

func (s *PostgresUIConfigStore) UpsertUIConfig(ctx context.Context, cfg records.UIConfig, expectedPriorVersion int64) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var currentVersion int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM ui_configs WHERE user_id = $1 FOR UPDATE`, cfg.UserID).Scan(&currentVersion)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if expectedPriorVersion != 0 {
				return fmt.Errorf("ui config version mismatch for user %s: expected %d, have none: %w",
					cfg.UserID, expectedPriorVersion, records.ErrIntegrityViolation)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ui_configs (user_id, version, generated_at, encrypted_config, salt)
				VALUES ($1, $2, $3, $4, $5)`,
				cfg.UserID, cfg.Version, cfg.GeneratedAt, cfg.EncryptedConfig, cfg.Salt)
			return err
		case err != nil:
			return fmt.Errorf("lock ui config row: %w", err)
		}

		if currentVersion != expectedPriorVersion {
			return fmt.Errorf("ui config version mismatch for user %s: expected %d, have %d: %w",
				cfg.UserID, expectedPriorVersion, currentVersion, records.ErrIntegrityViolation)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ui_configs SET version = $2, generated_at = $3, encrypted_config = $4, salt = $5
			WHERE user_id = $1`,
			cfg.UserID, cfg.Version, cfg.GeneratedAt, cfg.EncryptedConfig, cfg.Salt)
		return err
	})
}

// EligibleUsers returns every user with at least one dissonance record,
// cultural analysis or voice fingerprint on file, mirroring
// MemoryStore.EligibleUsers for the
// Postgres-backed deployment.
func (s *PostgresUIConfigStore) EligibleUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM (
			SELECT user_id FROM dissonance_records
			UNION
			SELECT user_id FROM cultural_analyses
			UNION
			SELECT user_id FROM voice_fingerprints
		) AS active_users
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query eligible users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan eligible user: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}
