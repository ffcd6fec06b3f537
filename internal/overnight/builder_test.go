package overnight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon-madara/resona-core/internal/baseline"
	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
)

type fixedKeyProvider struct{ passphrase string }

func (f fixedKeyProvider) KeyMaterial(ctx context.Context, userID string) (string, error) {
	return f.passphrase, nil
}

func newTestBuilder() (*Builder, *records.MemoryStore) {
	store := records.NewMemoryStore()
	tracker := baseline.NewTracker(config.BaselineConfig{WindowDays: 30, MinSamples: 15, DecayTau: 30}, store, store, store, nil, nil)
	cfg := config.OvernightConfig{LookbackDays: 30}
	builder := NewBuilder(cfg, store, store, tracker, fixedKeyProvider{passphrase: "test-passphrase"}, nil, nil)
	return builder, store
}

func seedCriticalFindings(t *testing.T, store *records.MemoryStore, userID string, now time.Time, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := store.AppendCulturalAnalysis(ctx, records.CulturalAnalysis{
			SessionID: "crisis-session",
			UserID:    userID,
			Findings:  []records.DeflectionFinding{{Type: "suicidal_ideation", Severity: records.SeverityCritical}},
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func TestBuilder_NoPriorUIConfig_VersionOneNoChanges(t *testing.T) {
	builder, _ := newTestBuilder()
	ctx := context.Background()
	now := time.Now()

	cfg, err := builder.buildForUser(ctx, "u1", now)
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Version)
	assert.NotEmpty(t, cfg.EncryptedConfig)
	assert.NotEmpty(t, cfg.Salt)

	plain := decryptForTest(t, cfg, "test-passphrase")
	assert.Empty(t, plain.Changes)
}

func TestBuilder_S6_CriticalUserGetsCrisisTheme(t *testing.T) {
	builder, store := newTestBuilder()
	ctx := context.Background()
	now := time.Now()

	seedCriticalFindings(t, store, "u2", now, 3)

	cfg, err := builder.buildForUser(ctx, "u2", now)
	require.NoError(t, err)

	plain := decryptForTest(t, cfg, "test-passphrase")

	assert.Equal(t, records.ThemeCrisis, plain.Theme)
	assert.Equal(t, records.RiskCritical, plain.RiskLevel)

	crisisResources, ok := plain.Components[componentCrisisResources]
	require.True(t, ok)
	assert.Equal(t, records.ProminenceModal, crisisResources.Prominence)

	safetyCheck, ok := plain.Components[componentSafetyCheck]
	require.True(t, ok)
	assert.Equal(t, records.UrgencyCritical, safetyCheck.Urgency)

	totalVisible := len(plain.Layout.Hero) + len(plain.Layout.Primary) + len(plain.Layout.Sidebar) + len(plain.Layout.Footer)
	assert.LessOrEqual(t, totalVisible, 3)
	assert.Empty(t, plain.Layout.Sidebar)
	assert.Empty(t, plain.Layout.Footer)
}

func TestBuilder_VersionIncreasesMonotonically(t *testing.T) {
	builder, _ := newTestBuilder()
	ctx := context.Background()
	now := time.Now()

	first, err := builder.buildForUser(ctx, "u3", now)
	require.NoError(t, err)
	second, err := builder.buildForUser(ctx, "u3", now.Add(time.Hour))
	require.NoError(t, err)

	assert.Greater(t, second.Version, first.Version)
}

func TestBuilder_IdempotentPlaintextAsideFromIVAndGeneratedAt(t *testing.T) {
	builder, store := newTestBuilder()
	ctx := context.Background()
	now := time.Now()

	first, err := builder.buildForUser(ctx, "u4", now)
	require.NoError(t, err)
	firstPlain := decryptForTest(t, first, "test-passphrase")

	// Reset stored UIConfig to simulate re-running the same window without
	// advancing any upstream signal, but keep dissonance/cultural history.
	_, found, err := store.GetUIConfig(ctx, "u4")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, store.UpsertUIConfig(ctx, records.UIConfig{UserID: "u4", Version: 0}, first.Version))

	second, err := builder.buildForUser(ctx, "u4", now)
	require.NoError(t, err)
	secondPlain := decryptForTest(t, second, "test-passphrase")

	firstPlain.Changes = nil
	secondPlain.Changes = nil
	firstCanon, err := canonicalize(firstPlain)
	require.NoError(t, err)
	secondCanon, err := canonicalize(secondPlain)
	require.NoError(t, err)
	assert.Equal(t, string(firstCanon), string(secondCanon))
}

func TestCanonicalize_IsIdempotent(t *testing.T) {
	plain := records.UIConfigPlaintext{
		Theme:      records.ThemeStable,
		Trajectory: records.TrajectoryStable,
		RiskLevel:  records.RiskLow,
		Components: map[string]records.ComponentState{
			"voice_recorder": {Name: "voice_recorder", Visible: true, Prominence: records.ProminenceTop},
		},
	}

	once, err := canonicalize(plain)
	require.NoError(t, err)

	var reparsed records.UIConfigPlaintext
	require.NoError(t, jsonUnmarshalHelper(once, &reparsed))
	twice, err := canonicalize(reparsed)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)

	plaintext := []byte(`{"theme":"stable"}`)
	ciphertext, err := encrypt(plaintext, "passphrase", salt)
	require.NoError(t, err)

	decrypted, err := decrypt(ciphertext, "passphrase", salt)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func decryptForTest(t *testing.T, cfg records.UIConfig, passphrase string) records.UIConfigPlaintext {
	t.Helper()
	salt, err := decodeSalt(cfg.Salt)
	require.NoError(t, err)
	plaintextBytes, err := decrypt(cfg.EncryptedConfig, passphrase, salt)
	require.NoError(t, err)
	plain, err := unmarshalPlaintext(plaintextBytes)
	require.NoError(t, err)
	return plain
}

func jsonUnmarshalHelper(data []byte, v *records.UIConfigPlaintext) error {
	parsed, err := unmarshalPlaintext(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
