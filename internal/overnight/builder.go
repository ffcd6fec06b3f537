// Package overnight implements OvernightBuilder: the once-per-window
// per-user pipeline that turns accumulated signals into an encrypted,
// versioned UIConfig.
package overnight

import (
	"context"
	"fmt"
	"time"

	"github.com/leon-madara/resona-core/internal/baseline"
	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// KeyMaterialProvider resolves the passphrase/key material a user's
// UIConfig should be encrypted under (§6: "opaque string or 32-byte key").
type KeyMaterialProvider interface {
	KeyMaterial(ctx context.Context, userID string) (string, error)
}

// Builder is OvernightBuilder.
type Builder struct {
	cfg      config.OvernightConfig
	store    records.Store
	uiconfig records.UIConfigStore
	tracker  *baseline.Tracker
	keys     KeyMaterialProvider
	logger   *observability.Logger
	metrics  *observability.MetricsProvider
}

// NewBuilder constructs a Builder.
func NewBuilder(cfg config.OvernightConfig, store records.Store, uiconfig records.UIConfigStore, tracker *baseline.Tracker, keys KeyMaterialProvider, logger *observability.Logger, metrics *observability.MetricsProvider) *Builder {
	return &Builder{cfg: cfg, store: store, uiconfig: uiconfig, tracker: tracker, keys: keys, logger: logger, metrics: metrics}
}

// buildForUser implements §4.5's full stage pipeline for one user and
// publishes the resulting UIConfig. It is idempotent: re-running it for the
// same user with the same inputs inside the same window produces the same
// plaintext bytes, aside from IV and generated_at (verified via
// canonicalize in tests).
func (b *Builder) buildForUser(ctx context.Context, userID string, now time.Time) (records.UIConfig, error) {
	start := time.Now()

	sig, err := collectSignals(ctx, userID, now, b.cfg.LookbackDays, b.store, b.tracker)
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("collect signals: %w", err)
	}

	level := riskLevel(sig)
	trajectory := classifyTrajectory(sig)
	theme := selectTheme(sig)
	states := computeComponentStates(sig)
	layout, mobile := buildLayout(states, level, sig, trajectory)

	visibleStates := make(map[string]records.ComponentState, len(states))
	for name, s := range states {
		if s.Visible {
			visibleStates[name] = withPriority(s, level, sig, trajectory)
		}
	}
	pruneHiddenFromLayout(&layout, visibleStates)
	mobile = pruneHiddenNames(mobile, visibleStates)

	previousCfg, previousFound, err := b.uiconfig.GetUIConfig(ctx, userID)
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("load previous UIConfig: %w", err)
	}

	var previousPlaintext *records.UIConfigPlaintext
	var previousVersion int64
	if previousFound {
		previousVersion = previousCfg.Version
		if plain, ok := b.decodeIfDecryptable(ctx, userID, previousCfg); ok {
			previousPlaintext = &plain
		}
	}

	plaintext := records.UIConfigPlaintext{
		Theme:       theme,
		Trajectory:  trajectory,
		RiskLevel:   level,
		Components:  visibleStates,
		Layout:      layout,
		MobileOrder: mobile,
	}
	plaintext.Changes = filterSurfacedChanges(detectChanges(previousPlaintext, plaintext))

	canonical, err := canonicalize(plaintext)
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("canonicalize UIConfig: %w", err)
	}

	passphrase, err := b.passphraseFor(ctx, userID)
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("resolve key material: %w", err)
	}
	salt, err := newSalt()
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("generate salt: %w", err)
	}
	encrypted, err := encrypt(canonical, passphrase, salt)
	if err != nil {
		b.recordOutcome(ctx, "failed", start)
		return records.UIConfig{}, fmt.Errorf("encrypt UIConfig: %w", err)
	}

	newConfig := records.UIConfig{
		UserID:          userID,
		Version:         previousVersion + 1,
		GeneratedAt:     now,
		EncryptedConfig: encrypted,
		Salt:            encodeSalt(salt),
	}

	if err := b.uiconfig.UpsertUIConfig(ctx, newConfig, previousVersion); err != nil {
		b.recordOutcome(ctx, "version_conflict", start)
		return records.UIConfig{}, fmt.Errorf("publish UIConfig: %w", err)
	}

	b.recordOutcome(ctx, "succeeded", start)
	return newConfig, nil
}

func (b *Builder) passphraseFor(ctx context.Context, userID string) (string, error) {
	if b.keys == nil {
		return userID, nil
	}
	return b.keys.KeyMaterial(ctx, userID)
}

// decodeIfDecryptable best-effort decrypts a prior UIConfig to support
// change detection; a decode failure (key rotated, corrupt record) simply
// means change detection treats this build as having no prior state.
func (b *Builder) decodeIfDecryptable(ctx context.Context, userID string, cfg records.UIConfig) (records.UIConfigPlaintext, bool) {
	passphrase, err := b.passphraseFor(ctx, userID)
	if err != nil {
		return records.UIConfigPlaintext{}, false
	}
	salt, err := decodeSalt(cfg.Salt)
	if err != nil {
		return records.UIConfigPlaintext{}, false
	}
	plaintextBytes, err := decrypt(cfg.EncryptedConfig, passphrase, salt)
	if err != nil {
		return records.UIConfigPlaintext{}, false
	}
	plain, err := unmarshalPlaintext(plaintextBytes)
	if err != nil {
		return records.UIConfigPlaintext{}, false
	}
	return plain, true
}

func (b *Builder) recordOutcome(ctx context.Context, outcome string, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordOvernightBuild(ctx, outcome, time.Since(start))
	}
}

func withPriority(s records.ComponentState, level records.RiskLevel, sig signalSet, trajectory records.Trajectory) records.ComponentState {
	s.Priority = computePriority(s, level, sig, trajectory)
	return s
}

func pruneHiddenFromLayout(layout *records.LayoutBuckets, visible map[string]records.ComponentState) {
	layout.Hero = pruneHiddenNames(layout.Hero, visible)
	layout.Primary = pruneHiddenNames(layout.Primary, visible)
	layout.Sidebar = pruneHiddenNames(layout.Sidebar, visible)
	layout.Footer = pruneHiddenNames(layout.Footer, visible)
}

func pruneHiddenNames(names []string, visible map[string]records.ComponentState) []string {
	var out []string
	for _, n := range names {
		if _, ok := visible[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// filterSurfacedChanges implements the "severity >= medium surfaced"
// client-notification filter from §4.5 stage 6.
func filterSurfacedChanges(changes []records.UIConfigChange) []records.UIConfigChange {
	var out []records.UIConfigChange
	for _, c := range changes {
		if c.Severity == records.SeverityMedium || c.Severity == records.SeverityHigh || c.Severity == records.SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}
