// Command overnight-scheduler runs one overnight batch: for every eligible
// user it rebuilds and publishes a fresh UIConfig. It has no HTTP surface —
// intended to run as a nightly cron/systemd-timer job, one process per run.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/leon-madara/resona-core/internal/baseline"
	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/overnight"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/database"
	"github.com/leon-madara/resona-core/pkg/observability"
)

var (
	verbose = flag.Bool("verbose", false, "enable debug logging")
	dryRun  = flag.Bool("dry-run", false, "enumerate eligible users and exit without building")
)

func main() {
	flag.Parse()

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
		ServiceName: "overnight-scheduler",
		LogLevel:    logLevel,
		LogFormat:   cfg.Observability.LogFormat,
	})

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName: "overnight-scheduler",
		Enabled:     false,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init metrics: %v\n", err)
		os.Exit(1)
	}

	store, uiconfigStore, baselineStore, fingerprintStore, users, err := buildStores(*cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build stores: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		userIDs, err := users.EligibleUsers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "enumerate users: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d eligible users\n", len(userIDs))
		for _, id := range userIDs {
			fmt.Println(id)
		}
		return
	}

	tracker := baseline.NewTracker(cfg.Baseline, fingerprintStore, baselineStore, store, logger, metrics)
	builder := overnight.NewBuilder(cfg.Overnight, store, uiconfigStore, tracker, hmacKeyProvider{masterKey: masterKeyFromEnv()}, logger, metrics)
	scheduler := overnight.NewScheduler(cfg.Overnight, builder, users, logger, metrics)

	ctx := context.Background()
	result, err := scheduler.Run(ctx, time.Now())
	if err != nil {
		logger.Error(ctx, "overnight run failed", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "overnight run complete", map[string]interface{}{
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
	if result.Failed > 0 {
		os.Exit(1)
	}
}

// buildStores wires the in-memory store for local/dev use, or the
// Postgres-backed adapters in a deployed environment.
func buildStores(cfg config.Config, logger *observability.Logger) (records.Store, records.UIConfigStore, records.BaselineStore, records.FingerprintStore, overnight.UserEnumerator, error) {
	if cfg.Database.URL == "" {
		mem := records.NewMemoryStore()
		return mem, mem, mem, mem, mem, nil
	}

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	uiconfigStore := database.NewPostgresUIConfigStore(db)
	return database.NewPostgresRecordStore(db), uiconfigStore, database.NewPostgresBaselineStore(db),
		database.NewPostgresFingerprintStore(db), uiconfigStore, nil
}

// hmacKeyProvider derives each user's UIConfig passphrase from a single
// master secret via HMAC-SHA256, so no per-user key ever needs its own
// storage or rotation bookkeeping.
type hmacKeyProvider struct {
	masterKey []byte
}

func (h hmacKeyProvider) KeyMaterial(ctx context.Context, userID string) (string, error) {
	mac := hmac.New(sha256.New, h.masterKey)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func masterKeyFromEnv() []byte {
	key := os.Getenv("RESONA_UICONFIG_MASTER_KEY")
	if key == "" {
		key = "development-only-insecure-master-key"
	}
	return []byte(key)
}
