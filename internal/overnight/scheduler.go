package overnight

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// UserEnumerator lists the users a scheduled overnight run should build for.
type UserEnumerator interface {
	EligibleUsers(ctx context.Context) ([]string, error)
}

// RunResult summarizes one schedule_run invocation.
type RunResult struct {
	Succeeded    int
	Skipped      int
	Failed       int
	FailedUsers  map[string]error
}

// Scheduler runs Builder.buildForUser across all eligible users under a
// bounded concurrency budget and a run-wide deadline, isolating per-user
// failures so one bad user never blocks the rest of the run.
type Scheduler struct {
	cfg     config.OvernightConfig
	builder *Builder
	users   UserEnumerator
	logger  *observability.Logger
	metrics *observability.MetricsProvider
}

// NewScheduler constructs a Scheduler.
func NewScheduler(cfg config.OvernightConfig, builder *Builder, users UserEnumerator, logger *observability.Logger, metrics *observability.MetricsProvider) *Scheduler {
	return &Scheduler{cfg: cfg, builder: builder, users: users, logger: logger, metrics: metrics}
}

// Run implements schedule_run: enumerate eligible users, process them under
// a bounded worker pool admitted at a per-second rate, and isolate per-user
// failures. A version conflict (another build racing the same user) is
// logged and counted as skipped rather than treated as a builder-wide
// failure, consistent with §4.5's per-user isolation rule; a failure to
// enumerate users at all is builder-wide and returned directly.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (RunResult, error) {
	deadline := s.cfg.RunWideDeadline
	if deadline <= 0 {
		deadline = 2 * time.Hour
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	userIDs, err := s.users.EligibleUsers(runCtx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(runCtx, "overnight run failed to enumerate users", err, nil)
		}
		return RunResult{}, err
	}

	limiterRate := s.cfg.AdmissionRatePerSec
	if limiterRate <= 0 {
		limiterRate = 4.0
	}
	burst := s.cfg.AdmissionBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limiterRate), burst)

	concurrency := s.cfg.MaxConcurrentUsers
	if concurrency <= 0 {
		concurrency = 8
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.SetLimit(concurrency)

	result := RunResult{FailedUsers: make(map[string]error)}
	resultCh := make(chan outcome, len(userIDs))

	for _, userID := range userIDs {
		userID := userID
		group.Go(func() error {
			if s.metrics != nil {
				s.metrics.IncrementOvernightQueue(groupCtx)
				defer s.metrics.DecrementOvernightQueue(groupCtx)
			}
			if err := limiter.Wait(groupCtx); err != nil {
				resultCh <- outcome{userID: userID, err: err}
				return nil
			}
			_, buildErr := s.builder.buildForUser(groupCtx, userID, now)
			resultCh <- outcome{userID: userID, err: buildErr}
			return nil
		})
	}

	// group.Wait only ever returns non-nil from a worker returning an
	// error directly; this scheduler always swallows per-user errors into
	// resultCh instead, so Wait returns nil here. A run-wide deadline or
	// cancellation shows up as per-user errors from limiter.Wait or
	// buildForUser.
	waitErr := group.Wait()
	close(resultCh)

	for o := range resultCh {
		switch {
		case o.err == nil:
			result.Succeeded++
		case errors.Is(o.err, records.ErrIntegrityViolation):
			result.Skipped++
			result.FailedUsers[o.userID] = o.err
			if s.logger != nil {
				s.logger.Warn(groupCtx, "overnight build skipped on version conflict", map[string]interface{}{"user_id": o.userID, "error": o.err.Error()})
			}
		default:
			result.Failed++
			result.FailedUsers[o.userID] = o.err
			if s.logger != nil {
				s.logger.Error(groupCtx, "overnight build failed for user", o.err, map[string]interface{}{"user_id": o.userID})
			}
		}
	}

	if waitErr != nil && s.logger != nil {
		s.logger.Error(runCtx, "overnight run ended early", waitErr, nil)
	}

	return result, nil
}

type outcome struct {
	userID string
	err    error
}
