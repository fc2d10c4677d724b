package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// jobTimeout bounds a single maintenance run.
const jobTimeout = 30 * time.Second

// Sweeper drops state that has been idle for longer than idle and reports
// how many entries were removed.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Maintenance is the subset of the admin service the scheduler drives.
type Maintenance interface {
	ExpireSubscriptions(ctx context.Context) (int64, error)
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// Scheduler runs periodic account maintenance on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	admin     Maintenance
	sweepers  []Sweeper
	sweepIdle time.Duration
}

// NewScheduler creates a scheduler that runs maintenance on spec, a cron
// expression or descriptor such as "@every 5m". Sweepers are pruned of
// entries idle for longer than sweepIdle.
func NewScheduler(spec string, admin Maintenance, sweepIdle time.Duration, sweepers ...Sweeper) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{}))),
		spec:      spec,
		admin:     admin,
		sweepers:  sweepers,
		sweepIdle: sweepIdle,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	log.Info().Str("schedule", s.spec).Msg("Starting maintenance scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped maintenance scheduler.")
}

// RunOnce performs every maintenance job immediately.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if n, err := s.admin.ExpireSubscriptions(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to expire subscriptions")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Scheduler: Expired subscriptions")
	}

	if n, err := s.admin.PurgeExpiredResetTokens(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to purge expired reset tokens")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Scheduler: Purged expired reset tokens")
	}

	for _, sw := range s.sweepers {
		if n := sw.Sweep(s.sweepIdle); n > 0 {
			log.Debug().Int("count", n).Msg("Scheduler: Swept idle rate limit buckets")
		}
	}
}

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
