package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work. It receives a context that is
// cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. Runs of the same job never
// overlap; a tick that fires while that job is still going is skipped.
// Different jobs run independently.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ParseSchedule accepts standard five-field specs and descriptors such as
// "@every 5m" or "@hourly".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

func (s *Scheduler) Add(name, spec string, job Job) error {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.AddSchedule(name, schedule, job)
	return nil
}

func (s *Scheduler) AddSchedule(name string, schedule cron.Schedule, job Job) {
	var running sync.Mutex
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		if !running.TryLock() {
			s.logger.Warn().Str("job", name).Msg("previous run still in progress, skipping")
			return
		}
		defer running.Unlock()

		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job failed")
			return
		}
		s.logger.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job finished")
	}))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight jobs and waits for them to return or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out")
	}
}
