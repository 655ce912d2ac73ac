// Package scheduler runs the periodic maintenance jobs: stop generation for
// the current year, orphan repair and change-feed pruning.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/config"
	"github.com/zulandar/stopyard/internal/stop"
	"gorm.io/gorm"
)

// Job names.
const (
	JobGenerate = "generate"
	JobRepair   = "repair"
	JobPrune    = "prune"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Next returns the first activation of spec after from.
func Next(spec string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	return sched.Next(from), nil
}

// Opts holds parameters for New.
type Opts struct {
	DB       *gorm.DB
	Schedule config.ScheduleConfig
	Location *time.Location   // year boundary for generation; defaults to UTC
	Logger   *log.Logger      // defaults to log.Default()
	Now      func() time.Time // defaults to time.Now
}

// Scheduler owns a cron instance with the configured jobs.
type Scheduler struct {
	db         *gorm.DB
	loc        *time.Location
	pruneAfter time.Duration
	logger     *log.Logger
	now        func() time.Time
	cron       *cron.Cron
	jobs       map[string]func(context.Context) error
	specs      map[string]string
}

// New registers every job whose spec is non-empty.
func New(opts Opts) (*Scheduler, error) {
	s := &Scheduler{
		db:         opts.DB,
		loc:        opts.Location,
		pruneAfter: opts.Schedule.PruneAfter,
		logger:     opts.Logger,
		now:        opts.Now,
		specs:      make(map[string]string),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.jobs = map[string]func(context.Context) error{
		JobGenerate: s.generate,
		JobRepair:   s.repair,
		JobPrune:    s.prune,
	}
	s.cron = cron.New(cron.WithParser(cronParser), cron.WithLocation(s.loc))

	for name, spec := range map[string]string{
		JobGenerate: opts.Schedule.Generate,
		JobRepair:   opts.Schedule.Repair,
		JobPrune:    opts.Schedule.Prune,
	} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return nil, fmt.Errorf("scheduler: %s spec %q: %w", name, spec, err)
		}
		s.specs[name] = spec
	}
	return s, nil
}

// Specs returns the enabled jobs and their cron specs.
func (s *Scheduler) Specs() map[string]string {
	out := make(map[string]string, len(s.specs))
	for k, v := range s.specs {
		out[k] = v
	}
	return out
}

// RunJob runs one job immediately.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	fn, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", time.Since(start), "err", err)
		return err
	}
	s.logger.Debug("job finished", "job", name, "duration", time.Since(start))
	return nil
}

// Run starts the enabled jobs and blocks until ctx is cancelled. It then
// stops the cron and waits for running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	for name, spec := range s.specs {
		if _, err := s.cron.AddFunc(spec, func() {
			_ = s.RunJob(ctx, name)
		}); err != nil {
			return fmt.Errorf("scheduler: add %s: %w", name, err)
		}
		s.logger.Info("job scheduled", "job", name, "spec", spec)
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) generate(ctx context.Context) error {
	year := s.now().In(s.loc).Year()
	res, err := stop.Generate(ctx, s.db, year, s.loc)
	if err != nil {
		return err
	}
	if res.Created > 0 {
		s.logger.Info("stops generated", "year", year, "created", res.Created, "skipped", res.Skipped)
	}
	return nil
}

func (s *Scheduler) repair(ctx context.Context) error {
	moved, err := stop.Repair(ctx, s.db, s.logger)
	if err != nil {
		return err
	}
	if len(moved) > 0 {
		s.logger.Info("orphan stops reassigned", "count", len(moved))
	}
	return nil
}

func (s *Scheduler) prune(ctx context.Context) error {
	if s.pruneAfter <= 0 {
		return nil
	}
	n, err := changefeed.Prune(ctx, s.db, s.now().Add(-s.pruneAfter))
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("change events pruned", "count", n)
	}
	return nil
}
