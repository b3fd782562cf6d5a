// Package scheduler runs the periodic inspection jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/notifications"
	"github.com/goatkit/pesflow/internal/shared"
)

// ErrUnknownJob is returned by RunJob for a slug that is not registered.
var ErrUnknownJob = errors.New("unknown scheduler job")

// Job is one scheduled unit of work.
type Job struct {
	Name     string
	Slug     string
	Handler  string
	Schedule string
	Timeout  time.Duration
	Config   map[string]any
}

// HandlerFunc executes a job.
type HandlerFunc func(ctx context.Context, job *Job) error

type recordLister interface {
	List(ctx context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error)
}

// Service owns the cron engine and the job handlers.
type Service struct {
	cron        *cron.Cron
	parser      cron.Parser
	logger      *zap.Logger
	records     recordLister
	reminderHub notifications.Hub
	location    *time.Location
	clock       shared.Clock
	metrics     *jobMetrics

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	jobs     []*Job
	entries  map[string]cron.EntryID
	started  bool
}

// NewService builds a scheduler. Jobs default to DefaultJobs.
func NewService(opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Cron == nil {
		o.Cron = cron.New(cron.WithLocation(o.Location), cron.WithParser(o.Parser))
	}
	if o.Jobs == nil {
		o.Jobs = DefaultJobs()
	}

	s := &Service{
		cron:        o.Cron,
		parser:      o.Parser,
		logger:      o.Logger,
		records:     o.Records,
		reminderHub: o.ReminderHub,
		location:    o.Location,
		clock:       o.Clock,
		metrics:     globalJobMetrics(),
		handlers:    make(map[string]HandlerFunc),
		jobs:        o.Jobs,
		entries:     make(map[string]cron.EntryID),
	}
	s.registerBuiltinHandlers()
	return s
}

// RegisterHandler binds a handler name to fn, replacing any previous one.
func (s *Service) RegisterHandler(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// Jobs returns the configured jobs.
func (s *Service) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// Start schedules every job and starts the cron engine. Jobs run with a
// context derived from ctx.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	for _, job := range s.jobs {
		if job == nil {
			continue
		}
		if _, ok := s.handlers[job.Handler]; !ok {
			return fmt.Errorf("job %s: no handler %q", job.Slug, job.Handler)
		}
		schedule, err := s.parser.Parse(job.Schedule)
		if err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", job.Slug, job.Schedule, err)
		}
		j := job
		id := s.cron.Schedule(schedule, cron.FuncJob(func() {
			if err := s.execute(ctx, j); err != nil {
				s.logger.Warn("scheduler job failed", zap.String("job", j.Slug), zap.Error(err))
			}
		}))
		s.entries[job.Slug] = id
		s.logger.Info("scheduler job registered",
			zap.String("job", job.Slug),
			zap.String("schedule", job.Schedule),
			zap.Time("next", s.cron.Entry(id).Next))
	}

	s.cron.Start()
	s.started = true
	return nil
}

// Stop halts the engine and waits for running jobs or ctx, whichever ends first.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunJob executes the job with slug immediately.
func (s *Service) RunJob(ctx context.Context, slug string) error {
	for _, job := range s.Jobs() {
		if job != nil && job.Slug == slug {
			return s.execute(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, slug)
}

func (s *Service) execute(ctx context.Context, job *Job) (err error) {
	s.mu.Lock()
	handler, ok := s.handlers[job.Handler]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: no handler %q", job.Slug, job.Handler)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	done := s.metrics.recordRun(job.Slug)
	defer func() { done(err) }()

	start := time.Now()
	err = handler(ctx, job)
	s.logger.Debug("scheduler job finished",
		zap.String("job", job.Slug),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))
	return err
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.location)
}
