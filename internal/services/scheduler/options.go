package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/notifications"
	"github.com/goatkit/pesflow/internal/shared"
)

type options struct {
	Logger      *zap.Logger
	Records     recordLister
	Cron        *cron.Cron
	Parser      cron.Parser
	Jobs        []*Job
	Location    *time.Location
	ReminderHub notifications.Hub
	Clock       shared.Clock
}

// Option applies configuration to the scheduler service.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:   zap.NewNop(),
		Parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		Location: time.UTC,
		Clock:    shared.SystemClock,
	}
}

// WithLogger injects the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithRecords injects the source of inspection records.
func WithRecords(r recordLister) Option {
	return func(o *options) {
		o.Records = r
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithCronParser allows replacing the cron expression parser.
func WithCronParser(p cron.Parser) Option {
	return func(o *options) {
		o.Parser = p
	}
}

// WithJobs registers explicit job definitions instead of defaults.
func WithJobs(jobs []*Job) Option {
	return func(o *options) {
		o.Jobs = jobs
	}
}

// WithLocation sets the scheduler timezone. Scheduled inspection times are
// read in the same location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.Location = loc
		}
	}
}

// WithReminderHub injects the hub cutoff reminders are dispatched to.
func WithReminderHub(h notifications.Hub) Option {
	return func(o *options) {
		o.ReminderHub = h
	}
}

// WithClock overrides the clock handlers evaluate against.
func WithClock(c shared.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.Clock = c
		}
	}
}
