package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/metrics"
)

// Job is a periodic refresh task
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Poller drives the periodic REST refreshes: the alert summary poll and the
// slower session/KPI refresh. Stopping the poller guarantees no further
// fetches, which is what component unmount relies on.
type Poller struct {
	cron      *cron.Cron
	logger    *zap.Logger
	collector *metrics.Collector
	timeout   time.Duration
}

// New creates a poller. Each job run gets its own context with the given
// timeout.
func New(logger *zap.Logger, collector *metrics.Collector, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Poller{
		cron:      cron.New(),
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// Add schedules a job. Runs that return an error are logged and counted but
// never stop the schedule.
func (p *Poller) Add(job Job) error {
	_, err := p.cron.AddFunc(job.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := job.Run(ctx); err != nil {
			p.collector.PollRuns.WithLabelValues(job.Name, "error").Inc()
			p.logger.Warn("Refresh job failed",
				zap.String("job", job.Name),
				zap.Error(err))
			return
		}
		p.collector.PollRuns.WithLabelValues(job.Name, "ok").Inc()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	return nil
}

// Jobs returns the number of scheduled jobs.
func (p *Poller) Jobs() int {
	return len(p.cron.Entries())
}

// Start begins running the schedules.
func (p *Poller) Start() {
	p.cron.Start()
	p.logger.Info("Poller started", zap.Int("jobs", p.Jobs()))
}

// Stop halts all schedules and waits for in-flight runs to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	p.logger.Info("Poller stopped")
}
