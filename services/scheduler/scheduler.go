// Package scheduler runs the periodic jobs of the API.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/fourmis/core"
)

var (
	completionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fourmis",
		Name:      "completion_job_runs_total",
		Help:      "The total number of runs of the mission completion job.",
	}, []string{"result"})

	registrationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fourmis",
		Name:      "registrations_completed_total",
		Help:      "The total number of registrations completed by the mission completion job.",
	})
)

// Completer completes the confirmed registrations of the missions over at `now`.
type Completer interface {
	CompleteEnded(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	completer Completer
	schedule  string
	timeout   time.Duration
	logger    core.Logger
}

func New(completer Completer, logger core.Logger, conf *core.Config) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		completer: completer,
		schedule:  conf.Missions.CompletionSchedule,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the cron in its own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.RunCompletion(context.Background()) }); err != nil {
		return errors.Wrapf(err, "scheduling completion job %q", s.schedule)
	}
	s.cron.Start()
	s.logger.Info(fmt.Sprintf("scheduler: completion job scheduled %q", s.schedule))
	return nil
}

// Stop stops the cron and waits for the running jobs to finish, or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunCompletion runs the completion job once.
func (s *Scheduler) RunCompletion(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.completer.CompleteEnded(ctx, core.NowFunc())
	if err != nil {
		completionRuns.WithLabelValues("error").Inc()
		s.logger.Error(fmt.Sprintf("completion job: %v", err), err)
		return 0, err
	}

	completionRuns.WithLabelValues("success").Inc()
	registrationsCompleted.Add(float64(n))
	if n > 0 {
		s.logger.Info(fmt.Sprintf("completion job: %d registrations completed", n))
	}
	return n, nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v %v", msg, err, keysAndValues), err)
}
