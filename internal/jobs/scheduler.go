package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"freezefit/pkg/config"
	"freezefit/pkg/events"
	"freezefit/pkg/logger"
	"freezefit/pkg/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	JobAppointmentReminders = "appointment-reminders"
	JobExpirePending        = "expire-pending"

	defaultJobTimeout = 5 * time.Minute
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// AppointmentJobs is the part of the appointment service the scheduler drives.
type AppointmentJobs interface {
	SendReminders(ctx context.Context) (int, error)
	ExpirePending(ctx context.Context) (int, error)
}

// Func runs one job and reports how many items it processed.
type Func func(ctx context.Context) (int, error)

type job struct {
	name     string
	schedule string
	run      Func
	running  *sync.Mutex
}

// Scheduler runs the periodic appointment jobs on cron schedules. Runs of the
// same job never overlap, whether started by cron or by Run.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]job
	log  *logger.Logger
}

func NewScheduler(cfg *config.Config, appointments AppointmentJobs) (*Scheduler, error) {
	s := &Scheduler{
		jobs: make(map[string]job),
		log:  cfg.Log.With("component", "scheduler"),
	}

	cronLog := cron.PrintfLogger(s.log)
	s.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	if err := s.register(JobAppointmentReminders, cfg.ReminderSchedule, appointments.SendReminders); err != nil {
		return nil, err
	}
	if err := s.register(JobExpirePending, cfg.PendingExpirySchedule, appointments.ExpirePending); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) register(name, schedule string, run Func) error {
	j := job{name: name, schedule: schedule, run: run, running: &sync.Mutex{}}
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.execute(context.Background(), j) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.jobs[name] = j
	return nil
}

// Start runs the scheduler until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.Names() {
		s.log.Info("Job scheduled", "job", name, "schedule", s.jobs[name].schedule)
	}
	s.cron.Start()

	<-ctx.Done()
	s.log.Info("Stopping scheduler, waiting for running jobs")
	<-s.cron.Stop().Done()
}

// Run executes a job immediately, outside its schedule. It returns
// ErrJobRunning when the job is already in progress.
func (s *Scheduler) Run(ctx context.Context, name string) (int, error) {
	j, ok := s.jobs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.executeCounted(ctx, j)
}

func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) execute(ctx context.Context, j job) error {
	_, err := s.executeCounted(ctx, j)
	return err
}

func (s *Scheduler) executeCounted(ctx context.Context, j job) (int, error) {
	if !j.running.TryLock() {
		s.log.Info("Job skipped, previous run still in progress", "job", j.name)
		return 0, ErrJobRunning
	}
	defer j.running.Unlock()

	runID := uuid.NewString()
	ctx = events.WithCorrelationID(ctx, runID)
	ctx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()

	start := time.Now()
	processed, err := j.run(ctx)
	duration := time.Since(start)
	metrics.RecordJobRun(j.name, duration, processed, err == nil)

	if err != nil {
		s.log.Error("Job failed",
			"job", j.name,
			"run_id", runID,
			"processed", processed,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return processed, err
	}

	s.log.Info("Job finished",
		"job", j.name,
		"run_id", runID,
		"processed", processed,
		"duration_ms", duration.Milliseconds(),
	)
	return processed, nil
}
