// Package scheduler wraps robfig/cron into a small Job/Scheduler pair
// driving the orchestrator's `auto` loop, the daily price tracker, and the
// retrospective job on their configured cadences.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/aegis-kr/pkg/logger"
)

// Job is anything the Scheduler can run on a cron expression. AEGIS jobs
// (AutoRunJob, PriceTrackerJob, RetrospectiveJob, the reliability services'
// backup/health/monitoring jobs) all implement this with a pointer receiver
// closing over the dependency it drives.
type Job interface {
	Run() error
	Name() string
}

// jobState is the last-observed outcome of one registered job, reported
// through Status for the status server's /status/jobs route.
type jobState struct {
	schedule string
	running  bool
	lastRun  time.Time
	lastErr  string
	runs     int
	skipped  int // runs dropped because the previous invocation was still in flight
}

// JobStatus is one row of Scheduler.Status, the operator-facing summary of
// what AEGIS's background jobs have been doing.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	Runs     int       `json:"runs"`
	Skipped  int       `json:"skipped_overlap"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Scheduler manages background jobs on a seconds-resolution cron whose
// expressions are evaluated in KST (UTC+9). Jobs of
// the same name never overlap: AutoRunJob's tiered fetch can run long
// enough to bump into its own next `@every` tick, and RetrospectiveJob
// shares the ledger database with it, so a second invocation is skipped
// rather than queued.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	states map[string]*jobState
}

// New creates a Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.FixedZone("KST", 9*60*60))),
		log:    logger.Component(log, "scheduler"),
		states: make(map[string]*jobState),
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.states)).Msg("scheduler started")
}

// Stop waits for any in-flight job to finish, then halts the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers job on a standard cron expression (seconds-enabled,
// e.g. "0 0 18 * * *" for the daily 18:00 KST price tracker, or
// "@every 20m" for the auto-run loop). A missed tick is simply never
// fired; cron does not queue backlog, and a tick that lands while the
// same job is still running is skipped rather than stacked.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	s.states[job.Name()] = &jobState{schedule: schedule}
	s.mu.Unlock()

	_, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.runTracked(job)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// RunNow executes job immediately, outside its schedule, subject to the
// same overlap guard as a scheduled tick.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("running job immediately")
	_, err := s.runTracked(job)
	return err
}

// runTracked runs job unless an invocation of the same name is already in
// flight, recording run/error counters either way. ran is false if the
// tick was skipped for overlap.
func (s *Scheduler) runTracked(job Job) (ran bool, err error) {
	s.mu.Lock()
	st := s.states[job.Name()]
	if st == nil {
		st = &jobState{}
		s.states[job.Name()] = st
	}
	if st.running {
		st.skipped++
		s.mu.Unlock()
		s.log.Warn().Str("job", job.Name()).Msg("previous run still in flight, skipping tick")
		return false, nil
	}
	st.running = true
	s.mu.Unlock()

	s.log.Debug().Str("job", job.Name()).Msg("job starting")
	err = job.Run()

	s.mu.Lock()
	st.running = false
	st.lastRun = time.Now()
	st.runs++
	if err != nil {
		st.lastErr = err.Error()
	} else {
		st.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Msg("job complete")
	}
	return true, err
}

// Status reports every registered job's last outcome for the status
// server's /status/jobs route.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.states))
	for name, st := range s.states {
		out = append(out, JobStatus{
			Name:     name,
			Schedule: st.schedule,
			Running:  st.running,
			Runs:     st.runs,
			Skipped:  st.skipped,
			LastRun:  st.lastRun,
			LastErr:  st.lastErr,
		})
	}
	return out
}
