/*
scheduler.go - Daily sweep scheduler

PURPOSE:
  Fires the two daily sweeps at fixed UTC wall-clock times:
  - warning sweep: evaluates yesterday (in the IST civil-date frame) and
    issues attendance warnings
  - reminder sweep: nudges members who have not submitted today

DESIGN:
  - One goroutine per job, each sleeping until the job's next wall-clock
    occurrence rather than ticking on an interval, so a restart never
    double-fires and a long sweep never drifts the schedule
  - Stop() waits for in-flight sweeps to finish
  - The sweeps themselves are non-reentrant; an overlapping firing is
    skipped inside the sweep, not here

USAGE:
  sched := api.NewScheduler(warnings, reminder, directory, warnAt, remindAt)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - warning/engine.go: SweepYesterday
  - warning/reminder.go: SweepToday
  - config/config.go: ClockTime parsing
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/crewtrack/attendance-engine/config"
	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/warning"
)

// Scheduler runs the daily sweeps.
type Scheduler struct {
	Warnings  *warning.Engine
	Reminder  *warning.Reminder
	Directory core.Directory

	WarningAt  config.ClockTime
	ReminderAt config.ClockTime

	stop    chan bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler for the two daily jobs.
func NewScheduler(warnings *warning.Engine, reminder *warning.Reminder, directory core.Directory, warningAt, reminderAt config.ClockTime) *Scheduler {
	return &Scheduler{
		Warnings:   warnings,
		Reminder:   reminder,
		Directory:  directory,
		WarningAt:  warningAt,
		ReminderAt: reminderAt,
		stop:       make(chan bool),
	}
}

// Start begins both daily jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	s.wg.Add(2)
	go s.runDaily("warning-sweep", s.WarningAt, func(ctx context.Context) {
		s.Warnings.SweepYesterday(ctx, s.Directory)
	})
	go s.runDaily("reminder-sweep", s.ReminderAt, func(ctx context.Context) {
		s.Reminder.SweepToday(ctx, s.Directory)
	})

	log.Printf("[Scheduler] Started: warning sweep at %02d:%02d UTC, reminder sweep at %02d:%02d UTC",
		s.WarningAt.Hour, s.WarningAt.Minute, s.ReminderAt.Hour, s.ReminderAt.Minute)
}

// Stop stops both jobs and waits for any in-flight sweep.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.started = false
	log.Println("[Scheduler] Stopped")
}

func (s *Scheduler) runDaily(name string, at config.ClockTime, job func(context.Context)) {
	defer s.wg.Done()

	for {
		next := at.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		log.Printf("[Scheduler] %s next run at %s", name, next.Format(time.RFC3339))

		select {
		case <-timer.C:
			sweepsRun.WithLabelValues(name).Inc()
			job(context.Background())
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}
