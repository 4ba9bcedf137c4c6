package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the reminder sweep on a fixed interval. A tick that
// fires while the previous sweep is still running is skipped, so sweeps
// never overlap.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(logger *log.Logger) *SchedulerService {
	if logger == nil {
		logger = log.Default()
	}
	cl := cron.PrintfLogger(logger)
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// ScheduleInterval registers job every interval (rounded to whole seconds).
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// ScheduleSweep runs reminders.Sweep every interval, each run bounded by
// timeout and cancelled when ctx is done.
func (s *SchedulerService) ScheduleSweep(ctx context.Context, reminders *ReminderService, interval, timeout time.Duration) (cron.EntryID, error) {
	return s.ScheduleInterval(interval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := reminders.Sweep(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[scheduler][sweep][err] %v", err)
		}
	})
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
