package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs the panel's periodic jobs on one cron instance. A job that
// is still running when its next tick arrives is skipped.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	l := cronLogger{log: logger.Component("scheduler")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers fn under name. Registering a name twice replaces the
// earlier schedule.
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	log := logger.Component("scheduler").With().Str("job", name).Logger()
	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		log.Debug().Dur("took", time.Since(start)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.entries[name] = id
	log.Info().Str("spec", spec).Msg("job scheduled")
	return nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// PanelJobs are the collaborators of the built-in periodic jobs. Nil members
// are not scheduled.
type PanelJobs struct {
	FraudScanner *FraudScanner
	Digest       *DigestService
	Logs         *SystemLogService
	Demo         *DemoTrafficService
}

// RegisterPanelJobs schedules fraud scan, daily digest, log cleanup and demo
// traffic according to cfg.
func RegisterPanelJobs(s *Scheduler, cfg *config.Config, jobs PanelJobs) error {
	if jobs.FraudScanner != nil && !cfg.Scheduler.DisableFraudScan {
		if err := s.AddJob("fraud-scan", cfg.Scheduler.FraudScanCron, func(ctx context.Context) error {
			_, err := jobs.FraudScanner.Scan(ctx)
			return err
		}); err != nil {
			return err
		}
	}

	if jobs.Digest != nil && !cfg.Scheduler.DisableDailyDigest {
		if err := s.AddJob("daily-digest", cfg.Scheduler.DigestCron, jobs.Digest.Send); err != nil {
			return err
		}
	}

	if jobs.Logs != nil && cfg.Scheduler.LogRetentionDays > 0 {
		days := cfg.Scheduler.LogRetentionDays
		if err := s.AddJob("log-cleanup", cfg.Scheduler.LogCleanupCron, func(ctx context.Context) error {
			_, err := jobs.Logs.CleanupOldLogs(days)
			return err
		}); err != nil {
			return err
		}
	}

	if jobs.Demo != nil && cfg.Demo.Enabled {
		if err := s.AddJob("demo-traffic", cfg.Demo.Cron, func(ctx context.Context) error {
			_, err := jobs.Demo.Tick()
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}
