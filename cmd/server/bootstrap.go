package main

import (
	"fmt"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/logger"
)

// appServices holds the panel and the background workers started with it.
type appServices struct {
	cfg       *config.Config
	panel     *services.Panel
	worker    *services.Worker
	scheduler *services.Scheduler
}

// bootstrap initializes database, panel services, queue worker and scheduled
// jobs.
func bootstrap(cfg *config.Config) (*appServices, error) {
	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	db := models.GetDB()

	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default settings")
	}

	services.InitSystemLogger(db)

	queue := services.InitTaskQueue(cfg)
	panel := services.NewPanel(db, cfg, services.PanelOptions{
		Hub:   services.GetSSEHub(),
		Queue: queue,
	})

	if cfg.Seed.Enabled {
		seeded, err := panel.Seeder.Seed()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to seed fixture panel")
		} else if seeded {
			logger.Info().Msg("Fixture panel created")
		}
	}

	// Quota actions go through Redis when it is enabled
	var worker *services.Worker
	if queue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(panel.QuotaActions.Process)
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start quota action worker")
				worker = nil
			}
		}
	}

	scheduler := services.NewScheduler()
	if err := services.RegisterPanelJobs(scheduler, cfg, services.PanelJobs{
		FraudScanner: panel.FraudScanner,
		Digest:       panel.Digest,
		Logs:         panel.Logs,
		Demo:         panel.Demo,
	}); err != nil {
		return nil, err
	}
	scheduler.Start()

	return &appServices{
		cfg:       cfg,
		panel:     panel,
		worker:    worker,
		scheduler: scheduler,
	}, nil
}

// shutdown stops the scheduler and worker, then drains the queue.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if err := s.panel.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
}
