package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/internal/services"
	gormlogger "gorm.io/gorm/logger"
)

// openPanel builds a panel over a fresh in-memory database. Ids are
// sequential so repeated runs produce the same files.
func openPanel() (*services.Panel, error) {
	cfg := config.DefaultConfig()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}

	db, err := models.Open(&cfg.Database, gormlogger.Silent)
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		return nil, fmt.Errorf("default settings: %w", err)
	}

	return services.NewPanel(db, cfg, services.PanelOptions{
		IDs: services.NewSequentialIDGenerator(),
	}), nil
}

// loadPanel restores the backup at path into a fresh panel.
func loadPanel(path string) (*services.Panel, error) {
	if path == "" {
		return nil, fmt.Errorf("--backup is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	backup, err := services.ReadBackup(f)
	if err != nil {
		return nil, err
	}

	p, err := openPanel()
	if err != nil {
		return nil, err
	}
	if err := p.Export.RestoreBackup(backup); err != nil {
		p.Close()
		return nil, fmt.Errorf("restore %s: %w", path, err)
	}
	return p, nil
}

// output opens path for writing, or returns w when path is empty or "-".
func output(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
