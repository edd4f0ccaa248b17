package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/database"
	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/internal/model/convert"
	v1 "github.com/mechevo/simulator/internal/storage/memory/export/v1"
	"github.com/mechevo/simulator/pkg/core"
	"gorm.io/gorm"
)

// exportCommand rebuilds v1 reports from runs stored in sqlite or postgres.
func exportCommand(args []string) error {
	flags, configDir := commonFlags("mechevo export")
	flags.String("storage-type", "sqlite", "database holding the runs: sqlite or postgres")
	flags.String("storage-sqlite-path", "", "sqlite database file")
	flags.String("storage-memory-outputDir", "./reports", "directory the reports are written to")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := config.BindFlags(flags, "logLevel", "logsDir", "storage.type", "storage.sqlite.path", "storage.memory.outputDir"); err != nil {
		return err
	}

	runIDs := flags.Args()
	if len(runIDs) == 0 {
		return errors.New("no run IDs provided")
	}

	a, err := setup(*configDir)
	if err != nil {
		return err
	}
	defer a.shutdown()

	db, err := openRunDB(database.NewManager(a.logManager.Zerolog()), config.GetStorageConfig())
	if err != nil {
		a.logger.Error("Failed to open run database", "error", err)
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	outDir := config.GetString("storage.memory.outputDir")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, runID := range runIDs {
		txStart := time.Now()
		data, err := loadRun(db, runID)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.json", safeName(data.Info.ScenarioName), runID))
		if err := writeJSON(path, v1.Build(data)); err != nil {
			return err
		}
		a.logger.Info("Exported run", "runId", runID, "path", path, "events", len(data.Report.Events), "took", time.Since(txStart))
		fmt.Println(path)
	}
	return nil
}

func openRunDB(dbm *database.Manager, cfg config.StorageConfig) (*gorm.DB, error) {
	switch cfg.Type {
	case "postgres":
		return dbm.GetPostgresDB(cfg.Postgres)
	case "sqlite":
		if cfg.SQLite.Path == "" {
			return nil, errors.New("export from sqlite needs --storage-sqlite-path")
		}
		if _, err := os.Stat(cfg.SQLite.Path); err != nil {
			return nil, fmt.Errorf("sqlite database: %w", err)
		}
		return dbm.GetSqliteDB(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("cannot export from storage type %q", cfg.Type)
	}
}

// loadRun reads a stored run with its events ordered by sequence number.
func loadRun(db *gorm.DB, runID string) (*v1.RunData, error) {
	var run model.Run
	if err := db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("error getting run %s: %w", runID, err)
	}

	var records []model.EventRecord
	if err := db.Where("run_id = ?", run.ID).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("error getting events of run %s: %w", runID, err)
	}

	info, summary := convert.RunToCore(run)
	report := convert.EventRecordsToReport(records, run.TotalTime)
	summary.Shots = report.Count(core.TitleCreateProjectile)
	summary.Hits = report.Count(core.TitleModifyHp)
	return &v1.RunData{
		Info:    info,
		Tag:     run.Tag,
		Summary: summary,
		Report:  report,
	}, nil
}

func writeJSON(path string, export v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(export); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return f.Close()
}

var fileNameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

func safeName(name string) string {
	if name == "" {
		return "run"
	}
	return fileNameReplacer.Replace(name)
}
