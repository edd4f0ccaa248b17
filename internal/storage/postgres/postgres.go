// Package postgres implements the storage.Backend interface on PostgreSQL.
// The connection is opened in Init; recording is done by the GORM backend.
package postgres

import (
	"errors"
	"fmt"

	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/database"
	"github.com/mechevo/simulator/internal/logging"
	gormstorage "github.com/mechevo/simulator/internal/storage/gorm"
	"github.com/mechevo/simulator/pkg/core"

	"gorm.io/gorm"
)

var errNotInitialized = errors.New("postgres backend not initialized")

// Config holds connection and recording settings for the postgres backend.
type Config struct {
	Connection config.PostgresConfig
	Tag        string
}

// Backend records runs into PostgreSQL.
type Backend struct {
	cfg  Config
	dbm  *database.Manager
	log  *logging.SlogManager
	gorm *gormstorage.Backend

	// connect is replaced in tests.
	connect func(config.PostgresConfig) (*gorm.DB, error)
}

// New creates a postgres backend. No connection is made until Init.
func New(cfg Config, dbm *database.Manager, logManager *logging.SlogManager) *Backend {
	return &Backend{
		cfg:     cfg,
		dbm:     dbm,
		log:     logManager,
		connect: dbm.GetPostgresDB,
	}
}

// Init connects, migrates the schema and starts the DB writer.
func (b *Backend) Init() error {
	db, err := b.connect(b.cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	b.gorm = gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: b.log,
		Tag:        b.cfg.Tag,
		Migrate:    b.dbm.Migrate,
	})
	return b.gorm.Init()
}

// Close flushes and stops the DB writer.
func (b *Backend) Close() error {
	if b.gorm == nil {
		return nil
	}
	return b.gorm.Close()
}

func (b *Backend) StartRun(info core.RunInfo) error {
	if b.gorm == nil {
		return errNotInitialized
	}
	return b.gorm.StartRun(info)
}

func (b *Backend) RecordEvent(runID string, e core.Event) error {
	if b.gorm == nil {
		return errNotInitialized
	}
	return b.gorm.RecordEvent(runID, e)
}

func (b *Backend) EndRun(summary core.RunSummary, report core.Report) error {
	if b.gorm == nil {
		return errNotInitialized
	}
	return b.gorm.EndRun(summary, report)
}

// Report reads a stored run back.
func (b *Backend) Report(runID string) (core.Report, error) {
	if b.gorm == nil {
		return core.Report{}, errNotInitialized
	}
	return b.gorm.Report(runID)
}
