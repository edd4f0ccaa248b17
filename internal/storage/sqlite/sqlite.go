// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns are
// creating the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mechevo/simulator/internal/database"
	"github.com/mechevo/simulator/internal/logging"
	gormstorage "github.com/mechevo/simulator/internal/storage/gorm"
	"github.com/mechevo/simulator/pkg/core"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps; empty keeps the DB in memory only
	Tag          string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	dbm      *database.Manager
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend over a private in-memory database.
func New(cfg Config, dbm *database.Manager, logManager *logging.SlogManager) (*Backend, error) {
	db, err := dbm.GetMemoryDB("mechevo-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
		Tag:        cfg.Tag,
		Migrate:    dbm.Migrate,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		dbm:      dbm,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.started = true

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// EndRun stores the summary and dumps so a finished run is on disk right away.
func (b *Backend) EndRun(summary core.RunSummary, report core.Report) error {
	if err := b.Backend.EndRun(summary, report); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, flushes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	if !b.started {
		return nil
	}
	<-b.done

	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the database to DumpPath. No-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()
	return b.dbm.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
