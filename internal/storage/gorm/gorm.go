// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. The sqlite and
// postgres backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mechevo/simulator/internal/logging"
	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/internal/model/convert"
	"github.com/mechevo/simulator/internal/queue"
	"github.com/mechevo/simulator/pkg/core"

	"gorm.io/gorm"
)

const defaultFlushInterval = 2 * time.Second

// ErrUnknownRun is returned when an event arrives for a run that was never started.
var ErrUnknownRun = errors.New("unknown run")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	Tag           string
	FlushInterval time.Duration
	// Migrate runs schema migration during Init. Nil skips migration.
	Migrate func(*gorm.DB) error
}

// erasure marks the end of an entity's life.
type erasure struct {
	RunID    uint
	ObjectID int
	Time     float64
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Entities *queue.Queue[model.Entity]
	Events   *queue.Queue[model.EventRecord]
	Erasures *queue.Queue[erasure]
}

func newQueues() *queues {
	return &queues{
		Entities: queue.New[model.Entity](),
		Events:   queue.New[model.EventRecord](),
		Erasures: queue.New[erasure](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	mu   sync.RWMutex
	runs map[string]uint // run uuid -> runs.id

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps: deps,
		runs: make(map[string]uint),
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend requires a database")
	}

	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.Migrate != nil {
		if err := b.deps.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return b.Flush()
}

// DB exposes the connection for read-back and dumps.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartRun inserts the run row synchronously so events can reference it.
func (b *Backend) StartRun(info core.RunInfo) error {
	run := convert.CoreToRun(info, b.deps.Tag)
	if err := b.deps.DB.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to insert run %s: %w", info.ID, err)
	}

	b.mu.Lock()
	b.runs[info.ID] = run.ID
	b.mu.Unlock()
	return nil
}

func (b *Backend) runKey(runID string) (uint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.runs[runID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return id, nil
}

// RecordEvent converts and queues an event, plus the entity row for create events.
func (b *Backend) RecordEvent(runID string, e core.Event) error {
	key, err := b.runKey(runID)
	if err != nil {
		return err
	}

	rec, err := convert.CoreToEventRecord(e)
	if err != nil {
		return fmt.Errorf("converting event %d: %w", e.Seq, err)
	}
	rec.RunID = key

	ent, ok, err := convert.CoreToEntity(e)
	if err != nil {
		return fmt.Errorf("converting entity %d: %w", e.Seq, err)
	}
	if ok {
		ent.RunID = key
		b.queues.Entities.Push(ent)
	}
	if convert.EraseTitles[e.Title] {
		b.queues.Erasures.Push(erasure{RunID: key, ObjectID: rec.ObjectID, Time: e.Time})
	}
	b.queues.Events.Push(rec)
	return nil
}

// EndRun flushes pending writes and stores the run summary.
func (b *Backend) EndRun(summary core.RunSummary, _ core.Report) error {
	key, err := b.runKey(summary.RunID)
	if err != nil {
		return err
	}

	if err := b.Flush(); err != nil {
		return err
	}

	var run model.Run
	if err := b.deps.DB.First(&run, key).Error; err != nil {
		return fmt.Errorf("failed to load run %s: %w", summary.RunID, err)
	}
	convert.ApplySummary(&run, summary)
	if err := b.deps.DB.Save(&run).Error; err != nil {
		return fmt.Errorf("failed to save run summary %s: %w", summary.RunID, err)
	}

	b.mu.Lock()
	delete(b.runs, summary.RunID)
	b.mu.Unlock()
	return nil
}

// Report reads a stored run back as a report ordered by sequence number.
func (b *Backend) Report(runID string) (core.Report, error) {
	var run model.Run
	if err := b.deps.DB.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return core.Report{}, fmt.Errorf("failed to find run %s: %w", runID, err)
	}
	var records []model.EventRecord
	if err := b.deps.DB.Where("run_id = ?", run.ID).Order("seq").Find(&records).Error; err != nil {
		return core.Report{}, fmt.Errorf("failed to load events of run %s: %w", runID, err)
	}
	return convert.EventRecordsToReport(records, run.TotalTime), nil
}

// Flush writes every queued row now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	var errs []error
	if err := writeQueue(b.deps.DB, b.queues.Entities, "entities"); err != nil {
		errs = append(errs, err)
	}
	if err := writeQueue(b.deps.DB, b.queues.Events, "events"); err != nil {
		errs = append(errs, err)
	}
	if err := b.applyErasures(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Backend) applyErasures() error {
	items := b.queues.Erasures.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		for _, e := range items {
			if err := tx.Model(&model.Entity{}).
				Where("run_id = ? AND object_id = ?", e.RunID, e.ObjectID).
				Update("erase_time", e.Time).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.queues.Erasures.Requeue(items...)
		return fmt.Errorf("error updating erased entities: %w", err)
	}
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error committing %s: %w", name, err)
	}
	return nil
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.LogManager.WriteLog(":DB:WRITER:", err.Error(), "ERROR")
			}
		}
	}
}
