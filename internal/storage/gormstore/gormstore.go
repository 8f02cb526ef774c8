// Package gormstorage implements storage.Backend on top of GORM. The same code
// serves Postgres and SQLite; for an in-memory SQLite database it can also
// dump to disk periodically via VACUUM INTO.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/timeslider/internal/database"
	"github.com/OCAP2/timeslider/internal/model"
	"github.com/OCAP2/timeslider/internal/model/convert"
	"github.com/OCAP2/timeslider/internal/queue"
	"github.com/OCAP2/timeslider/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config holds write and dump settings.
type Config struct {
	// FlushInterval is how often queued writes are drained. Zero disables
	// the background writer; writes are then flushed on demand.
	FlushInterval time.Duration
	DumpInterval  time.Duration
	DumpPath      string // Path for periodic VACUUM INTO dumps
}

// Dependencies holds the injected collaborators.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// stateKey is the primary key of a marker state row.
type stateKey struct {
	date  string
	track int
}

// Backend implements storage.Backend with queue-based batch upserts.
type Backend struct {
	deps     Dependencies
	cfg      Config
	states   *queue.Queue[stateKey, model.MarkerState]
	actives  *queue.Queue[int, model.ActiveDate]
	flushMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies, cfg Config) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:    deps,
		cfg:     cfg,
		states: queue.New(func(r model.MarkerState) stateKey {
			return stateKey{r.Date, r.TrackIndex}
		}),
		actives: queue.New(func(r model.ActiveDate) int { return r.TrackIndex }),
	}
}

// Init runs schema migration and starts the writer and dump goroutines.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	if b.cfg.FlushInterval > 0 {
		b.wg.Add(1)
		go b.writeLoop()
	}
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 && b.deps.DB.Name() == "sqlite" {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the goroutines and flushes whatever is still queued.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.stopChan != nil {
		close(b.stopChan)
	}
	b.wg.Wait()

	err := b.Flush()
	if b.cfg.DumpPath != "" && b.deps.DB.Name() == "sqlite" {
		if dumpErr := database.DumpMemoryDBToDisk(b.deps.DB, b.cfg.DumpPath); dumpErr != nil && err == nil {
			err = dumpErr
		}
	}
	return err
}

func (b *Backend) SaveMarkerState(rec core.MarkerRecord) error {
	row := convert.MarkerRecordToMarkerState(rec)
	row.UpdatedAt = time.Now()
	b.states.Push(row)
	return nil
}

// DeleteMarkerStates flushes pending writes first so a queued state for a
// swept date cannot reappear afterwards.
func (b *Backend) DeleteMarkerStates(track int, except core.Date) error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.deps.DB.
		Where("track_index = ? AND date <> ?", track, except.String()).
		Delete(&model.MarkerState{}).Error
}

func (b *Backend) LoadMarkerStates() ([]core.MarkerRecord, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	var rows []model.MarkerState
	if err := b.deps.DB.Order("track_index, date").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.MarkerRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := convert.MarkerStateToMarkerRecord(row)
		if err != nil {
			b.deps.Logger.Warn("Skipping unreadable marker state", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) SaveActiveDate(rec core.ActiveDateRecord) error {
	b.actives.Push(convert.ActiveDateRecordToActiveDate(rec))
	return nil
}

func (b *Backend) LoadActiveDates() ([]core.ActiveDateRecord, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	var rows []model.ActiveDate
	if err := b.deps.DB.Order("track_index").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.ActiveDateRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := convert.ActiveDateToActiveDateRecord(row)
		if err != nil {
			b.deps.Logger.Warn("Skipping unreadable active date", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Flush drains both queues into the database. On failure the items are
// pushed back so the next flush retries them.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if err := upsertQueue(b.deps.DB, b.states,
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "track_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"position_seconds", "boundary_seconds", "is_paused", "updated_at"}),
		}); err != nil {
		return fmt.Errorf("writing marker states: %w", err)
	}
	if err := upsertQueue(b.deps.DB, b.actives,
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "track_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_date", "last_updated_at"}),
		}); err != nil {
		return fmt.Errorf("writing active dates: %w", err)
	}
	return nil
}

// Pending returns the number of queued, unwritten rows.
func (b *Backend) Pending() int {
	return b.states.Len() + b.actives.Len()
}

// upsertQueue writes all items from a queue to the database in a transaction.
// The queue holds one row per key, so a batch never touches a key twice.
func upsertQueue[K comparable, T any](db *gorm.DB, q *queue.Queue[K, T], onConflict clause.OnConflict) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Clauses(onConflict).Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items...)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return err
	}
	return nil
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB write failed", "error", err, "pending", b.Pending())
			}
		}
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.deps.DB, b.cfg.DumpPath); err != nil {
				b.deps.Logger.Error("Error dumping to disk", "error", err)
				continue
			}
			attrs := []any{"duration", time.Since(start), "path", b.cfg.DumpPath}
			if mod, err := database.LastModified(b.cfg.DumpPath); err == nil {
				attrs = append(attrs, "written_at", mod)
			}
			b.deps.Logger.Debug("Dumped to disk", attrs...)
		}
	}
}
