// Package syncer implements the reconciliation engine between the local
// sheet database and the remote system of record.
//
// A cycle pushes local changes first (so a freshly created sheet is offered
// to the server before the same cycle's pull could reintroduce a stale copy),
// then pulls the owner's full remote record set and applies it with
// last-writer-wins by timestamp. The per-table watermark only advances when
// both phases complete, which keeps delivery at-least-once: a failed cycle
// re-selects the same candidates next time.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/dbx"
	"github.com/aryklein/sheetsync/internal/logging"
	"github.com/aryklein/sheetsync/internal/models"
	"github.com/aryklein/sheetsync/internal/remote"
	"github.com/aryklein/sheetsync/internal/repositories/sheets"
	"github.com/aryklein/sheetsync/internal/repositories/syncmeta"
)

// TableSheets is the metadata key for the synchronized sheets table.
const TableSheets = "sheets"

// DefaultAutoSyncInterval is the cadence of the background timer when the
// caller does not choose one.
const DefaultAutoSyncInterval = 5 * time.Minute

// Engine reconciles the local store with the remote record API.
// It owns the online flag, the bearer credential, and the auto-sync timer,
// so independent engine instances (one per test, say) never interfere.
type Engine struct {
	db      *sql.DB
	sheets  sheets.Repository
	meta    syncmeta.Repository
	client  remote.Client
	log     logging.Logger
	ownerID string

	// syncing is the mutual-exclusion flag of the cycle state machine,
	// checked and set atomically at cycle start.
	syncing atomic.Bool

	mu         sync.Mutex
	online     bool
	token      string
	autoCancel context.CancelFunc
}

// New returns an engine for ownerID backed by db and client.
// The engine starts offline with no credential; the host wires both in
// through SetOnlineStatus and SetAuthToken.
func New(db *sql.DB, client remote.Client, ownerID string, log logging.Logger) *Engine {
	return &Engine{
		db:      db,
		sheets:  sheets.NewSQLiteRepository(db),
		meta:    syncmeta.NewSQLiteRepository(db),
		client:  client,
		log:     log,
		ownerID: ownerID,
	}
}

// SetAuthToken stores the bearer credential. It is re-read at the start of
// every network call, so rotating it mid-cycle takes effect on the next call
// within that same cycle.
func (e *Engine) SetAuthToken(token string) {
	e.mu.Lock()
	e.token = token
	e.mu.Unlock()
}

// AuthToken returns the current bearer credential.
func (e *Engine) AuthToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// SetOnlineStatus records connectivity. A false→true transition fires one
// immediate sync outside the timer cadence.
func (e *Engine) SetOnlineStatus(online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	e.mu.Unlock()

	if online && !was {
		go func() {
			_ = e.Sync(context.Background())
		}()
	}
}

// Online reports the connectivity flag.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Sync runs one reconciliation cycle. It always returns a result, never an
// error: callers can render sync status without exception handling.
// A call while a cycle is in progress is rejected immediately; it does not
// queue and does not block.
func (e *Engine) Sync(ctx context.Context) models.SyncResult {
	if !e.Online() {
		return models.SyncResult{ErrorMessage: common.ErrOffline.Error()}
	}
	if e.AuthToken() == "" {
		return models.SyncResult{ErrorMessage: common.ErrNoAuthToken.Error()}
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return models.SyncResult{ErrorMessage: common.ErrSyncInProgress.Error()}
	}
	defer e.syncing.Store(false)

	cycleStart := time.Now().UTC()
	var res models.SyncResult

	watermark := time.Time{}
	wm, err := e.meta.Watermark(ctx, TableSheets)
	if err != nil {
		return e.fail(ctx, res, err)
	}
	if wm != nil {
		watermark = *wm
	}

	pushed, pushFailed, err := e.push(ctx, watermark)
	res.PushedCount = pushed
	res.Conflicts += pushFailed
	if err != nil {
		return e.fail(ctx, res, err)
	}

	pulled, pullConflicts, err := e.pull(ctx)
	res.PulledCount = pulled
	res.Conflicts += pullConflicts
	if err != nil {
		return e.fail(ctx, res, err)
	}

	// A partially-failed push keeps the watermark where it is, so the next
	// cycle re-selects the records that did not make it out.
	if pushFailed > 0 {
		return e.fail(ctx, res, fmt.Errorf("%d of %d push candidates failed", pushFailed, pushFailed+pushed))
	}

	if err := e.meta.RecordSuccess(ctx, TableSheets, cycleStart); err != nil {
		return e.fail(ctx, res, err)
	}

	res.Success = true
	e.log.Info(ctx, "sync cycle finished",
		"pushed", res.PushedCount, "pulled", res.PulledCount, "conflicts", res.Conflicts)
	return res
}

// push offers every sheet changed since the watermark to the remote system,
// routing each to create or update based on a GET probe. A failure on one
// candidate does not abort the phase; an authentication failure, or a failure
// on every candidate, does.
func (e *Engine) push(ctx context.Context, watermark time.Time) (int, int, error) {
	candidates, err := e.sheets.ListUpdatedSince(ctx, e.ownerID, watermark)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load push candidates: %w", err)
	}

	pushed, failed := 0, 0
	for i := range candidates {
		s := &candidates[i]
		if err := e.pushOne(ctx, s); err != nil {
			if errors.Is(err, common.ErrUnauthenticated) {
				return pushed, failed, fmt.Errorf("push aborted: %w", err)
			}
			failed++
			e.log.Warn(ctx, "failed to push sheet", "id", s.ID, "error", err)
			continue
		}
		pushed++
	}

	if failed > 0 && pushed == 0 {
		return pushed, failed, fmt.Errorf("push failed for all %d candidates", failed)
	}
	return pushed, failed, nil
}

func (e *Engine) pushOne(ctx context.Context, s *models.Sheet) error {
	rec, err := remote.FromSheet(s)
	if err != nil {
		return fmt.Errorf("failed to encode sheet: %w", err)
	}

	_, err = e.client.Get(ctx, s.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return e.client.Create(ctx, rec)
	case err != nil:
		return err
	default:
		return e.client.Update(ctx, rec)
	}
}

// pull fetches the owner's full remote record set and applies each record
// with last-writer-wins by timestamp. A record that fails to decode is
// skipped and counted as a conflict; a local-store failure is fatal.
func (e *Engine) pull(ctx context.Context) (int, int, error) {
	records, err := e.client.ListByOwner(ctx, e.ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list remote records: %w", err)
	}

	pulled, conflicts := 0, 0
	for i := range records {
		rec := &records[i]
		incoming, err := rec.ToSheet()
		if err != nil {
			conflicts++
			e.log.Warn(ctx, "skipping unparsable remote record", "id", rec.ID, "error", err)
			continue
		}

		applied, err := e.applyPulled(ctx, incoming)
		if err != nil {
			return pulled, conflicts, fmt.Errorf("failed to apply remote record %s: %w", rec.ID, err)
		}
		if applied {
			pulled++
		}
	}
	return pulled, conflicts, nil
}

// applyPulled reconciles one remote record against the local store inside a
// single transaction. Remote wins only on a strictly greater updatedAt; on a
// tie the local copy stays untouched and remains a push candidate.
func (e *Engine) applyPulled(ctx context.Context, incoming *models.Sheet) (bool, error) {
	applied := false
	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := sheets.NewSQLiteRepository(tx)

		local, err := repo.GetByIDAny(ctx, incoming.ID, e.ownerID)
		if errors.Is(err, common.ErrNotFound) {
			if err := repo.Upsert(ctx, incoming); err != nil {
				return err
			}
			applied = true
			return nil
		}
		if err != nil {
			return err
		}

		if incoming.UpdatedAt.After(local.UpdatedAt) {
			if err := repo.Upsert(ctx, incoming); err != nil {
				return err
			}
			applied = true
		}
		return nil
	})
	return applied, err
}

func (e *Engine) fail(ctx context.Context, res models.SyncResult, err error) models.SyncResult {
	res.Success = false
	res.ErrorMessage = err.Error()
	e.log.Error(ctx, "sync cycle failed", "error", err)
	if rerr := e.meta.RecordFailure(ctx, TableSheets, err.Error()); rerr != nil {
		e.log.Error(ctx, "failed to record sync failure", "error", rerr)
	}
	return res
}

// Status returns the host-facing snapshot: watermark, pending-change count,
// and the status of the most recent attempt.
func (e *Engine) Status(ctx context.Context) (models.SyncStatus, error) {
	st := models.SyncStatus{Status: models.SyncStateIdle}

	meta, err := e.meta.Get(ctx, TableSheets)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return st, err
	}
	if err == nil {
		st.LastSync = meta.LastSyncAt
		st.Status = meta.Status
		st.ErrorMessage = meta.Error
	}

	watermark := time.Time{}
	if st.LastSync != nil {
		watermark = *st.LastSync
	}
	pending, err := e.sheets.CountUpdatedSince(ctx, e.ownerID, watermark)
	if err != nil {
		return st, err
	}
	st.PendingChanges = pending

	if e.syncing.Load() {
		st.Status = models.SyncStateSyncing
	}
	return st, nil
}

// StartAutoSync starts the recurring background sync. Starting while already
// running replaces the previous timer rather than stacking a second one.
func (e *Engine) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoSyncInterval
	}

	e.mu.Lock()
	if e.autoCancel != nil {
		e.autoCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.autoCancel = cancel
	e.mu.Unlock()

	go e.runAutoSync(ctx, interval)
}

// StopAutoSync stops the background timer. It is safe to call when no timer
// is running.
func (e *Engine) StopAutoSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.autoCancel != nil {
		e.autoCancel()
		e.autoCancel = nil
	}
}

func (e *Engine) runAutoSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := e.Sync(ctx)
			if !res.Success && res.ErrorMessage != common.ErrSyncInProgress.Error() {
				e.log.Warn(ctx, "auto sync failed", "error", res.ErrorMessage)
			}
		}
	}
}

// Close stops background work. The database handle is owned by the caller.
func (e *Engine) Close() {
	e.StopAutoSync()
}
