package models

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Engine
//
// The engine reconciles pending/failed local notes with the remote store
// whenever plausible, without losing data and without duplicating notes on
// the server.
//
// Design decisions:
//   - Single goroutine + mutex: the sweep timer, the online-transition
//     handler and the "Sync Now" button all funnel through sweep() behind
//     sweepMu. No channel complexity needed.
//   - Per-note backoff: a failed attempt schedules an independent retry
//     timer for that note id. Retry delays escalate 1s/2s/5s/10s/30s and
//     the schedule length caps attempts before the note goes terminal.
//   - Existence re-checks: every mutation re-reads the record by id first,
//     so a user delete racing an in-flight request never resurrects data.
// ============================================================================

// SweepResult is the aggregate outcome of a manual "sync all" sweep.
type SweepResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncEngineStatus exposes engine state to the UI without leaking internals.
type SyncEngineStatus struct {
	Enabled    bool       `json:"enabled"`
	Online     bool       `json:"online"`
	InProgress bool       `json:"in_progress"`
	LastSweep  *time.Time `json:"last_sweep"` // nil if never swept
	LastError  string     `json:"last_error,omitempty"`
}

// BackgroundRegistrar registers a named task with the host platform so
// reconciliation can be attempted without an open foreground session.
type BackgroundRegistrar interface {
	Register(taskName string, task func(ctx context.Context)) error
}

// NoopRegistrar is used when the platform offers no background execution.
type NoopRegistrar struct{}

// Register implements BackgroundRegistrar by doing nothing.
func (NoopRegistrar) Register(string, func(ctx context.Context)) error { return nil }

// backgroundTaskName identifies the engine's platform background-sync task.
const backgroundTaskName = "sync-notes"

// syncEngineInstance is the package-level singleton, following the same
// pattern as the db handle in db.go.
var syncEngineInstance *SyncEngine

// GetSyncEngine returns the package-level engine instance.
// Returns nil if sync is not configured — callers must nil-check.
func GetSyncEngine() *SyncEngine {
	return syncEngineInstance
}

// SyncEngine orchestrates the background reconciliation of local notes.
type SyncEngine struct {
	config  *SyncConfig
	store   NoteStore
	remote  RemoteStore
	monitor *NetMonitor
	bus     *Bus

	sweepMu    sync.Mutex  // One sweep at a time
	enabled    atomic.Bool // Runtime toggle
	inProgress atomic.Bool // True while a sweep is running
	cancelFunc context.CancelFunc
	baseCtx    context.Context
	unsubNet   func()

	statusMu  sync.Mutex
	lastSweep time.Time
	lastError error

	timersMu sync.Mutex
	timers   map[string]*time.Timer // Scheduled per-note retries, by note id
}

// NewSyncEngine creates an engine over the given collaborators.
func NewSyncEngine(config *SyncConfig, store NoteStore, remote RemoteStore, monitor *NetMonitor, bus *Bus) (*SyncEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, serr.Wrap(err, "invalid sync config")
	}

	e := &SyncEngine{
		config:  config,
		store:   store,
		remote:  remote,
		monitor: monitor,
		bus:     bus,
		baseCtx: context.Background(),
		timers:  make(map[string]*time.Timer),
	}
	e.enabled.Store(config.Enabled)

	syncEngineInstance = e
	return e, nil
}

// Start launches the background sweep loop. The first sweep runs immediately
// when the monitor reports online, then subsequent sweeps run on the
// configured interval and on every offline-to-online transition.
func (e *SyncEngine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.baseCtx = ctx
	e.cancelFunc = cancel

	e.unsubNet = e.monitor.OnChange(func(online bool) {
		if online && e.enabled.Load() {
			go e.sweep(ctx)
		}
	})

	go e.sweepLoop(ctx)
	logger.Info("Sync engine started",
		"interval", e.config.Interval.String(),
		"max_attempts", e.config.MaxAttempts(),
	)
}

// Stop shuts the engine down, cancelling the loop and any scheduled retries.
func (e *SyncEngine) Stop() {
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	if e.unsubNet != nil {
		e.unsubNet()
	}

	e.timersMu.Lock()
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	e.timersMu.Unlock()

	logger.Info("Sync engine stopped")
}

// SetEnabled toggles background sync at runtime.
func (e *SyncEngine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
	logger.Info("Sync engine toggled", "enabled", enabled)
}

// IsEnabled returns whether background sync is currently active.
func (e *SyncEngine) IsEnabled() bool {
	return e.enabled.Load()
}

// Monitor exposes the engine's connectivity monitor so the platform
// integration layer can report transitions.
func (e *SyncEngine) Monitor() *NetMonitor {
	return e.monitor
}

// GetStatus returns the current engine state for UI display.
func (e *SyncEngine) GetStatus() *SyncEngineStatus {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	status := &SyncEngineStatus{
		Enabled:    e.enabled.Load(),
		Online:     e.monitor.IsOnline(),
		InProgress: e.inProgress.Load(),
	}
	if !e.lastSweep.IsZero() {
		ls := e.lastSweep
		status.LastSweep = &ls
	}
	if e.lastError != nil {
		status.LastError = e.lastError.Error()
	}
	return status
}

// RegisterBackgroundSync registers the "sync-notes" task with the platform.
// Falls back gracefully (no-op) when the platform does not support it.
func (e *SyncEngine) RegisterBackgroundSync(reg BackgroundRegistrar) {
	if reg == nil {
		reg = NoopRegistrar{}
	}
	err := reg.Register(backgroundTaskName, func(ctx context.Context) {
		if _, err := e.SyncAll(ctx); err != nil {
			logger.LogErr(err, "background sync task failed")
		}
	})
	if err != nil {
		logger.LogErr(err, "background sync registration failed, continuing without it")
	}
}

// sweepLoop runs sweeps on a timer while online.
func (e *SyncEngine) sweepLoop(ctx context.Context) {
	if e.enabled.Load() && e.monitor.IsOnline() {
		e.sweep(ctx)
	}

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.enabled.Load() && e.monitor.IsOnline() {
				e.sweep(ctx)
			}
		}
	}
}

// SyncAll runs a manual best-effort sweep of every pending note and reports
// the aggregate outcome. One note's failure does not abort the sweep, and a
// sweep with zero pending notes makes no remote calls.
func (e *SyncEngine) SyncAll(ctx context.Context) (SweepResult, error) {
	return e.sweepWith(ctx)
}

// sweep is the internal trigger path (timer, online transition). Skips
// silently when another sweep already holds the lock.
func (e *SyncEngine) sweep(ctx context.Context) {
	if !e.sweepMu.TryLock() {
		return
	}
	defer e.sweepMu.Unlock()
	e.runSweep(ctx)
}

// sweepWith is the manual path: waits for a running sweep instead of
// skipping, so "Sync Now" always reports a real result.
func (e *SyncEngine) sweepWith(ctx context.Context) (SweepResult, error) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	return e.runSweep(ctx)
}

// runSweep processes all pending candidates. Caller holds sweepMu.
func (e *SyncEngine) runSweep(ctx context.Context) (SweepResult, error) {
	e.inProgress.Store(true)
	defer e.inProgress.Store(false)

	var result SweepResult

	pending, err := e.store.GetPending()
	if err != nil {
		e.recordError(err)
		return result, serr.Wrap(err, "failed to load pending notes")
	}

	for _, note := range pending {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if e.syncNote(ctx, note.ID) {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	e.statusMu.Lock()
	e.lastSweep = time.Now()
	e.lastError = nil
	e.statusMu.Unlock()

	if result.Synced > 0 || result.Failed > 0 {
		logger.Info("Sync sweep completed", "synced", result.Synced, "failed", result.Failed)
	}
	return result, nil
}

// RetryNote manually re-queues a failed note and attempts it immediately.
// This is the only path out of the terminal failed state besides deletion.
func (e *SyncEngine) RetryNote(ctx context.Context, id string) error {
	note, err := e.store.GetOne(id)
	if err != nil {
		return serr.Wrap(err, "failed to look up note for retry")
	}
	if note == nil {
		return ErrNoteNotFound
	}
	if note.SyncStatus != StatusFailed {
		return serr.New("only failed notes can be manually retried")
	}

	// Re-queue without touching the retry count: a failed manual attempt
	// increments from where the note left off and lands back at failed
	if err := e.store.UpdateStatus(id, StatusPending); err != nil {
		return serr.Wrap(err, "failed to re-queue note")
	}

	if !e.syncNote(ctx, id) {
		return serr.New("retry attempt failed")
	}
	return nil
}

// syncNote runs one remote-create attempt for the note with the given id.
// Returns true when the note ended up synced (and evicted locally).
//
// The id is re-resolved against the store at every mutation point: before
// marking syncing, after a successful create, and after a failed create.
// This is the race guard for a user delete running concurrently with the
// in-flight request.
func (e *SyncEngine) syncNote(ctx context.Context, id string) bool {
	// Re-check the note still exists (guards a concurrent delete)
	note, err := e.store.GetOne(id)
	if err != nil || note == nil {
		return false
	}

	if err := e.store.UpdateStatus(id, StatusSyncing); err != nil {
		// Illegal transition means another attempt already holds this note
		logger.Debug("Skipping sync attempt", "note_id", id, "reason", err.Error())
		return false
	}

	created, err := e.remote.CreateNote(ctx, note.NotePayload)
	if err == nil {
		// Success — but respect a delete that raced the request
		current, lookupErr := e.store.GetOne(id)
		if lookupErr != nil || current == nil {
			logger.Debug("Note deleted during sync, skipping removal", "note_id", id)
			return true
		}

		if err := e.store.Remove(id); err != nil {
			logger.LogErr(err, "failed to evict synced note", "note_id", id)
		}

		e.bus.Publish(Event{Name: EventNoteSynced, NoteID: id})
		logger.Info("Note synced", "local_id", id, "server_id", created.ID)
		return true
	}

	// Failure — re-check existence before writing any status
	current, lookupErr := e.store.GetOne(id)
	if lookupErr != nil || current == nil {
		logger.Debug("Note deleted during sync, skipping status update", "note_id", id)
		return false
	}

	newRetryCount := current.RetryCount + 1
	if newRetryCount >= e.config.MaxAttempts() {
		// Terminal until the user manually retries or deletes
		if err := e.store.UpdateStatus(id, StatusFailed, newRetryCount); err != nil {
			logger.LogErr(err, "failed to mark note failed", "note_id", id)
		}
		logger.Info("Note sync exhausted retries", "note_id", id, "attempts", newRetryCount)
		return false
	}

	if err := e.store.UpdateStatus(id, StatusPending, newRetryCount); err != nil {
		logger.LogErr(err, "failed to re-queue note", "note_id", id)
		return false
	}

	delay := e.config.RetryDelays[newRetryCount-1]
	e.scheduleRetry(id, delay)
	logger.Info("Note sync failed, retry scheduled",
		"note_id", id, "retry_count", newRetryCount, "delay", delay.String())
	return false
}

// scheduleRetry arms a deferred re-attempt for one note. An already
// scheduled retry for the same id is replaced rather than stacked.
func (e *SyncEngine) scheduleRetry(id string, delay time.Duration) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()

	if existing, ok := e.timers[id]; ok {
		existing.Stop()
	}

	e.timers[id] = time.AfterFunc(delay, func() {
		e.timersMu.Lock()
		delete(e.timers, id)
		e.timersMu.Unlock()

		if !e.enabled.Load() {
			return
		}
		e.syncNote(e.baseCtx, id)
	})
}

// ScheduledRetries reports how many per-note retries are currently armed.
func (e *SyncEngine) ScheduledRetries() int {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	return len(e.timers)
}

// recordError keeps the most recent sweep error for status display.
func (e *SyncEngine) recordError(err error) {
	e.statusMu.Lock()
	e.lastError = err
	e.statusMu.Unlock()
}
