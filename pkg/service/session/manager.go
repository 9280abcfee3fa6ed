// Recoverd
// Copyright (c) 2025 The Recoverd Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Recoverd.
//
// Recoverd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Recoverd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Recoverd.  If not, see <http://www.gnu.org/licenses/>.

// Package session owns the two process-wide registries: live engine
// contexts and recovery sessions. Each registry has its own lock and no
// lock is ever held across an engine call, so a slow carve can't block
// unrelated registry operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/notifications"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidContextID  = errors.New("Invalid context ID")
	ErrInvalidRecoveryID = errors.New("Invalid recovery ID")
)

// ErrActiveSessions is the refusal returned by a non-forced shutdown
// while recoveries are still running.
type ErrActiveSessions struct {
	Count int
}

func (e *ErrActiveSessions) Error() string {
	return fmt.Sprintf("cannot shut down: %d recovery session(s) still active", e.Count)
}

const janitorInterval = time.Minute

// Manager owns both registries and spawns one worker goroutine per
// accepted recovery.
type Manager struct {
	engine    engine.Engine
	cfg       *config.Instance
	history   database.HistoryDBI
	ns        chan<- models.Notification
	clock     clockwork.Clock
	startedAt time.Time

	contexts map[string]engine.Context
	ctxMu    syncutil.RWMutex

	sessions map[string]*Session
	sesMu    syncutil.RWMutex
}

// NewManager wires a Manager. history and ns may be nil in tests; the
// manager skips persistence and notifications when they are.
func NewManager(
	eng engine.Engine,
	cfg *config.Instance,
	history database.HistoryDBI,
	ns chan<- models.Notification,
) *Manager {
	return newManagerWithClock(eng, cfg, history, ns, clockwork.NewRealClock())
}

// NewManagerWithClock is NewManager with an injected clock for tests.
func NewManagerWithClock(
	eng engine.Engine,
	cfg *config.Instance,
	history database.HistoryDBI,
	ns chan<- models.Notification,
	clock clockwork.Clock,
) *Manager {
	return newManagerWithClock(eng, cfg, history, ns, clock)
}

func newManagerWithClock(
	eng engine.Engine,
	cfg *config.Instance,
	history database.HistoryDBI,
	ns chan<- models.Notification,
	clock clockwork.Clock,
) *Manager {
	return &Manager{
		engine:    eng,
		cfg:       cfg,
		history:   history,
		ns:        ns,
		clock:     clock,
		startedAt: clock.Now(),
		contexts:  make(map[string]engine.Context),
		sessions:  make(map[string]*Session),
	}
}

// NewContext initializes a fresh engine context and registers it. Empty
// args default to the program name so the engine always sees an argv.
func (m *Manager) NewContext(params engine.InitParams) (string, error) {
	if len(params.Args) == 0 {
		params.Args = []string{config.AppName}
	}
	if params.OutputDir == "" {
		params.OutputDir = m.cfg.OutputDir()
	}

	engCtx, err := m.engine.NewContext(params)
	if err != nil {
		return "", fmt.Errorf("failed to initialize recovery engine: %w", err)
	}

	m.ctxMu.Lock()
	id := NewContextID()
	// the random ID space makes collisions implausible, but an insert
	// must never silently replace a live context
	for {
		if _, exists := m.contexts[id]; !exists {
			break
		}
		id = NewContextID()
	}
	m.contexts[id] = engCtx
	m.ctxMu.Unlock()

	log.Info().Str("context_id", id).Msg("engine context created")
	return id, nil
}

// Context looks up a live engine context by ID.
func (m *Manager) Context(id string) (engine.Context, error) {
	m.ctxMu.RLock()
	defer m.ctxMu.RUnlock()
	engCtx, ok := m.contexts[id]
	if !ok {
		return nil, ErrInvalidContextID
	}
	return engCtx, nil
}

// ValidContext reports whether the ID names a live context.
func (m *Manager) ValidContext(id string) bool {
	m.ctxMu.RLock()
	defer m.ctxMu.RUnlock()
	_, ok := m.contexts[id]
	return ok
}

// DeleteContext removes the context from the registry and releases its
// engine handle. The engine close happens outside the registry lock.
// Sessions referencing the context are left in place; they hold their
// own reference and finish on their own terms.
func (m *Manager) DeleteContext(id string) error {
	m.ctxMu.Lock()
	engCtx, ok := m.contexts[id]
	if ok {
		delete(m.contexts, id)
	}
	m.ctxMu.Unlock()

	if !ok {
		return ErrInvalidContextID
	}

	if err := engCtx.Close(); err != nil {
		log.Warn().Err(err).Str("context_id", id).Msg("engine context close failed")
	}
	log.Info().Str("context_id", id).Msg("engine context deleted")
	return nil
}

// ContextCount returns the number of live contexts.
func (m *Manager) ContextCount() int {
	m.ctxMu.RLock()
	defer m.ctxMu.RUnlock()
	return len(m.contexts)
}

// StartParams is a start-recovery request after validation.
type StartParams struct {
	ContextID      string
	Device         string
	RecoveryDir    string
	Options        engine.Options
	EnabledTypes   []string
	DisabledTypes  []string
	PartitionOrder int
	CarveFreeSpace bool
	ModeExt2       bool
}

// StartRecovery registers a new session and spawns its worker. The
// worker performs all engine calls, so a bad device fails the session
// asynchronously rather than failing this call.
func (m *Manager) StartRecovery(params StartParams) (string, error) {
	engCtx, err := m.Context(params.ContextID)
	if err != nil {
		return "", err
	}

	recoveryDir := params.RecoveryDir
	if recoveryDir == "" {
		recoveryDir = m.cfg.OutputDir()
	}

	sess := &Session{
		engineCtx:   engCtx,
		done:        make(chan struct{}),
		contextID:   params.ContextID,
		device:      params.Device,
		recoveryDir: recoveryDir,
		statusText:  "Starting recovery",
		running:     true,
		startedAt:   m.clock.Now(),
	}

	// admission and insert share one critical section so two racing
	// starts can never both slip under the cap
	m.sesMu.Lock()
	if maxSessions := m.cfg.MaxSessions(); maxSessions > 0 {
		active := 0
		for _, existing := range m.sessions {
			if existing.Running() {
				active++
			}
		}
		if active >= maxSessions {
			m.sesMu.Unlock()
			return "", fmt.Errorf("recovery session limit reached (%d active)", active)
		}
	}
	sess.id = NewRecoveryID()
	for {
		if _, exists := m.sessions[sess.id]; !exists {
			break
		}
		sess.id = NewRecoveryID()
	}
	m.sessions[sess.id] = sess
	m.sesMu.Unlock()

	log.Info().
		Str("recovery_id", sess.id).
		Str("context_id", params.ContextID).
		Str("device", params.Device).
		Int("partition_order", params.PartitionOrder).
		Msg("recovery session created")

	go m.recoveryWorker(sess, params)

	if m.ns != nil {
		notifications.RecoveryStarted(m.ns, models.RecoveryStartedParams{
			RecoveryID: sess.id,
			ContextID:  params.ContextID,
			Device:     params.Device,
		})
	}

	return sess.id, nil
}

// recoveryWorker drives one recovery from configuration through the
// blocking engine run to the terminal state. It is the only goroutine
// that writes the session's progress fields.
func (m *Manager) recoveryWorker(sess *Session, params StartParams) {
	defer close(sess.done)

	engCtx := sess.engineCtx

	if err := engCtx.ChangeOptions(params.Options); err != nil {
		m.finishFailed(sess, "Failed to apply recovery options: "+err.Error())
		return
	}
	if len(params.EnabledTypes) > 0 || len(params.DisabledTypes) > 0 {
		if err := engCtx.ChangeFileOpts(params.EnabledTypes, params.DisabledTypes); err != nil {
			m.finishFailed(sess, "Failed to apply file format selection: "+err.Error())
			return
		}
	}

	disk, err := engCtx.ChangeDisk(params.Device)
	if err != nil {
		m.finishFailed(sess, "Failed to access device: "+params.Device)
		return
	}
	sess.setTotalSize(disk.Size)
	log.Info().Str("recovery_id", sess.id).Uint64("disk_size", disk.Size).Msg("target disk selected")

	if params.PartitionOrder >= 0 {
		part, partErr := engCtx.ChangePart(params.PartitionOrder, params.ModeExt2, params.CarveFreeSpace)
		if partErr != nil {
			m.finishFailed(sess, fmt.Sprintf("Failed to access partition: %d", params.PartitionOrder))
			return
		}
		sess.setTotalSize(part.Size)
		log.Info().Str("recovery_id", sess.id).Uint64("partition_size", part.Size).Msg("target partition selected")
	}

	if err := engCtx.ChangeOutputDir(sess.recoveryDir); err != nil {
		m.finishFailed(sess, "Failed to set recovery directory: "+err.Error())
		return
	}

	sess.setProgress("Finding optimal block alignment", 0, 0)

	log.Info().Str("recovery_id", sess.id).Str("recovery_dir", sess.recoveryDir).Msg("starting engine run")
	exitCode, runErr := engCtx.Run()
	if runErr != nil {
		m.finishFailed(sess, "Recovery worker error: "+runErr.Error())
		return
	}

	stats, statsErr := engCtx.Statistics()
	if statsErr != nil {
		log.Warn().Err(statsErr).Str("recovery_id", sess.id).Msg("failed to read final statistics")
		stats = nil
	}

	sess.complete(exitCode, stats, m.clock.Now())

	if exitCode == 0 {
		log.Info().Str("recovery_id", sess.id).Msg("recovery completed successfully")
	} else {
		log.Warn().Str("recovery_id", sess.id).Int("exit_code", exitCode).Msg("recovery completed with errors")
	}

	m.finalize(sess)
}

func (m *Manager) finishFailed(sess *Session, message string) {
	sess.fail(message, m.clock.Now())
	log.Error().Str("recovery_id", sess.id).Msg(message)
	m.finalize(sess)
}

// finalize persists the terminal session to history and notifies
// subscribers. Runs on the worker goroutine after the terminal state is
// already observable.
func (m *Manager) finalize(sess *Session) {
	snapshot := sess.Snapshot()

	if m.history != nil {
		_, finishedAt := sess.finished()
		record := database.RecoveryRecord{
			RecoveryID:     sess.id,
			ContextID:      sess.contextID,
			Device:         sess.device,
			RecoveryDir:    sess.recoveryDir,
			StatusText:     snapshot.StatusText,
			ErrorMessage:   snapshot.ErrorMessage,
			FilesRecovered: snapshot.FilesRecovered,
			ExitCode:       sess.exitCode,
			StartedAt:      sess.startedAt,
			FinishedAt:     finishedAt,
		}
		if err := m.history.AddRecovery(record); err != nil {
			log.Warn().Err(err).Str("recovery_id", sess.id).Msg("failed to persist recovery history")
		}
	}

	if m.ns != nil {
		notifications.RecoveryCompleted(m.ns, models.RecoveryCompletedParams{
			RecoveryID:     sess.id,
			StatusText:     snapshot.StatusText,
			ErrorMessage:   snapshot.ErrorMessage,
			FilesRecovered: snapshot.FilesRecovered,
		})
	}
}

// Session looks up a recovery session by ID.
func (m *Manager) Session(id string) (*Session, error) {
	m.sesMu.RLock()
	defer m.sesMu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrInvalidRecoveryID
	}
	return sess, nil
}

// Status returns the poll snapshot for one session. Polling a session
// that is still running is a normal, successful response; a running
// session's counters are refreshed from the engine before the snapshot
// is taken.
func (m *Manager) Status(id string) (models.RecoveryStatus, error) {
	sess, err := m.Session(id)
	if err != nil {
		return models.RecoveryStatus{}, err
	}
	sess.refreshProgress()
	return sess.Snapshot(), nil
}

// StopRecovery requests an advisory abort and waits for the worker to
// finish. Stopping a session that already reached a terminal state, or
// one another stop is already tearing down, returns without aborting
// the context or emitting a stopped notification.
func (m *Manager) StopRecovery(id string) error {
	sess, err := m.Session(id)
	if err != nil {
		return err
	}

	if !sess.stopRequested() {
		<-sess.done
		return nil
	}

	sess.engineCtx.Abort()
	<-sess.done

	if m.ns != nil {
		notifications.RecoveryStopped(m.ns, id)
	}

	log.Info().Str("recovery_id", id).Msg("recovery stopped")
	return nil
}

// ActiveSessionCount returns the number of sessions still running.
func (m *Manager) ActiveSessionCount() int {
	m.sesMu.RLock()
	defer m.sesMu.RUnlock()
	count := 0
	for _, sess := range m.sessions {
		if sess.Running() {
			count++
		}
	}
	return count
}

// SessionCount returns the total number of registered sessions,
// running or finished.
func (m *Manager) SessionCount() int {
	m.sesMu.RLock()
	defer m.sesMu.RUnlock()
	return len(m.sessions)
}

// EngineVersion reports the version string of the wired engine.
func (m *Manager) EngineVersion() string {
	return m.engine.Version()
}

// Uptime is how long this manager has been alive.
func (m *Manager) Uptime() time.Duration {
	return m.clock.Since(m.startedAt)
}

// Drain aborts every running session and waits for all workers. Used by
// the forced shutdown path. The registry lock is held only for the scan,
// never across the joins.
func (m *Manager) Drain() error {
	m.sesMu.RLock()
	running := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if sess.Running() {
			running = append(running, sess)
		}
	}
	m.sesMu.RUnlock()

	if len(running) == 0 {
		return nil
	}

	log.Info().Int("count", len(running)).Msg("aborting active recovery sessions")

	var group errgroup.Group
	for _, sess := range running {
		sess := sess
		group.Go(func() error {
			sess.stopRequested()
			sess.engineCtx.Abort()
			<-sess.done
			return nil
		})
	}
	return group.Wait()
}

// Shutdown refuses with the active count unless forced. When it
// proceeds, every running session is aborted and joined before return.
func (m *Manager) Shutdown(force bool) (int, error) {
	active := m.ActiveSessionCount()
	if active > 0 && !force {
		return active, &ErrActiveSessions{Count: active}
	}

	if err := m.Drain(); err != nil {
		return active, err
	}
	return active, nil
}

// Close releases every engine context. Call after Drain during final
// service teardown.
func (m *Manager) Close() {
	m.ctxMu.Lock()
	contexts := m.contexts
	m.contexts = make(map[string]engine.Context)
	m.ctxMu.Unlock()

	for id, engCtx := range contexts {
		if err := engCtx.Close(); err != nil {
			log.Warn().Err(err).Str("context_id", id).Msg("engine context close failed")
		}
	}
}

// StartJanitor evicts finished sessions older than the configured
// retention. A zero retention keeps sessions until their context goes
// away, matching the accumulate-forever behavior of short-lived runs.
func (m *Manager) StartJanitor(ctx context.Context) {
	go func() {
		ticker := m.clock.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				m.evictExpired()
			}
		}
	}()
}

func (m *Manager) evictExpired() {
	retentionMins := m.cfg.SessionRetentionMins()
	if retentionMins <= 0 {
		return
	}
	cutoff := m.clock.Now().Add(-time.Duration(retentionMins) * time.Minute)

	m.sesMu.Lock()
	defer m.sesMu.Unlock()
	for id, sess := range m.sessions {
		completed, finishedAt := sess.finished()
		if completed && finishedAt.Before(cutoff) {
			delete(m.sessions, id)
			log.Debug().Str("recovery_id", id).Msg("evicted expired recovery session")
		}
	}
}
