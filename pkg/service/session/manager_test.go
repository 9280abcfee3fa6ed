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

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestConfig(t *testing.T) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

func newTestManager(t *testing.T, eng *mocks.MockEngine) *Manager {
	t.Helper()
	return NewManager(eng, newTestConfig(t), nil, nil)
}

func startSession(t *testing.T, m *Manager, ctxID string) string {
	t.Helper()
	recID, err := m.StartRecovery(StartParams{
		ContextID:      ctxID,
		Device:         "/dev/sda",
		PartitionOrder: -1,
	})
	require.NoError(t, err)
	return recID
}

func waitComplete(t *testing.T, m *Manager, recID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := m.Status(recID)
		return err == nil && status.IsComplete
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewContextDefaultsEmptyArgs(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	assert.True(t, IsContextID(ctxID))

	created := eng.Contexts()
	require.Len(t, created, 1)
	assert.Equal(t, []string{config.AppName}, created[0].InitParams().Args)
}

func TestNewContextEngineFailure(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.NewContextErr = errors.New("no disks found")
	m := newTestManager(t, eng)

	_, err := m.NewContext(engine.InitParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no disks found")
	assert.Equal(t, 0, m.ContextCount())
}

func TestDeleteContext(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	require.Equal(t, 1, m.ContextCount())

	require.NoError(t, m.DeleteContext(ctxID))
	assert.Equal(t, 0, m.ContextCount())
	assert.False(t, m.ValidContext(ctxID))

	// second delete reports the unknown id
	assert.ErrorIs(t, m.DeleteContext(ctxID), ErrInvalidContextID)
}

func TestRecoveryCompletesSuccessfully(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID := startSession(t, m, ctxID)
	assert.True(t, IsRecoveryID(recID))
	waitComplete(t, m, recID)

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.Equal(t, "Completed successfully", status.StatusText)
	assert.Empty(t, status.ErrorMessage)
	assert.Equal(t, uint64(8<<30), status.TotalSize)
	assert.Equal(t, 0, m.ActiveSessionCount())
}

func TestRecoveryCompletesWithErrors(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunExitCode = 2
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.Equal(t, "Completed with errors", status.StatusText)
	assert.Contains(t, status.ErrorMessage, "Recovery process returned error code: 2")
}

func TestRecoveryUnknownDevice(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.ChangeDiskErr = errors.New("device not found")
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID, err := m.StartRecovery(StartParams{
		ContextID:      ctxID,
		Device:         "/dev/nosuch",
		PartitionOrder: -1,
	})
	require.NoError(t, err, "a bad device fails the session, not the start call")
	waitComplete(t, m, recID)

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.Contains(t, status.ErrorMessage, "Failed to access device: /dev/nosuch")

	// the blocking engine run must never have started
	created := eng.Contexts()
	require.Len(t, created, 1)
	assert.Equal(t, 0, created[0].RunCalls())
}

func TestRecoveryUnknownPartition(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID, err := m.StartRecovery(StartParams{
		ContextID:      ctxID,
		Device:         "/dev/sda",
		PartitionOrder: 99,
	})
	require.NoError(t, err)
	waitComplete(t, m, recID)

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.Contains(t, status.ErrorMessage, "Failed to access partition: 99")
}

func TestStartRecoveryInvalidContext(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, mocks.NewMockEngine())

	_, err := m.StartRecovery(StartParams{
		ContextID:      "ctx_doesnotexist0000",
		Device:         "/dev/sda",
		PartitionOrder: -1,
	})
	assert.ErrorIs(t, err, ErrInvalidContextID)
}

func TestStatusInvalidRecoveryID(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, mocks.NewMockEngine())
	_, err := m.Status("rec_doesnotexist0000")
	assert.ErrorIs(t, err, ErrInvalidRecoveryID)
}

func TestStopRunningRecovery(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID := startSession(t, m, ctxID)
	require.Eventually(t, func() bool {
		created := eng.Contexts()
		return len(created) == 1 && created[0].RunCalls() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.StopRecovery(recID))

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.True(t, status.IsComplete)
	assert.True(t, eng.Contexts()[0].Aborted())
	assert.Equal(t, 0, m.ActiveSessionCount())
}

func TestStopTerminalRecoveryIsIdempotent(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)

	before, err := m.Status(recID)
	require.NoError(t, err)

	// stop on a finished session returns without blocking or mutation
	require.NoError(t, m.StopRecovery(recID))
	require.NoError(t, m.StopRecovery(recID))

	after, err := m.Status(recID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStopTerminalRecoveryEmitsNoNotification(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	ns := make(chan models.Notification, 16)
	m := NewManager(eng, newTestConfig(t), nil, ns)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)

	var methods []string
	require.Eventually(t, func() bool {
		for len(ns) > 0 {
			methods = append(methods, (<-ns).Method)
		}
		return len(methods) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NotContains(t, methods, models.NotificationRecoveryStopped)

	// stop after natural completion must not abort the context or
	// tell subscribers the session was stopped
	require.NoError(t, m.StopRecovery(recID))
	require.NoError(t, m.StopRecovery(recID))

	assert.Empty(t, ns)
	assert.False(t, eng.Contexts()[0].Aborted())
}

func TestStatusOffsetsMonotonic(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)

	require.Eventually(t, func() bool {
		created := eng.Contexts()
		return len(created) == 1 && created[0].RunCalls() == 1
	}, 2*time.Second, 5*time.Millisecond)
	engCtx := eng.Contexts()[0]

	// poll concurrently while the scripted counters advance
	var (
		observed []uint64
		pollErr  error
		wg       sync.WaitGroup
	)
	stopPolling := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stopPolling:
				return
			default:
			}
			status, statusErr := m.Status(recID)
			if statusErr != nil {
				pollErr = statusErr
				return
			}
			observed = append(observed, status.CurrentOffset)
		}
	}()

	for offset := uint64(1); offset <= 32; offset++ {
		engCtx.SetStatistics(engine.Statistics{
			Offset:         offset << 16,
			FilesRecovered: uint(offset),
		})
	}
	close(stopPolling)
	wg.Wait()
	require.NoError(t, pollErr)

	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.Equal(t, uint64(32<<16), status.CurrentOffset)

	// a stale engine read must not roll the reported offset back
	engCtx.SetStatistics(engine.Statistics{Offset: 4096})
	status, err = m.Status(recID)
	require.NoError(t, err)
	observed = append(observed, status.CurrentOffset)

	// the final statistics read at completion is stale too
	engCtx.SetStatistics(engine.Statistics{})
	engCtx.ReleaseRun()
	waitComplete(t, m, recID)

	status, err = m.Status(recID)
	require.NoError(t, err)
	observed = append(observed, status.CurrentOffset)
	assert.True(t, status.IsComplete)
	assert.Equal(t, uint64(32<<16), status.CurrentOffset)

	for i := 1; i < len(observed); i++ {
		require.GreaterOrEqual(t, observed[i], observed[i-1],
			"offset went backwards at poll %d", i)
	}
}

func TestConcurrentSessionsSameContext(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	rec1 := startSession(t, m, ctxID)
	rec2 := startSession(t, m, ctxID)
	assert.NotEqual(t, rec1, rec2)
	assert.Equal(t, 2, m.ActiveSessionCount())

	eng.ReleaseAll()
	waitComplete(t, m, rec1)
	waitComplete(t, m, rec2)
}

func TestMaxSessionsAdmission(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	cfg := newTestConfig(t)
	cfg.SetMaxSessions(1)
	m := NewManager(eng, cfg, nil, nil)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	recID := startSession(t, m, ctxID)

	_, err = m.StartRecovery(StartParams{
		ContextID:      ctxID,
		Device:         "/dev/sda",
		PartitionOrder: -1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session limit reached")

	require.NoError(t, m.StopRecovery(recID))

	// capacity is freed once the first session terminates
	_, err = m.StartRecovery(StartParams{
		ContextID:      ctxID,
		Device:         "/dev/sda",
		PartitionOrder: -1,
	})
	require.NoError(t, err)
	eng.ReleaseAll()
	require.Eventually(t, func() bool {
		return m.ActiveSessionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMaxSessionsConcurrentStarts(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	cfg := newTestConfig(t)
	cfg.SetMaxSessions(2)
	m := NewManager(eng, cfg, nil, nil)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	// racing starts must never be admitted past the cap
	const attempts = 8
	admitted := make(chan string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recID, startErr := m.StartRecovery(StartParams{
				ContextID:      ctxID,
				Device:         "/dev/sda",
				PartitionOrder: -1,
			})
			if startErr == nil {
				admitted <- recID
			}
		}()
	}
	wg.Wait()
	close(admitted)

	var ids []string
	for id := range admitted {
		ids = append(ids, id)
	}
	require.Len(t, ids, 2)
	assert.Equal(t, 2, m.ActiveSessionCount())

	eng.ReleaseAll()
	for _, id := range ids {
		waitComplete(t, m, id)
	}
}

func TestShutdownRefusesWithActiveSessions(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)

	active, err := m.Shutdown(false)
	require.Error(t, err)
	assert.Equal(t, 1, active)

	var activeErr *ErrActiveSessions
	require.ErrorAs(t, err, &activeErr)
	assert.Equal(t, 1, activeErr.Count)

	// the refusal changed nothing
	status, err := m.Status(recID)
	require.NoError(t, err)
	assert.False(t, status.IsComplete)
	assert.Equal(t, 1, m.ActiveSessionCount())

	require.NoError(t, m.StopRecovery(recID))
}

func TestForcedShutdownDrainsAllSessions(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	eng.RunBlocks = true
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = startSession(t, m, ctxID)
	}
	require.Equal(t, 3, m.ActiveSessionCount())

	active, err := m.Shutdown(true)
	require.NoError(t, err)
	assert.Equal(t, 3, active)
	assert.Equal(t, 0, m.ActiveSessionCount())

	for _, id := range ids {
		status, statusErr := m.Status(id)
		require.NoError(t, statusErr)
		assert.True(t, status.IsComplete)
	}
}

func TestShutdownWithNoSessions(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, mocks.NewMockEngine())
	active, err := m.Shutdown(false)
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestRunningCompletedMutuallyExclusive(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	m := newTestManager(t, eng)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)

	sess, err := m.Session(recID)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, statusErr := m.Status(recID)
		require.NoError(t, statusErr)
		if status.IsComplete {
			assert.False(t, sess.Running())
			return
		}
	}
	t.Fatal("session never completed")
}

func TestJanitorEvictsExpiredSessions(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	cfg := newTestConfig(t)
	cfg.SetSessionRetentionMins(5)
	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(eng, cfg, nil, nil, clock)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)
	require.Equal(t, 1, m.SessionCount())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx)

	// wait for the janitor's ticker to register before advancing
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool {
		return m.SessionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)

	_, err = m.Status(recID)
	assert.ErrorIs(t, err, ErrInvalidRecoveryID)
}

func TestJanitorZeroRetentionKeepsSessions(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	cfg := newTestConfig(t)
	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(eng, cfg, nil, nil, clock)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)

	m.evictExpired()
	assert.Equal(t, 1, m.SessionCount())

	_, err = m.Status(recID)
	assert.NoError(t, err, "completed sessions stay queryable without a retention policy")
}

type recordingHistory struct {
	mu      sync.Mutex
	records []database.RecoveryRecord
}

func (h *recordingHistory) AddRecovery(entry database.RecoveryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, entry)
	return nil
}

func (h *recordingHistory) GetRecoveries(_ int) ([]database.RecoveryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]database.RecoveryRecord, len(h.records))
	copy(out, h.records)
	return out, nil
}

func (*recordingHistory) CleanupRecoveries(_ int) (int64, error) { return 0, nil }
func (*recordingHistory) Close() error                           { return nil }

func TestFinishedRecoveryPersistedAndNotified(t *testing.T) {
	t.Parallel()

	eng := mocks.NewMockEngine()
	history := &recordingHistory{}
	ns := make(chan models.Notification, 16)
	m := NewManager(eng, newTestConfig(t), history, ns)
	defer m.Close()

	ctxID, err := m.NewContext(engine.InitParams{})
	require.NoError(t, err)
	recID := startSession(t, m, ctxID)
	waitComplete(t, m, recID)

	require.Eventually(t, func() bool {
		records, _ := history.GetRecoveries(10)
		return len(records) == 1
	}, 2*time.Second, 5*time.Millisecond)

	records, err := history.GetRecoveries(10)
	require.NoError(t, err)
	assert.Equal(t, recID, records[0].RecoveryID)
	assert.Equal(t, ctxID, records[0].ContextID)
	assert.Equal(t, "/dev/sda", records[0].Device)
	assert.Equal(t, "Completed successfully", records[0].StatusText)

	var methods []string
	for len(ns) > 0 {
		methods = append(methods, (<-ns).Method)
	}
	assert.Contains(t, methods, models.NotificationRecoveryStarted)
	assert.Contains(t, methods, models.NotificationRecoveryCompleted)
}

func TestUptimeAdvances(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(mocks.NewMockEngine(), newTestConfig(t), nil, nil, clock)

	clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, m.Uptime())
}
