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

package methods

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/api/models/requests"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/RecoverdProject/recoverd-core/pkg/database"
	"github.com/RecoverdProject/recoverd-core/pkg/engine"
	"github.com/RecoverdProject/recoverd-core/pkg/service/session"
	"github.com/RecoverdProject/recoverd-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	eng      *mocks.MockEngine
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	eng := mocks.NewMockEngine()
	mgr := session.NewManager(eng, cfg, nil, nil)
	t.Cleanup(mgr.Close)
	return &testEnv{eng: eng, sessions: mgr}
}

func (e *testEnv) request(params string) requests.RequestEnv {
	return requests.RequestEnv{
		Sessions: e.sessions,
		Params:   []byte(params),
	}
}

func (e *testEnv) newContext(t *testing.T) string {
	t.Helper()
	ctxID, err := e.sessions.NewContext(engine.InitParams{})
	require.NoError(t, err)
	return ctxID
}

func waitRecoveryComplete(t *testing.T, mgr *session.Manager, recID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := mgr.Status(recID)
		return err == nil && status.IsComplete
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleContextsNew(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleContextsNew(env.request(""))
	require.NoError(t, err)
	resp, ok := result.(models.NewContextResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.True(t, session.IsContextID(resp.ContextID))
	assert.Empty(t, resp.ErrorMessage)
}

func TestHandleContextsNewEngineFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.eng.NewContextErr = errors.New("device busy")

	result, err := HandleContextsNew(env.request(""))
	require.NoError(t, err)
	resp, ok := result.(models.NewContextResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "device busy")
	assert.Empty(t, resp.ContextID)
}

func TestHandleContextsDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleContextsDelete(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.DeleteContextResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)

	// second delete reports the lookup failure in the payload
	result, err = HandleContextsDelete(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok = result.(models.DeleteContextResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid context ID", resp.ErrorMessage)
}

func TestHandleContextsDeleteMissingParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleContextsDelete(env.request(`{}`))
	require.NoError(t, err)
	resp, ok := result.(models.DeleteContextResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHandleContextsAddImage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleContextsAddImage(env.request(
		`{"contextId":"` + ctxID + `","imageFile":"/tmp/disk.img"}`))
	require.NoError(t, err)
	resp, ok := result.(models.AddImageResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Disk)
	assert.Equal(t, "/tmp/disk.img", resp.Disk.Device)
}

func TestHandleContextsAddImageRelativePath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleContextsAddImage(env.request(
		`{"contextId":"` + ctxID + `","imageFile":"disk.img"}`))
	require.NoError(t, err)
	resp, ok := result.(models.AddImageResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHandleDisks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleDisks(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.DisksResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.Len(t, resp.Disks, 1)
	assert.Equal(t, "/dev/sda", resp.Disks[0].Device)
}

func TestHandleDisksUnknownContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleDisks(env.request(`{"contextId":"ctx_0000000000000000"}`))
	require.NoError(t, err)
	resp, ok := result.(models.DisksResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid context ID", resp.ErrorMessage)
}

func TestHandleDisksPartitions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleDisksPartitions(env.request(
		`{"contextId":"` + ctxID + `","device":"/dev/sda"}`))
	require.NoError(t, err)
	resp, ok := result.(models.PartitionsResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.Len(t, resp.Partitions, 1)
	assert.Equal(t, 1, resp.Partitions[0].Order)
	assert.Equal(t, "ext4", resp.Partitions[0].FSType)
}

func TestHandleDisksPartitionsUnknownDevice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleDisksPartitions(env.request(
		`{"contextId":"` + ctxID + `","device":"/dev/nosuch"}`))
	require.NoError(t, err)
	resp, ok := result.(models.PartitionsResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "/dev/nosuch")
}

func TestHandleArchs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleArchs(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.ArchsResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Archs, "intel")
}

func TestHandleArchsSet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleArchsSet(env.request(
		`{"contextId":"` + ctxID + `","arch":"gpt"}`))
	require.NoError(t, err)
	resp, ok := result.(models.SetArchResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.Equal(t, "gpt", resp.Arch)

	result, err = HandleArchsSet(env.request(
		`{"contextId":"` + ctxID + `","arch":"amiga"}`))
	require.NoError(t, err)
	resp, ok = result.(models.SetArchResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "amiga")
}

func TestHandleFileOpts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleFileOpts(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.FileOptsResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.Len(t, resp.FileOptions, 3)
	assert.Equal(t, "jpg", resp.FileOptions[0].Extension)
}

func TestHandleOptionsSet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleOptionsSet(env.request(`{"contextId":"` + ctxID + `","options":` +
		`{"paranoidMode":1,"keepCorruptedFiles":true,"enabledFileTypes":["jpg"]}}`))
	require.NoError(t, err)
	resp, ok := result.(models.SetOptionsResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)

	created := env.eng.Contexts()
	require.Len(t, created, 1)
	opts := created[0].Options()
	assert.Equal(t, 1, opts.Paranoid)
	assert.True(t, opts.KeepCorruptedFile)
}

func TestHandleOptionsSetParanoidOutOfRange(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleOptionsSet(env.request(
		`{"contextId":"` + ctxID + `","options":{"paranoidMode":5}}`))
	require.NoError(t, err)
	resp, ok := result.(models.SetOptionsResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHandleRecoveriesStartAndStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleRecoveriesStart(env.request(
		`{"contextId":"` + ctxID + `","device":"/dev/sda","partitionOrder":-1}`))
	require.NoError(t, err)
	startResp, ok := result.(models.StartRecoveryResponse)
	require.True(t, ok)
	require.True(t, startResp.Success, startResp.ErrorMessage)
	assert.True(t, session.IsRecoveryID(startResp.RecoveryID))

	waitRecoveryComplete(t, env.sessions, startResp.RecoveryID)

	result, err = HandleRecoveriesStatus(env.request(
		`{"recoveryId":"` + startResp.RecoveryID + `"}`))
	require.NoError(t, err)
	statusResp, ok := result.(models.RecoveryStatusResponse)
	require.True(t, ok)
	assert.True(t, statusResp.Success)
	require.NotNil(t, statusResp.Status)
	assert.True(t, statusResp.Status.IsComplete)
	assert.Equal(t, "Completed successfully", statusResp.Status.StatusText)
}

func TestHandleRecoveriesStartMissingDevice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleRecoveriesStart(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.StartRecoveryResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHandleRecoveriesStatusUnknownID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleRecoveriesStatus(env.request(`{"recoveryId":"rec_0000000000000000"}`))
	require.NoError(t, err)
	resp, ok := result.(models.RecoveryStatusResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid recovery ID", resp.ErrorMessage)
}

func TestHandleRecoveriesStop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.eng.RunBlocks = true
	ctxID := env.newContext(t)

	result, err := HandleRecoveriesStart(env.request(
		`{"contextId":"` + ctxID + `","device":"/dev/sda","partitionOrder":-1}`))
	require.NoError(t, err)
	startResp, ok := result.(models.StartRecoveryResponse)
	require.True(t, ok)
	require.True(t, startResp.Success, startResp.ErrorMessage)

	result, err = HandleRecoveriesStop(env.request(
		`{"recoveryId":"` + startResp.RecoveryID + `"}`))
	require.NoError(t, err)
	stopResp, ok := result.(models.StopRecoveryResponse)
	require.True(t, ok)
	assert.True(t, stopResp.Success)

	waitRecoveryComplete(t, env.sessions, startResp.RecoveryID)
}

func TestHandleRecoveriesStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	created := env.eng.Contexts()
	require.Len(t, created, 1)
	created[0].SetStatistics(engine.Statistics{
		Phase:          "Recovering lost files",
		FilesRecovered: 42,
	})

	result, err := HandleRecoveriesStats(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok := result.(models.StatisticsResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Statistics)
	assert.Equal(t, uint(42), resp.Statistics.FilesRecovered)
}

type fakeHistoryDB struct {
	records []database.RecoveryRecord
	getErr  error
}

func (*fakeHistoryDB) AddRecovery(database.RecoveryRecord) error { return nil }

func (f *fakeHistoryDB) GetRecoveries(limit int) ([]database.RecoveryRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

func (*fakeHistoryDB) CleanupRecoveries(int) (int64, error) { return 0, nil }
func (*fakeHistoryDB) Close() error                         { return nil }

func TestHandleRecoveriesHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := env.request("")
	req.Database = &database.Database{HistoryDB: &fakeHistoryDB{
		records: []database.RecoveryRecord{
			{
				RecoveryID:     "rec_00000000000000aa",
				ContextID:      "ctx_00000000000000aa",
				Device:         "/dev/sda",
				StatusText:     "Completed successfully",
				FilesRecovered: 7,
			},
		},
	}}

	result, err := HandleRecoveriesHistory(req)
	require.NoError(t, err)
	resp, ok := result.(models.HistoryResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "rec_00000000000000aa", resp.Entries[0].RecoveryID)
	assert.Equal(t, uint(7), resp.Entries[0].FilesRecovered)
}

func TestHandleRecoveriesHistoryUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleRecoveriesHistory(env.request(""))
	require.NoError(t, err)
	resp, ok := result.(models.HistoryResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "recovery history is not available", resp.ErrorMessage)
}

func TestHandleRecoveriesHistoryReadError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := env.request("")
	req.Database = &database.Database{HistoryDB: &fakeHistoryDB{
		getErr: errors.New("disk I/O error"),
	}}

	result, err := HandleRecoveriesHistory(req)
	require.NoError(t, err)
	resp, ok := result.(models.HistoryResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, "failed to read recovery history", resp.ErrorMessage)
}

func TestHandleShutdown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	requested := false
	req := env.request(`{"reason":"maintenance"}`)
	req.RequestShutdown = func() { requested = true }

	result, err := HandleShutdown(req)
	require.NoError(t, err)
	resp, ok := result.(models.ShutdownResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.ActiveSessions)
	assert.True(t, requested)
}

func TestHandleShutdownRefusedWhileActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.eng.RunBlocks = true
	ctxID := env.newContext(t)

	result, err := HandleRecoveriesStart(env.request(
		`{"contextId":"` + ctxID + `","device":"/dev/sda","partitionOrder":-1}`))
	require.NoError(t, err)
	startResp, ok := result.(models.StartRecoveryResponse)
	require.True(t, ok)
	require.True(t, startResp.Success, startResp.ErrorMessage)

	requested := false
	req := env.request(`{}`)
	req.RequestShutdown = func() { requested = true }

	result, err = HandleShutdown(req)
	require.NoError(t, err)
	resp, ok := result.(models.ShutdownResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.ActiveSessions)
	assert.Contains(t, resp.ErrorMessage, "still active")
	assert.False(t, requested)

	// forced shutdown drains the running session
	req = env.request(`{"force":true}`)
	req.RequestShutdown = func() { requested = true }

	result, err = HandleShutdown(req)
	require.NoError(t, err)
	resp, ok = result.(models.ShutdownResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.True(t, requested)

	waitRecoveryComplete(t, env.sessions, startResp.RecoveryID)
}

func TestHandleHeartbeat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctxID := env.newContext(t)

	result, err := HandleHeartbeat(env.request(""))
	require.NoError(t, err)
	resp, ok := result.(models.HeartbeatResponse)
	require.True(t, ok)
	assert.True(t, resp.Alive)
	assert.Equal(t, 1, resp.ActiveContextCount)
	assert.Equal(t, 0, resp.ActiveRecoveryCount)
	assert.Nil(t, resp.ContextValid)

	result, err = HandleHeartbeat(env.request(`{"contextId":"` + ctxID + `"}`))
	require.NoError(t, err)
	resp, ok = result.(models.HeartbeatResponse)
	require.True(t, ok)
	require.NotNil(t, resp.ContextValid)
	assert.True(t, *resp.ContextValid)

	result, err = HandleHeartbeat(env.request(`{"contextId":"ctx_0000000000000000"}`))
	require.NoError(t, err)
	resp, ok = result.(models.HeartbeatResponse)
	require.True(t, ok)
	require.NotNil(t, resp.ContextValid)
	assert.False(t, *resp.ContextValid)
}

func TestHandleVersion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := HandleVersion(env.request(""))
	require.NoError(t, err)
	resp, ok := result.(models.VersionResponse)
	require.True(t, ok)
	assert.Equal(t, config.AppVersion, resp.Version)
	assert.Equal(t, runtime.GOOS, resp.Platform)
	assert.Equal(t, "mock", resp.Engine)
}
