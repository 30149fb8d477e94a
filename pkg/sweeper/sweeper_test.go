// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAgent struct {
	deletes []string
	fail    bool
}

func (a *recordingAgent) CopyFile(ctx context.Context, srcFs, srcRemote, dstFs, dstRemote string) (int64, error) {
	return 0, nil
}

func (a *recordingAgent) SyncCopy(ctx context.Context, srcFs, dstFs string) (int64, error) {
	return 0, nil
}

func (a *recordingAgent) JobStatus(ctx context.Context, jobID int64) (map[string]any, error) {
	return nil, nil
}

func (a *recordingAgent) CoreStats(ctx context.Context, group string) (map[string]any, error) {
	return nil, nil
}

func (a *recordingAgent) ConfigCreate(ctx context.Context, name, remoteType string, parameters map[string]any) error {
	return nil
}

func (a *recordingAgent) DeleteFile(ctx context.Context, fs, remote string) error {
	if a.fail {
		return common.E(common.KindTransferAgent, "agent down")
	}
	a.deletes = append(a.deletes, fs+remote)
	return nil
}

func (a *recordingAgent) About(ctx context.Context, fs string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (a *recordingAgent) Stat(ctx context.Context, fs, remote string) (map[string]any, error) {
	return map[string]any{"Path": remote}, nil
}

func seedStorage(t *testing.T, cat *catalog.Memory, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := cat.InsertStorage(context.Background(), &common.Storage{
		StorageID:        id,
		LocationID:       uuid.NewString(),
		StorageName:      name,
		StorageType:      "objectstore",
		StorageInterface: "s3",
		StoragePhase:     common.PhaseGas,
		StorageAvailable: true,
		StorageDate:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func seedItem(t *testing.T, cat *catalog.Memory, state common.ItemState, storageID, uri string, expiration time.Time) *common.DataItem {
	t.Helper()
	now := time.Now().UTC().Add(-time.Hour)
	item := &common.DataItem{
		OID: uuid.NewString(), UID: uuid.NewString(), ItemVersion: 1,
		ItemName: "scan.ms", ItemType: common.ItemTypeFile,
		StorageID: storageID, URI: uri, ItemState: state,
		UIDPhase: common.PhaseGas, OIDPhase: common.PhaseGas,
		UIDCreation: now, UIDExpiration: expiration,
		OIDCreation: now, OIDExpiration: common.EndOfCentury,
		Expired: state == common.StateExpired,
	}
	_, err := cat.InsertDataItem(context.Background(), item)
	require.NoError(t, err)
	return item
}

func TestSweepExpiresElapsedReadyCopies(t *testing.T) {
	cat := catalog.NewMemory()
	agent := &recordingAgent{}
	s := New(cat, agent, adapters.NewNoOpLogger(), 0)
	ctx := context.Background()

	storageID := seedStorage(t, cat, "vault")
	elapsed := seedItem(t, cat, common.StateReady, storageID, "obs/old.ms", time.Now().UTC().Add(-time.Minute))
	fresh := seedItem(t, cat, common.StateReady, storageID, "obs/new.ms", time.Now().UTC().Add(time.Hour))

	require.NoError(t, s.Tick(ctx))

	// Elapsed copy is expired and its payload deleted in the same tick.
	rows, err := cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", elapsed.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateDeleted, rows[0].ItemState)
	assert.True(t, rows[0].Expired)
	assert.True(t, rows[0].Deleted)
	require.NotNil(t, rows[0].UIDDeletion)
	assert.Equal(t, []string{"vault:obs/old.ms"}, agent.deletes)

	rows, err = cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", fresh.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateReady, rows[0].ItemState)

	assert.False(t, s.LastTick().IsZero())
}

func TestSweepDefersDeletionWhileAgentDown(t *testing.T) {
	cat := catalog.NewMemory()
	agent := &recordingAgent{fail: true}
	s := New(cat, agent, adapters.NewNoOpLogger(), 0)
	ctx := context.Background()

	storageID := seedStorage(t, cat, "vault")
	item := seedItem(t, cat, common.StateReady, storageID, "obs/old.ms", time.Now().UTC().Add(-time.Minute))

	require.NoError(t, s.Tick(ctx))
	rows, err := cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateExpired, rows[0].ItemState)
	assert.False(t, rows[0].Deleted)

	// Agent recovers; the next tick completes the deletion.
	agent.fail = false
	require.NoError(t, s.Tick(ctx))
	rows, err = cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateDeleted, rows[0].ItemState)
	assert.True(t, rows[0].Deleted)
}

func TestSweepSkipsPayloadlessCopies(t *testing.T) {
	cat := catalog.NewMemory()
	agent := &recordingAgent{}
	s := New(cat, agent, adapters.NewNoOpLogger(), 0)
	ctx := context.Background()

	storageID := seedStorage(t, cat, "vault")
	item := seedItem(t, cat, common.StateExpired, storageID, common.InlineURISentinel, time.Now().UTC().Add(-time.Minute))

	require.NoError(t, s.Tick(ctx))
	rows, err := cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateDeleted, rows[0].ItemState)
	assert.Empty(t, agent.deletes)
}

func TestSweepHandlesOrphanedCopies(t *testing.T) {
	cat := catalog.NewMemory()
	agent := &recordingAgent{}
	s := New(cat, agent, adapters.NewNoOpLogger(), 0)
	ctx := context.Background()

	// The backend row is gone; the copy is retired without an agent call.
	item := seedItem(t, cat, common.StateExpired, "", "obs/old.ms", time.Now().UTC().Add(-time.Minute))

	require.NoError(t, s.Tick(ctx))
	rows, err := cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateDeleted, rows[0].ItemState)
	assert.Empty(t, agent.deletes)
}

func TestSweepIsIdempotent(t *testing.T) {
	cat := catalog.NewMemory()
	agent := &recordingAgent{}
	s := New(cat, agent, adapters.NewNoOpLogger(), 0)
	ctx := context.Background()

	storageID := seedStorage(t, cat, "vault")
	seedItem(t, cat, common.StateReady, storageID, "obs/old.ms", time.Now().UTC().Add(-time.Minute))

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.Tick(ctx))

	// The payload is deleted exactly once.
	assert.Equal(t, []string{"vault:obs/old.ms"}, agent.deletes)
}
