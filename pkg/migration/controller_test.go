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

package migration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/ingest"
	"github.com/jeremyhahn/go-dlm/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAgent struct {
	nextJobID int64
	statuses  map[int64]map[string]any
	copies    []string
	deletes   []string
	down      bool
}

func newScriptedAgent() *scriptedAgent {
	return &scriptedAgent{statuses: make(map[int64]map[string]any)}
}

func (a *scriptedAgent) CopyFile(ctx context.Context, srcFs, srcRemote, dstFs, dstRemote string) (int64, error) {
	if a.down {
		return 0, common.E(common.KindTransferAgent, "agent down")
	}
	a.nextJobID++
	a.copies = append(a.copies, srcFs+srcRemote+" -> "+dstFs+dstRemote)
	a.statuses[a.nextJobID] = map[string]any{"finished": false}
	return a.nextJobID, nil
}

func (a *scriptedAgent) SyncCopy(ctx context.Context, srcFs, dstFs string) (int64, error) {
	return a.CopyFile(ctx, srcFs, "", dstFs, "")
}

func (a *scriptedAgent) JobStatus(ctx context.Context, jobID int64) (map[string]any, error) {
	if a.down {
		return nil, common.E(common.KindTransferAgent, "agent down")
	}
	return a.statuses[jobID], nil
}

func (a *scriptedAgent) CoreStats(ctx context.Context, group string) (map[string]any, error) {
	if a.down {
		return nil, common.E(common.KindTransferAgent, "agent down")
	}
	return map[string]any{"bytes": float64(4096)}, nil
}

func (a *scriptedAgent) ConfigCreate(ctx context.Context, name, remoteType string, parameters map[string]any) error {
	return nil
}

func (a *scriptedAgent) DeleteFile(ctx context.Context, fs, remote string) error {
	a.deletes = append(a.deletes, fs+remote)
	return nil
}

func (a *scriptedAgent) About(ctx context.Context, fs string) (map[string]any, error) {
	if a.down {
		return nil, common.E(common.KindTransferAgent, "agent down")
	}
	return map[string]any{"total": float64(1 << 40)}, nil
}

func (a *scriptedAgent) Stat(ctx context.Context, fs, remote string) (map[string]any, error) {
	if a.down {
		return nil, common.E(common.KindTransferAgent, "agent down")
	}
	return map[string]any{"Path": remote}, nil
}

func (a *scriptedAgent) finish(jobID int64, success bool) {
	a.statuses[jobID] = map[string]any{"finished": true, "success": success}
}

type fixture struct {
	cat        *catalog.Memory
	agent      *scriptedAgent
	controller *Controller
	reconciler *Reconciler
	sourceID   string
	destID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.NewMemory()
	agent := newScriptedAgent()
	logger := adapters.NewNoOpLogger()
	ing := ingest.NewService(cat, agent, metadata.NoOpSink{}, logger, 0)

	f := &fixture{
		cat:        cat,
		agent:      agent,
		controller: NewController(cat, agent, ing, logger),
		reconciler: NewReconciler(cat, agent, logger, time.Second),
	}

	f.sourceID = seedStorage(t, cat, "vault", common.PhaseLiquid)
	f.destID = seedStorage(t, cat, "archive", common.PhaseSolid)
	seedConfig(t, cat, f.sourceID)
	seedConfig(t, cat, f.destID)
	seedReadyItem(t, cat, f.sourceID, "obs/scan.ms", "scan.ms")
	return f
}

func seedStorage(t *testing.T, cat *catalog.Memory, name string, phase common.Phase) string {
	t.Helper()
	id := uuid.NewString()
	_, err := cat.InsertStorage(context.Background(), &common.Storage{
		StorageID:        id,
		LocationID:       uuid.NewString(),
		StorageName:      name,
		StorageType:      "objectstore",
		StorageInterface: "s3",
		StoragePhase:     phase,
		StorageAvailable: true,
		StorageDate:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func seedConfig(t *testing.T, cat *catalog.Memory, storageID string) {
	t.Helper()
	_, err := cat.InsertStorageConfig(context.Background(), &common.StorageConfig{
		ConfigID:   uuid.NewString(),
		StorageID:  storageID,
		ConfigType: "rclone",
		Config:     map[string]any{"type": "s3"},
		ConfigDate: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedReadyItem(t *testing.T, cat *catalog.Memory, storageID, uri, name string) *common.DataItem {
	t.Helper()
	now := time.Now().UTC()
	item := &common.DataItem{
		OID: uuid.NewString(), UID: uuid.NewString(), ItemVersion: 1,
		ItemName: name, ItemType: common.ItemTypeFile,
		StorageID: storageID, URI: uri,
		ItemState: common.StateReady, UIDPhase: common.PhaseLiquid, OIDPhase: common.PhaseLiquid,
		UIDCreation: now, UIDExpiration: now.Add(24 * time.Hour),
		OIDCreation: now, OIDExpiration: common.EndOfCentury,
	}
	_, err := cat.InsertDataItem(context.Background(), item)
	require.NoError(t, err)
	return item
}

func TestCopyDataItemSubmitsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
		User:            "operator",
	})
	require.NoError(t, err)
	assert.Positive(t, result.MigrationID)
	assert.Positive(t, result.JobID)

	dest, err := f.cat.SelectDataItems(ctx,
		catalog.And(catalog.Eq("uid", result.DestinationUID)), nil)
	require.NoError(t, err)
	require.Len(t, dest, 1)
	assert.Equal(t, common.StateInitialised, dest[0].ItemState)
	assert.Equal(t, "obs/scan.ms", dest[0].URI)
	assert.Equal(t, f.destID, dest[0].StorageID)

	// The agent call carries the backend names; the catalog rows never do.
	require.Len(t, f.agent.copies, 1)
	assert.Equal(t, "vault:obs/scan.ms -> archive:obs/scan.ms", f.agent.copies[0])

	migrations, err := f.controller.QueryMigrations(ctx, &MigrationQuery{StorageID: f.destID})
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "operator", migrations[0].User)
	assert.False(t, migrations[0].Complete)
}

func TestCopyDataItemByUID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.cat.SelectDataItems(ctx, catalog.And(catalog.Eq("item_name", "scan.ms")), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		UID:             items[0].UID,
		DestinationName: "archive",
	})
	require.NoError(t, err)
	assert.Positive(t, result.JobID)
}

func TestCopyDataItemExplicitPathStoredVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
		Path:            "/testfile_copy",
	})
	require.NoError(t, err)

	dest, err := f.cat.SelectDataItems(ctx,
		catalog.And(catalog.Eq("uid", result.DestinationUID)), nil)
	require.NoError(t, err)
	require.Len(t, dest, 1)
	assert.Equal(t, "/testfile_copy", dest[0].URI)
}

func TestCopyDataItemRequiresSelector(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.CopyDataItem(context.Background(), &CopyRequest{
		DestinationName: "archive",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestCopyDataItemMissingConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedStorage(t, f.cat, "bare", common.PhaseSolid)

	_, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "bare",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))
}

func TestCopyDataItemSameStorageRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.CopyDataItem(context.Background(), &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "vault",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))
}

func TestCopyDataItemNoReadyCopy(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.CopyDataItem(context.Background(), &CopyRequest{
		ItemName:        "missing.ms",
		DestinationName: "archive",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))
}

func TestCopyDataItemAgentFailureLeavesNoResidue(t *testing.T) {
	f := newFixture(t)
	f.agent.down = true

	_, err := f.controller.CopyDataItem(context.Background(), &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindTransferAgent))

	items, err := f.cat.SelectDataItems(context.Background(),
		catalog.And(catalog.Eq("item_name", "scan.ms")), nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestReconcilerPromotesSuccessfulCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
	})
	require.NoError(t, err)

	// Still in flight: nothing settles.
	require.NoError(t, f.reconciler.Tick(ctx))
	migrations, err := f.controller.QueryMigrations(ctx, &MigrationQuery{})
	require.NoError(t, err)
	assert.False(t, migrations[0].Complete)

	f.agent.finish(result.JobID, true)
	require.NoError(t, f.reconciler.Tick(ctx))

	dest, err := f.cat.SelectDataItems(ctx,
		catalog.And(catalog.Eq("uid", result.DestinationUID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateReady, dest[0].ItemState)

	migrations, err = f.controller.QueryMigrations(ctx, &MigrationQuery{})
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.True(t, migrations[0].Complete)
	require.NotNil(t, migrations[0].CompletionDate)
	assert.Equal(t, float64(4096), migrations[0].JobStats["bytes"])
}

func TestReconcilerCorruptsFailedCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
	})
	require.NoError(t, err)

	f.agent.finish(result.JobID, false)
	require.NoError(t, f.reconciler.Tick(ctx))

	dest, err := f.cat.SelectDataItems(ctx,
		catalog.And(catalog.Eq("uid", result.DestinationUID)), nil)
	require.NoError(t, err)
	assert.Equal(t, common.StateCorrupted, dest[0].ItemState)
}

func TestReconcilerAgentOutageIsTransient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
	})
	require.NoError(t, err)

	f.agent.finish(result.JobID, true)
	f.agent.down = true
	require.NoError(t, f.reconciler.Tick(ctx))

	migrations, err := f.controller.QueryMigrations(ctx, &MigrationQuery{})
	require.NoError(t, err)
	assert.False(t, migrations[0].Complete)

	f.agent.down = false
	require.NoError(t, f.reconciler.Tick(ctx))
	migrations, err = f.controller.QueryMigrations(ctx, &MigrationQuery{})
	require.NoError(t, err)
	assert.True(t, migrations[0].Complete)
}

func TestGetMigrationRefreshesLiveStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.controller.CopyDataItem(ctx, &CopyRequest{
		ItemName:        "scan.ms",
		DestinationName: "archive",
	})
	require.NoError(t, err)

	m, err := f.controller.GetMigration(ctx, result.MigrationID)
	require.NoError(t, err)
	assert.Equal(t, false, m.JobStatus["finished"])

	_, err = f.controller.GetMigration(ctx, 9999)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))
}

func TestPhaseChangeDrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.cat.SelectDataItems(ctx, catalog.And(catalog.Eq("item_name", "scan.ms")), nil)
	require.NoError(t, err)
	oid := items[0].OID

	reqID, err := f.controller.RequestPhaseChange(ctx, oid, common.PhaseSolid)
	require.NoError(t, err)
	assert.Positive(t, reqID)

	require.NoError(t, f.controller.DrainPhaseChanges(ctx))

	// The request is consumed and a copy toward the SOLID backend exists.
	queued, err := f.cat.SelectPhaseChangeRequests(ctx, catalog.Selector{}, nil)
	require.NoError(t, err)
	assert.Empty(t, queued)

	migrations, err := f.controller.QueryMigrations(ctx, &MigrationQuery{StorageID: f.destID})
	require.NoError(t, err)
	assert.Len(t, migrations, 1)
}

func TestPhaseChangeStaysQueuedWithoutTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.RequestPhaseChange(ctx, uuid.NewString(), common.PhasePlasma)
	require.NoError(t, err)

	require.NoError(t, f.controller.DrainPhaseChanges(ctx))
	queued, err := f.cat.SelectPhaseChangeRequests(ctx, catalog.Selector{}, nil)
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}
