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

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(name string) *common.DataItem {
	now := time.Now().UTC()
	return &common.DataItem{
		OID:           uuid.NewString(),
		UID:           uuid.NewString(),
		ItemVersion:   1,
		ItemName:      name,
		ItemType:      common.ItemTypeFile,
		URI:           common.InlineURISentinel,
		ItemState:     common.StateInitialised,
		UIDPhase:      common.PhaseGas,
		OIDPhase:      common.PhaseGas,
		UIDCreation:   now,
		UIDExpiration: now.Add(common.DefaultUIDExpiration),
		OIDCreation:   now,
		OIDExpiration: common.EndOfCentury,
	}
}

func TestMemoryLocationUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	loc := &common.Location{
		LocationID:   uuid.NewString(),
		LocationName: "mid-za",
		LocationType: common.LocationMidOperations,
		LocationDate: time.Now().UTC(),
	}
	_, err := m.InsertLocation(ctx, loc)
	require.NoError(t, err)

	dup := *loc
	dup.LocationID = uuid.NewString()
	_, err = m.InsertLocation(ctx, &dup)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindCatalogConflict))
}

func TestMemoryDataItemUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	item := newTestItem("obs-001.ms")
	_, err := m.InsertDataItem(ctx, item)
	require.NoError(t, err)

	_, err = m.InsertDataItem(ctx, item)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindCatalogConflict))
}

func TestMemorySelectDataItems(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := newTestItem("scan-a.ms")
	b := newTestItem("scan-b.ms")
	b.ItemState = common.StateReady
	_, err := m.InsertDataItem(ctx, a)
	require.NoError(t, err)
	_, err = m.InsertDataItem(ctx, b)
	require.NoError(t, err)

	ready, err := m.SelectDataItems(ctx, And(Eq("item_state", "READY")), nil)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, b.UID, ready[0].UID)

	named, err := m.SelectDataItems(ctx, And(Like("item_name", "scan-%")), nil)
	require.NoError(t, err)
	assert.Len(t, named, 2)

	upper, err := m.SelectDataItems(ctx, And(ILike("item_name", "SCAN-A%")), nil)
	require.NoError(t, err)
	require.Len(t, upper, 1)
	assert.Equal(t, a.UID, upper[0].UID)

	either, err := m.SelectDataItems(ctx, And(In("uid", a.UID, b.UID)), nil)
	require.NoError(t, err)
	assert.Len(t, either, 2)
}

func TestMemorySelectRejectsUnknownColumn(t *testing.T) {
	m := NewMemory()
	_, err := m.SelectDataItems(context.Background(), And(Eq("no_such", 1)), nil)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestMemoryOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		item := newTestItem("seq.ms")
		item.UIDCreation = base.Add(time.Duration(i) * time.Minute)
		item.UIDExpiration = item.UIDCreation.Add(common.DefaultUIDExpiration)
		_, err := m.InsertDataItem(ctx, item)
		require.NoError(t, err)
	}

	rows, err := m.SelectDataItems(ctx, Selector{}, &SelectOptions{
		OrderBy:   "uid_creation",
		OrderDesc: true,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].UIDCreation.After(rows[1].UIDCreation))
}

func TestMemoryUpdateDataItems(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	item := newTestItem("patched.ms")
	_, err := m.InsertDataItem(ctx, item)
	require.NoError(t, err)

	updated, err := m.UpdateDataItems(ctx, And(Eq("uid", item.UID)), Patch{
		"item_state": "READY",
		"uri":        "storage-a:archive/patched.ms",
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, common.StateReady, updated[0].ItemState)
	assert.Equal(t, "storage-a:archive/patched.ms", updated[0].URI)
}

func TestMemoryUpdateRejectsImmutableColumn(t *testing.T) {
	m := NewMemory()
	_, err := m.UpdateDataItems(context.Background(), Selector{}, Patch{"uid": "x"})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestMemoryDeleteDataItems(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	item := newTestItem("doomed.ms")
	_, err := m.InsertDataItem(ctx, item)
	require.NoError(t, err)

	require.Error(t, m.DeleteDataItems(ctx, Selector{}))

	require.NoError(t, m.DeleteDataItems(ctx, And(Eq("uid", item.UID))))
	rows, err := m.SelectDataItems(ctx, Selector{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryMigrationSequence(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.InsertMigration(ctx, &common.Migration{
		OID:                  uuid.NewString(),
		SourceStorageID:      uuid.NewString(),
		DestinationStorageID: uuid.NewString(),
		Date:                 time.Now().UTC(),
	})
	require.NoError(t, err)
	second, err := m.InsertMigration(ctx, &common.Migration{
		OID:                  uuid.NewString(),
		SourceStorageID:      uuid.NewString(),
		DestinationStorageID: uuid.NewString(),
		Date:                 time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.MigrationID+1, second.MigrationID)

	done := time.Now().UTC()
	updated, err := m.UpdateMigrations(ctx, And(Eq("migration_id", first.MigrationID)), Patch{
		"complete":        true,
		"completion_date": done,
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].Complete)
	require.NotNil(t, updated[0].CompletionDate)
}

func TestMemoryProvenanceCycleRejected(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.AddProvenance(ctx, "a", "b"))
	require.NoError(t, m.AddProvenance(ctx, "b", "c"))

	err := m.AddProvenance(ctx, "c", "a")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))

	require.Error(t, m.AddProvenance(ctx, "a", "a"))

	parents, children, err := m.SelectProvenance(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, parents)
	assert.Equal(t, []string{"c"}, children)
}

func TestMemoryPhaseChangeQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	req, err := m.InsertPhaseChangeRequest(ctx, &common.PhaseChangeRequest{
		OID:            uuid.NewString(),
		RequestedPhase: common.PhaseSolid,
		RequestDate:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Positive(t, req.RequestID)

	rows, err := m.SelectPhaseChangeRequests(ctx, Selector{}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, m.DeletePhaseChangeRequests(ctx, And(Eq("request_id", req.RequestID))))
	rows, err = m.SelectPhaseChangeRequests(ctx, Selector{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
