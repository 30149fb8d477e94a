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

package request

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

func newTestService(t *testing.T) (*Service, *catalog.Memory) {
	t.Helper()
	cat := catalog.NewMemory()
	return NewService(cat, adapters.NewNoOpLogger()), cat
}

func seedItem(t *testing.T, cat *catalog.Memory, name string, state common.ItemState) *common.DataItem {
	t.Helper()
	now := time.Now().UTC()
	item := &common.DataItem{
		OID: uuid.NewString(), UID: uuid.NewString(), ItemVersion: 1,
		ItemName: name, ItemType: common.ItemTypeFile,
		StorageID: uuid.NewString(), URI: "archive/" + name,
		ItemState: state, UIDPhase: common.PhaseGas, OIDPhase: common.PhaseGas,
		UIDCreation: now, UIDExpiration: now.Add(24 * time.Hour),
		OIDCreation: now, OIDExpiration: common.EndOfCentury,
	}
	_, err := cat.InsertDataItem(context.Background(), item)
	require.NoError(t, err)
	return item
}

func TestQueryExists(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	seedItem(t, cat, "obs.ms", common.StateInitialised)

	exists, err := svc.QueryExists(ctx, ItemRef{ItemName: "obs.ms"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.QueryExists(ctx, ItemRef{ItemName: "missing.ms"})
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.QueryExists(ctx, ItemRef{})
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestQueryExistsAndReady(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	seedItem(t, cat, "init.ms", common.StateInitialised)
	seedItem(t, cat, "ready.ms", common.StateReady)

	ready, err := svc.QueryExistsAndReady(ctx, ItemRef{ItemName: "init.ms"})
	require.NoError(t, err)
	assert.False(t, ready)

	ready, err = svc.QueryExistsAndReady(ctx, ItemRef{ItemName: "ready.ms"})
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestQueryItemStorageStampsLastAccess(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, cat, "obs.ms", common.StateReady)

	locations, err := svc.QueryItemStorage(ctx, ItemRef{ItemName: "obs.ms"})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, item.URI, locations[0].URI)

	rows, err := cat.SelectDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)), nil)
	require.NoError(t, err)
	require.NotNil(t, rows[0].LastAccess)

	_, err = svc.QueryItemStorage(ctx, ItemRef{})
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestQueryExpired(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	elapsed := seedItem(t, cat, "elapsed.ms", common.StateReady)
	_, err := cat.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", elapsed.UID)),
		catalog.Patch{"uid_expiration": now.Add(-time.Minute)})
	require.NoError(t, err)

	soon := seedItem(t, cat, "soon.ms", common.StateReady)
	_, err = cat.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", soon.UID)),
		catalog.Patch{"uid_expiration": now.Add(30 * time.Minute)})
	require.NoError(t, err)

	expired, err := svc.QueryExpired(ctx, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, elapsed.UID, expired[0].UID)

	// A positive offset shifts the reference time forward and pulls in
	// copies about to expire.
	ahead, err := svc.QueryExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Len(t, ahead, 2)
}

func TestQueryExpiredSkipsRetiredCopies(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A copy the sweeper already retired is not reported again, even though
	// its TTL elapsed.
	gone := seedItem(t, cat, "gone.ms", common.StateDeleted)
	_, err := cat.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", gone.UID)),
		catalog.Patch{"uid_expiration": now.Add(-time.Hour), "deleted": true})
	require.NoError(t, err)

	expired, err := svc.QueryExpired(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestQueryDeletedAndNew(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()

	item := seedItem(t, cat, "gone.ms", common.StateDeleted)
	_, err := cat.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)),
		catalog.Patch{"deleted": true, "uid_deletion": time.Now().UTC()})
	require.NoError(t, err)
	seedItem(t, cat, "alive.ms", common.StateReady)

	deleted, err := svc.QueryDeleted(ctx, "")
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, item.UID, deleted[0].UID)

	deleted, err = svc.QueryDeleted(ctx, item.UID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	fresh, err := svc.QueryNew(ctx, time.Now().UTC().Add(-time.Minute), "")
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	fresh, err = svc.QueryNew(ctx, time.Now().UTC().Add(-time.Minute), item.UID)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)

	_, err = svc.QueryNew(ctx, time.Time{}, "")
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestUpdateDataItem(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, cat, "obs.ms", common.StateReady)

	updated, err := svc.UpdateDataItem(ctx, item.UID, catalog.Patch{"item_format": "ms"})
	require.NoError(t, err)
	assert.Equal(t, "ms", updated.ItemFormat)

	_, err = svc.UpdateDataItem(ctx, uuid.NewString(), catalog.Patch{"item_format": "ms"})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))

	_, err = svc.UpdateDataItem(ctx, item.UID, catalog.Patch{"uid": "forged"})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidQueryParameters))
}

func TestUpdateItemTagsMerges(t *testing.T) {
	svc, cat := newTestService(t)
	ctx := context.Background()
	item := seedItem(t, cat, "obs.ms", common.StateReady)

	_, err := cat.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", item.UID)),
		catalog.Patch{"item_tags": map[string]string{"band": "L", "project": "A"}})
	require.NoError(t, err)

	updated, err := svc.UpdateItemTags(ctx, item.OID, map[string]string{
		"project": "B",
		"quality": "good",
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, map[string]string{
		"band":    "L",
		"project": "B",
		"quality": "good",
	}, updated[0].ItemTags)

	_, err = svc.UpdateItemTags(ctx, uuid.NewString(), map[string]string{"x": "y"})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindUnmetPrecondition))
}
