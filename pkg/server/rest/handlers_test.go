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

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/ingest"
	"github.com/jeremyhahn/go-dlm/pkg/metadata"
	"github.com/jeremyhahn/go-dlm/pkg/migration"
	"github.com/jeremyhahn/go-dlm/pkg/request"
	"github.com/jeremyhahn/go-dlm/pkg/storage"
	"github.com/jeremyhahn/go-dlm/pkg/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	jobs int64
}

func (a *stubAgent) CopyFile(ctx context.Context, srcFs, srcRemote, dstFs, dstRemote string) (int64, error) {
	a.jobs++
	return a.jobs, nil
}

func (a *stubAgent) SyncCopy(ctx context.Context, srcFs, dstFs string) (int64, error) {
	a.jobs++
	return a.jobs, nil
}

func (a *stubAgent) JobStatus(ctx context.Context, jobID int64) (map[string]any, error) {
	return map[string]any{"finished": false}, nil
}

func (a *stubAgent) CoreStats(ctx context.Context, group string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (a *stubAgent) ConfigCreate(ctx context.Context, name, remoteType string, parameters map[string]any) error {
	return nil
}

func (a *stubAgent) DeleteFile(ctx context.Context, fs, remote string) error {
	return nil
}

func (a *stubAgent) About(ctx context.Context, fs string) (map[string]any, error) {
	return map[string]any{"total": float64(1 << 40)}, nil
}

func (a *stubAgent) Stat(ctx context.Context, fs, remote string) (map[string]any, error) {
	return map[string]any{"Path": remote}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *catalog.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.NewMemory()
	agent := &stubAgent{}
	logger := adapters.NewNoOpLogger()

	ing := ingest.NewService(cat, agent, metadata.NoOpSink{}, logger, 0)
	reg := storage.NewRegistry(cat, agent, logger)
	mig := migration.NewController(cat, agent, ing, logger)
	req := request.NewService(cat, logger)
	swp := sweeper.New(cat, agent, logger, 0)

	handler := NewHandler(ing, mig, reg, req, swp, logger)
	server, err := NewServer(handler, &ServerConfig{
		Mode:          gin.TestMode,
		Logger:        logger,
		Authenticator: adapters.NewNoOpAuthenticator(),
	})
	require.NoError(t, err)
	return server.Router(), cat
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp IDResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func TestHeartbeat(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/heartbeat", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HeartbeatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestStorageRegistrationFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/storage/init_location", map[string]any{
		"location_name": "mid-za",
		"location_type": "mid-operations",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/storage/init_storage", map[string]any{
		"storage_name":      "vault",
		"storage_type":      "objectstore",
		"storage_interface": "s3",
		"location_name":     "mid-za",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	storageID := decodeID(t, w)

	w = doJSON(t, router, http.MethodPost, "/storage/create_storage_config", map[string]any{
		"storage_id": storageID,
		"config":     map[string]any{"type": "s3", "provider": "Minio"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/storage/query_storage?storage_name=vault", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var storages []common.Storage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &storages))
	require.Len(t, storages, 1)
	assert.Equal(t, storageID, storages[0].StorageID)

	w = doJSON(t, router, http.MethodGet, "/storage/get_storage_config?storage_id="+storageID, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(common.KindInvalidQueryParameters))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(common.KindUnmetPrecondition))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(common.KindValueAlreadyInDB))
	assert.Equal(t, http.StatusConflict, statusForKind(common.KindCatalogConflict))
	assert.Equal(t, http.StatusUnauthorized, statusForKind(common.KindAuth))
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(common.KindCatalogUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(common.KindCatalogQuery))
}

func TestDuplicateLocationRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]any{"location_name": "mid-za", "location_type": "mid-operations"}
	w := doJSON(t, router, http.MethodPost, "/storage/init_location", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/storage/init_location", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(common.KindValueAlreadyInDB), resp.Exec)
}

func TestIngestAndQueryFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/storage/init_location", map[string]any{
		"location_name": "mid-za", "location_type": "mid-operations",
	})
	doJSON(t, router, http.MethodPost, "/storage/init_storage", map[string]any{
		"storage_name": "vault", "storage_type": "objectstore",
		"storage_interface": "s3", "location_name": "mid-za",
	})

	w := doJSON(t, router, http.MethodPost, "/ingest/register_data_item", map[string]any{
		"item_name":    "obs.ms",
		"storage_name": "vault",
		"path":         "archive/obs.ms",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	uid := decodeID(t, w)

	w = doJSON(t, router, http.MethodGet, "/request/query_exists?item_name=obs.ms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var exists ExistsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exists))
	assert.True(t, exists.Exists)

	w = doJSON(t, router, http.MethodGet, "/request/query_exist_and_ready?item_name=obs.ms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exists))
	assert.True(t, exists.Exists)

	w = doJSON(t, router, http.MethodGet, "/request/query_item_storage?item_name=obs.ms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var locations []common.ItemLocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, uid, locations[0].UID)
	assert.Equal(t, "archive/obs.ms", locations[0].URI)

	// Duplicate registration on the same backend is rejected.
	w = doJSON(t, router, http.MethodPost, "/ingest/register_data_item", map[string]any{
		"item_name": "obs.ms", "storage_name": "vault",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var dup ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dup))
	assert.Equal(t, string(common.KindValueAlreadyInDB), dup.Exec)
}

func TestUpdateItemTagsEndpoint(t *testing.T) {
	router, cat := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/storage/init_location", map[string]any{
		"location_name": "mid-za", "location_type": "mid-operations",
	})
	doJSON(t, router, http.MethodPost, "/storage/init_storage", map[string]any{
		"storage_name": "vault", "storage_type": "objectstore",
		"storage_interface": "s3", "location_name": "mid-za",
	})
	w := doJSON(t, router, http.MethodPost, "/ingest/register_data_item", map[string]any{
		"item_name": "obs.ms", "storage_name": "vault",
		"item_tags": map[string]string{"band": "L"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	uid := decodeID(t, w)

	items, err := cat.SelectDataItems(context.Background(),
		catalog.And(catalog.Eq("uid", uid)), nil)
	require.NoError(t, err)
	oid := items[0].OID

	w = doJSON(t, router, http.MethodPatch, "/request/update_item_tags", map[string]any{
		"oid":  oid,
		"tags": map[string]string{"quality": "good"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated []common.DataItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Len(t, updated, 1)
	assert.Equal(t, map[string]string{"band": "L", "quality": "good"}, updated[0].ItemTags)
}

func TestQueryValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/request/query_exists", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(common.KindInvalidQueryParameters), resp.Exec)

	w = doJSON(t, router, http.MethodGet, "/request/query_new?since=yesterday", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, http.MethodGet, "/request/query_expired?offset=-1h", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, http.MethodGet, "/migration/get_migration/not-a-number", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCopyDataItemEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/storage/init_location", map[string]any{
		"location_name": "mid-za", "location_type": "mid-operations",
	})
	for _, name := range []string{"vault", "archive"} {
		w := doJSON(t, router, http.MethodPost, "/storage/init_storage", map[string]any{
			"storage_name": name, "storage_type": "objectstore",
			"storage_interface": "s3", "location_name": "mid-za",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		storageID := decodeID(t, w)
		w = doJSON(t, router, http.MethodPost, "/storage/create_storage_config", map[string]any{
			"storage_id": storageID,
			"config":     map[string]any{"type": "s3"},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := doJSON(t, router, http.MethodPost, "/ingest/register_data_item", map[string]any{
		"item_name": "obs.ms", "storage_name": "vault",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/migration/copy_data_item", map[string]any{
		"item_name":        "obs.ms",
		"destination_name": "archive",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var result migration.CopyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Positive(t, result.JobID)

	w = doJSON(t, router, http.MethodGet, "/migration/query_migrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var migrations []common.Migration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &migrations))
	require.Len(t, migrations, 1)

	// Anonymous principal is recorded as the migration user.
	assert.Equal(t, "anonymous", migrations[0].User)
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cat := catalog.NewMemory()
	logger := adapters.NewNoOpLogger()
	agent := &stubAgent{}
	ing := ingest.NewService(cat, agent, metadata.NoOpSink{}, logger, 0)
	handler := NewHandler(
		ing,
		migration.NewController(cat, agent, ing, logger),
		storage.NewRegistry(cat, agent, logger),
		request.NewService(cat, logger),
		nil,
		logger,
	)
	server, err := NewServer(handler, &ServerConfig{
		Mode:          gin.TestMode,
		Logger:        logger,
		Authenticator: adapters.NewBearerAuthenticator(),
	})
	require.NoError(t, err)

	w := doJSON(t, server.Router(), http.MethodGet, "/heartbeat", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(common.KindAuth), resp.Exec)
}
