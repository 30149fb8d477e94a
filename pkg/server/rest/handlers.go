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
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/ingest"
	"github.com/jeremyhahn/go-dlm/pkg/migration"
	"github.com/jeremyhahn/go-dlm/pkg/request"
	"github.com/jeremyhahn/go-dlm/pkg/storage"
	"github.com/jeremyhahn/go-dlm/pkg/sweeper"
	"github.com/jeremyhahn/go-dlm/pkg/version"
)

// Handler carries the services behind the REST surface.
type Handler struct {
	ingest    *ingest.Service
	migration *migration.Controller
	registry  *storage.Registry
	request   *request.Service
	sweeper   *sweeper.Sweeper
	logger    adapters.Logger
}

// NewHandler creates the REST handler. sweeper may be nil when the sweep
// loop runs elsewhere.
func NewHandler(ing *ingest.Service, mig *migration.Controller, reg *storage.Registry, req *request.Service, swp *sweeper.Sweeper, logger adapters.Logger) *Handler {
	return &Handler{
		ingest:    ing,
		migration: mig,
		registry:  reg,
		request:   req,
		sweeper:   swp,
		logger:    logger,
	}
}

func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		abortError(c, common.Wrap(common.KindInvalidQueryParameters, err, "decoding request body"))
		return false
	}
	return true
}

// Heartbeat reports liveness.
func (h *Handler) Heartbeat(c *gin.Context) {
	resp := HeartbeatResponse{Status: "alive", Version: version.Version}
	if h.sweeper != nil {
		if last := h.sweeper.LastTick(); !last.IsZero() {
			resp.LastSweep = last.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// InitDataItem creates a data item in INITIALISED state.
func (h *Handler) InitDataItem(c *gin.Context) {
	var req ingest.InitRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ItemOwner == "" {
		req.ItemOwner = principalFrom(c).Name
	}
	uid, err := h.ingest.InitDataItem(c.Request.Context(), &req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: uid})
}

// RegisterDataItem catalogs a payload already present on a backend.
func (h *Handler) RegisterDataItem(c *gin.Context) {
	var req ingest.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ItemOwner == "" {
		req.ItemOwner = principalFrom(c).Name
	}
	uid, err := h.ingest.RegisterDataItem(c.Request.Context(), &req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: uid})
}

// CopyDataItem submits an asynchronous copy to another backend.
func (h *Handler) CopyDataItem(c *gin.Context) {
	var req migration.CopyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.User == "" {
		req.User = principalFrom(c).Name
	}
	result, err := h.migration.CopyDataItem(c.Request.Context(), &req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// QueryMigrations lists migrations.
func (h *Handler) QueryMigrations(c *gin.Context) {
	q := migration.MigrationQuery{
		StorageID: c.Query("storage_id"),
		OID:       c.Query("oid"),
	}
	var err error
	if q.After, err = parseTimeParam(c.Query("after")); err != nil {
		abortError(c, err)
		return
	}
	if q.Before, err = parseTimeParam(c.Query("before")); err != nil {
		abortError(c, err)
		return
	}
	migrations, err := h.migration.QueryMigrations(c.Request.Context(), &q)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, migrations)
}

// GetMigration fetches one migration with live job status.
func (h *Handler) GetMigration(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortError(c, common.E(common.KindInvalidQueryParameters, "migration id must be an integer"))
		return
	}
	m, err := h.migration.GetMigration(c.Request.Context(), id)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// PhaseChangeRequestBody queues a phase change for an oid.
type PhaseChangeRequestBody struct {
	OID   string       `json:"oid" binding:"required"`
	Phase common.Phase `json:"phase" binding:"required"`
}

// RequestPhaseChange queues a phase-change request.
func (h *Handler) RequestPhaseChange(c *gin.Context) {
	var body PhaseChangeRequestBody
	if !bindJSON(c, &body) {
		return
	}
	id, err := h.migration.RequestPhaseChange(c.Request.Context(), body.OID, body.Phase)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": id})
}

// QueryDataItem lists data items narrowed by query parameters.
func (h *Handler) QueryDataItem(c *gin.Context) {
	sel := catalog.And()
	for param, column := range map[string]string{
		"oid":        "oid",
		"uid":        "uid",
		"item_name":  "item_name",
		"item_state": "item_state",
		"storage_id": "storage_id",
	} {
		if v := c.Query(param); v != "" {
			sel.Conds = append(sel.Conds, catalog.Eq(column, v))
		}
	}
	opts := &catalog.SelectOptions{}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			abortError(c, common.E(common.KindInvalidQueryParameters, "limit must be a positive integer"))
			return
		}
		opts.Limit = limit
	}
	items, err := h.request.QueryDataItems(c.Request.Context(), sel, opts)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func itemRefFromQuery(c *gin.Context) request.ItemRef {
	return request.ItemRef{
		ItemName: c.Query("item_name"),
		OID:      c.Query("oid"),
		UID:      c.Query("uid"),
	}
}

// QueryExists reports whether any copy of an item is cataloged.
func (h *Handler) QueryExists(c *gin.Context) {
	exists, err := h.request.QueryExists(c.Request.Context(), itemRefFromQuery(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExistsResponse{Exists: exists})
}

// QueryExistAndReady reports whether a READY copy of an item exists.
func (h *Handler) QueryExistAndReady(c *gin.Context) {
	exists, err := h.request.QueryExistsAndReady(c.Request.Context(), itemRefFromQuery(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExistsResponse{Exists: exists})
}

// QueryItemStorage returns the placements of an item's ready copies.
func (h *Handler) QueryItemStorage(c *gin.Context) {
	locations, err := h.request.QueryItemStorage(c.Request.Context(), itemRefFromQuery(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}

// QueryExpired lists READY copies whose TTL has elapsed, or will have
// elapsed offset from now.
func (h *Handler) QueryExpired(c *gin.Context) {
	var offset time.Duration
	if raw := c.Query("offset"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			abortError(c, common.E(common.KindInvalidQueryParameters,
				"offset must be a non-negative duration"))
			return
		}
		offset = parsed
	}
	items, err := h.request.QueryExpired(c.Request.Context(), offset)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// QueryDeleted lists deleted copies.
func (h *Handler) QueryDeleted(c *gin.Context) {
	items, err := h.request.QueryDeleted(c.Request.Context(), c.Query("uid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// QueryNew lists copies created since a timestamp.
func (h *Handler) QueryNew(c *gin.Context) {
	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		abortError(c, err)
		return
	}
	items, err := h.request.QueryNew(c.Request.Context(), since, c.Query("uid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// QueryProvenance returns an oid's direct parents and children.
func (h *Handler) QueryProvenance(c *gin.Context) {
	parents, children, err := h.request.QueryProvenance(c.Request.Context(), c.Query("oid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parents": parents, "children": children})
}

// UpdateDataItem patches one copy by uid.
func (h *Handler) UpdateDataItem(c *gin.Context) {
	uid := c.Query("uid")
	var patch catalog.Patch
	if !bindJSON(c, &patch) {
		return
	}
	item, err := h.request.UpdateDataItem(c.Request.Context(), uid, patch)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateTagsBody merges tags into every copy of an oid.
type UpdateTagsBody struct {
	OID  string            `json:"oid" binding:"required"`
	Tags map[string]string `json:"tags" binding:"required"`
}

// UpdateItemTags merges tags into an item's copies.
func (h *Handler) UpdateItemTags(c *gin.Context) {
	var body UpdateTagsBody
	if !bindJSON(c, &body) {
		return
	}
	items, err := h.request.UpdateItemTags(c.Request.Context(), body.OID, body.Tags)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// InitLocation registers a location.
func (h *Handler) InitLocation(c *gin.Context) {
	var loc common.Location
	if !bindJSON(c, &loc) {
		return
	}
	id, err := h.registry.InitLocation(c.Request.Context(), &loc)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// InitStorageBody wraps a storage registration with its location reference.
type InitStorageBody struct {
	common.Storage
	LocationName string `json:"location_name,omitempty"`
}

// InitStorage registers a storage backend.
func (h *Handler) InitStorage(c *gin.Context) {
	var body InitStorageBody
	if !bindJSON(c, &body) {
		return
	}
	id, err := h.registry.InitStorage(c.Request.Context(), &body.Storage, body.LocationName)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// CreateStorageConfig stores a transfer-agent configuration.
func (h *Handler) CreateStorageConfig(c *gin.Context) {
	var config common.StorageConfig
	if !bindJSON(c, &config) {
		return
	}
	id, err := h.registry.CreateStorageConfig(c.Request.Context(), &config)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// RcloneConfigBody registers a named remote on the transfer agent.
type RcloneConfigBody struct {
	Name       string         `json:"name" binding:"required"`
	Type       string         `json:"type" binding:"required"`
	Parameters map[string]any `json:"parameters"`
}

// CreateRcloneConfig registers a remote on the transfer agent.
func (h *Handler) CreateRcloneConfig(c *gin.Context) {
	var body RcloneConfigBody
	if !bindJSON(c, &body) {
		return
	}
	if err := h.registry.CreateRcloneConfig(c.Request.Context(), body.Name, body.Type, body.Parameters); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// QueryLocation lists locations narrowed by query parameters.
func (h *Handler) QueryLocation(c *gin.Context) {
	sel := catalog.And()
	if v := c.Query("location_id"); v != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("location_id", v))
	}
	if v := c.Query("location_name"); v != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("location_name", v))
	}
	locations, err := h.registry.QueryLocations(c.Request.Context(), sel, nil)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}

// QueryStorage lists storage backends narrowed by query parameters.
func (h *Handler) QueryStorage(c *gin.Context) {
	sel := catalog.And()
	for param, column := range map[string]string{
		"storage_id":   "storage_id",
		"storage_name": "storage_name",
		"location_id":  "location_id",
	} {
		if v := c.Query(param); v != "" {
			sel.Conds = append(sel.Conds, catalog.Eq(column, v))
		}
	}
	storages, err := h.registry.QueryStorages(c.Request.Context(), sel, nil)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, storages)
}

// GetStorageConfig returns the stored configs of a backend.
func (h *Handler) GetStorageConfig(c *gin.Context) {
	configs, err := h.registry.GetStorageConfigs(c.Request.Context(), c.Query("storage_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

// CheckAccessBody identifies the backends to probe.
type CheckAccessBody struct {
	StorageID   string `json:"storage_id,omitempty"`
	StorageName string `json:"storage_name,omitempty"`
}

// CheckStorageAccess probes backends for reachability.
func (h *Handler) CheckStorageAccess(c *gin.Context) {
	var body CheckAccessBody
	if !bindJSON(c, &body) {
		return
	}
	sel := catalog.And()
	if body.StorageID != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("storage_id", body.StorageID))
	}
	if body.StorageName != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("storage_name", body.StorageName))
	}
	reachable, err := h.registry.CheckStorageAccess(c.Request.Context(), sel)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reachable": reachable})
}

// CheckItemOnStorage returns the placements of an item's ready copies.
func (h *Handler) CheckItemOnStorage(c *gin.Context) {
	locations, err := h.registry.CheckItemOnStorage(c.Request.Context(),
		c.Query("item_name"), c.Query("oid"), c.Query("uid"), c.Query("storage_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, common.E(common.KindInvalidQueryParameters,
			"timestamp %q is not RFC 3339", raw)
	}
	return t, nil
}
