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

// Package migration copies data items between storage backends through the
// transfer agent and reconciles asynchronous copy jobs against the catalog.
package migration

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/ingest"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
)

// Controller submits and tracks copies between backends.
type Controller struct {
	catalog catalog.Catalog
	agent   rclone.Agent
	ingest  *ingest.Service
	logger  adapters.Logger
}

// NewController creates the migration controller.
func NewController(cat catalog.Catalog, agent rclone.Agent, ing *ingest.Service, logger adapters.Logger) *Controller {
	return &Controller{catalog: cat, agent: agent, ingest: ing, logger: logger}
}

// CopyRequest identifies the item and the destination of a copy. The item
// may be referenced by name, oid or uid; the destination by id or by name.
type CopyRequest struct {
	OID      string `json:"oid,omitempty"`
	ItemName string `json:"item_name,omitempty"`
	UID      string `json:"uid,omitempty"`

	DestinationID   string `json:"destination_id,omitempty"`
	DestinationName string `json:"destination_name,omitempty"`

	// Path overrides the destination path; empty reuses the source path.
	Path string `json:"path,omitempty"`

	User string `json:"user,omitempty"`
}

// CopyResult reports a submitted copy.
type CopyResult struct {
	MigrationID    int64  `json:"migration_id"`
	JobID          int64  `json:"job_id"`
	DestinationUID string `json:"destination_uid"`
}

// CopyDataItem submits an asynchronous copy of a ready item to another
// backend. The destination catalog entry shares the source oid and stays
// INITIALISED until the reconciler confirms the transfer. Both backends
// must carry a stored transfer-agent configuration.
func (c *Controller) CopyDataItem(ctx context.Context, req *CopyRequest) (*CopyResult, error) {
	source, err := c.resolveReadyCopy(ctx, req.OID, req.ItemName, req.UID)
	if err != nil {
		return nil, err
	}
	sourceStorage, err := c.getStorage(ctx, source.StorageID)
	if err != nil {
		return nil, err
	}
	destStorage, err := c.resolveDestination(ctx, req.DestinationID, req.DestinationName)
	if err != nil {
		return nil, err
	}
	if destStorage.StorageID == sourceStorage.StorageID {
		return nil, common.E(common.KindUnmetPrecondition,
			"item %q is already on storage %s", source.ItemName, destStorage.StorageName)
	}

	if err := c.requireConfig(ctx, sourceStorage); err != nil {
		return nil, err
	}
	if err := c.requireConfig(ctx, destStorage); err != nil {
		return nil, err
	}

	destUID, err := c.ingest.InitDataItem(ctx, &ingest.InitRequest{
		ItemName:    source.ItemName,
		OID:         source.OID,
		ItemVersion: source.ItemVersion,
		ItemType:    source.ItemType,
		ItemFormat:  source.ItemFormat,
		Phase:       destStorage.StoragePhase,
		ItemTags:    source.ItemTags,
		Metadata:    source.Metadata,
		ItemOwner:   source.ItemOwner,
		ItemGroup:   source.ItemGroup,
	})
	if err != nil {
		return nil, err
	}

	path := req.Path
	if path == "" {
		path = source.URI
	}

	jobID, err := c.submitCopy(ctx, source, sourceStorage, destStorage, path)
	if err != nil {
		// Leave no half-created destination behind a failed submission.
		if derr := c.catalog.DeleteDataItems(ctx,
			catalog.And(catalog.Eq("uid", destUID))); derr != nil {
			c.logger.Error(ctx, "compensating delete failed",
				adapters.Field{Key: "uid", Value: destUID},
				adapters.Field{Key: "error", Value: derr.Error()})
		}
		return nil, err
	}

	if _, err := c.catalog.UpdateDataItems(ctx,
		catalog.And(catalog.Eq("uid", destUID)),
		catalog.Patch{"storage_id": destStorage.StorageID, "uri": path}); err != nil {
		return nil, err
	}

	inserted, err := c.catalog.InsertMigration(ctx, &common.Migration{
		JobID:                jobID,
		OID:                  source.OID,
		SourceStorageID:      sourceStorage.StorageID,
		DestinationStorageID: destStorage.StorageID,
		User:                 req.User,
		Date:                 time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "copy submitted",
		adapters.Field{Key: "migration_id", Value: inserted.MigrationID},
		adapters.Field{Key: "job_id", Value: jobID},
		adapters.Field{Key: "oid", Value: source.OID},
		adapters.Field{Key: "destination", Value: destStorage.StorageName})

	return &CopyResult{
		MigrationID:    inserted.MigrationID,
		JobID:          jobID,
		DestinationUID: destUID,
	}, nil
}

// submitCopy hands the transfer to the agent. Catalog rows store bare
// paths; the "remote:path" rendering the agent expects is formed here from
// the storage names.
func (c *Controller) submitCopy(ctx context.Context, source *common.DataItem, src, dest *common.Storage, path string) (int64, error) {
	srcFs := src.StorageName + ":"
	if source.ItemType == common.ItemTypeContainer {
		return c.agent.SyncCopy(ctx, srcFs+source.URI, dest.StorageName+":"+path)
	}
	return c.agent.CopyFile(ctx, srcFs, source.URI, dest.StorageName+":", path)
}

func (c *Controller) resolveReadyCopy(ctx context.Context, oid, itemName, uid string) (*common.DataItem, error) {
	sel := catalog.And(catalog.Eq("item_state", string(common.StateReady)))
	switch {
	case oid != "":
		sel.Conds = append(sel.Conds, catalog.Eq("oid", oid))
	case itemName != "":
		sel.Conds = append(sel.Conds, catalog.Eq("item_name", itemName))
	case uid != "":
		sel.Conds = append(sel.Conds, catalog.Eq("uid", uid))
	default:
		return nil, common.E(common.KindInvalidQueryParameters,
			"one of oid, item_name or uid is required")
	}
	items, err := c.catalog.SelectDataItems(ctx, sel,
		&catalog.SelectOptions{OrderBy: "uid_creation", Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "no ready copy of the item")
	}
	return &items[0], nil
}

func (c *Controller) getStorage(ctx context.Context, storageID string) (*common.Storage, error) {
	storages, err := c.catalog.SelectStorages(ctx,
		catalog.And(catalog.Eq("storage_id", storageID)), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(storages) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "storage %s not found", storageID)
	}
	return &storages[0], nil
}

func (c *Controller) resolveDestination(ctx context.Context, id, name string) (*common.Storage, error) {
	var sel catalog.Selector
	switch {
	case id != "":
		sel = catalog.And(catalog.Eq("storage_id", id))
	case name != "":
		sel = catalog.And(catalog.Eq("storage_name", name))
	default:
		return nil, common.E(common.KindInvalidQueryParameters,
			"either destination_id or destination_name is required")
	}
	storages, err := c.catalog.SelectStorages(ctx, sel, &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(storages) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "destination storage not found")
	}
	dest := &storages[0]
	if !dest.StorageAvailable || dest.StorageRetired {
		return nil, common.E(common.KindUnmetPrecondition,
			"destination storage %s is not available", dest.StorageName)
	}
	return dest, nil
}

func (c *Controller) requireConfig(ctx context.Context, storage *common.Storage) error {
	configs, err := c.catalog.SelectStorageConfigs(ctx,
		catalog.And(catalog.Eq("storage_id", storage.StorageID)),
		&catalog.SelectOptions{Limit: 1})
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return common.E(common.KindUnmetPrecondition,
			"storage %s has no transfer configuration", storage.StorageName)
	}
	return nil
}

// MigrationQuery narrows a migration listing.
type MigrationQuery struct {
	StorageID string    `json:"storage_id,omitempty"`
	OID       string    `json:"oid,omitempty"`
	After     time.Time `json:"after,omitempty"`
	Before    time.Time `json:"before,omitempty"`
}

// QueryMigrations lists migrations, optionally narrowed by date window, oid,
// or a storage id matching either end of the transfer.
func (c *Controller) QueryMigrations(ctx context.Context, q *MigrationQuery) ([]common.Migration, error) {
	sel := catalog.And()
	if q.OID != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("oid", q.OID))
	}
	if !q.After.IsZero() {
		sel.Conds = append(sel.Conds, catalog.Gte("date", q.After))
	}
	if !q.Before.IsZero() {
		sel.Conds = append(sel.Conds, catalog.Lte("date", q.Before))
	}
	if q.StorageID != "" {
		sel = sel.With(catalog.Or(
			catalog.Eq("source_storage_id", q.StorageID),
			catalog.Eq("destination_storage_id", q.StorageID),
		))
	}
	return c.catalog.SelectMigrations(ctx, sel,
		&catalog.SelectOptions{OrderBy: "date", OrderDesc: true})
}

// GetMigration fetches one migration by id, refreshing its live job status
// from the agent when the copy is still in flight.
func (c *Controller) GetMigration(ctx context.Context, migrationID int64) (*common.Migration, error) {
	migrations, err := c.catalog.SelectMigrations(ctx,
		catalog.And(catalog.Eq("migration_id", migrationID)), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(migrations) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "migration %d not found", migrationID)
	}
	m := &migrations[0]
	if m.Complete {
		return m, nil
	}
	status, err := c.agent.JobStatus(ctx, m.JobID)
	if err != nil {
		// The stored snapshot still answers the query.
		c.logger.Warn(ctx, "live job status unavailable",
			adapters.Field{Key: "migration_id", Value: m.MigrationID},
			adapters.Field{Key: "error", Value: err.Error()})
		return m, nil
	}
	m.JobStatus = status
	return m, nil
}

// RequestPhaseChange queues a request to raise an oid's resilience tier.
func (c *Controller) RequestPhaseChange(ctx context.Context, oid string, phase common.Phase) (int64, error) {
	if oid == "" {
		return 0, common.E(common.KindInvalidQueryParameters, "oid is required")
	}
	if !phase.Valid() {
		return 0, common.E(common.KindInvalidQueryParameters, "unknown phase %q", phase)
	}
	req, err := c.catalog.InsertPhaseChangeRequest(ctx, &common.PhaseChangeRequest{
		OID:            oid,
		RequestedPhase: phase,
		RequestDate:    time.Now().UTC(),
	})
	if err != nil {
		return 0, err
	}
	return req.RequestID, nil
}

// DrainPhaseChanges serves queued phase-change requests by copying each oid
// to an available backend in the requested tier. Requests that cannot be
// served yet stay queued.
func (c *Controller) DrainPhaseChanges(ctx context.Context) error {
	requests, err := c.catalog.SelectPhaseChangeRequests(ctx, catalog.Selector{},
		&catalog.SelectOptions{OrderBy: "request_id"})
	if err != nil {
		return err
	}
	for _, req := range requests {
		targets, err := c.catalog.SelectStorages(ctx, catalog.And(
			catalog.Eq("storage_phase", string(req.RequestedPhase)),
			catalog.Eq("storage_available", true),
			catalog.Eq("storage_retired", false),
		), &catalog.SelectOptions{Limit: 1})
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			continue
		}
		if _, err := c.CopyDataItem(ctx, &CopyRequest{
			OID:             req.OID,
			DestinationName: targets[0].StorageName,
		}); err != nil {
			c.logger.Warn(ctx, "phase change deferred",
				adapters.Field{Key: "oid", Value: req.OID},
				adapters.Field{Key: "requested_phase", Value: string(req.RequestedPhase)},
				adapters.Field{Key: "error", Value: err.Error()})
			continue
		}
		if err := c.catalog.DeletePhaseChangeRequests(ctx,
			catalog.And(catalog.Eq("request_id", req.RequestID))); err != nil {
			return err
		}
	}
	return nil
}
