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

// Package storage manages the registry of locations, storage backends and
// their transfer-agent configurations.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
	"github.com/jeremyhahn/go-dlm/pkg/storage/probe"
)

// Registry is the storage-registry service.
type Registry struct {
	catalog catalog.Catalog
	agent   rclone.Agent
	logger  adapters.Logger
}

// NewRegistry creates the storage registry.
func NewRegistry(cat catalog.Catalog, agent rclone.Agent, logger adapters.Logger) *Registry {
	return &Registry{catalog: cat, agent: agent, logger: logger}
}

// translateConflict maps raw catalog uniqueness violations onto the
// registration-level duplicate kind.
func translateConflict(err error) error {
	if common.IsKind(err, common.KindCatalogConflict) {
		return common.Wrap(common.KindValueAlreadyInDB, err, "already registered")
	}
	return err
}

// InitLocation registers a location and returns its generated id.
func (r *Registry) InitLocation(ctx context.Context, loc *common.Location) (string, error) {
	if loc.LocationName == "" {
		return "", common.E(common.KindInvalidQueryParameters, "location_name is required")
	}
	if !loc.LocationType.Valid() {
		return "", common.E(common.KindInvalidQueryParameters,
			"unknown location_type %q", loc.LocationType)
	}

	loc.LocationID = uuid.NewString()
	loc.LocationDate = time.Now().UTC()

	inserted, err := r.catalog.InsertLocation(ctx, loc)
	if err != nil {
		return "", translateConflict(err)
	}
	r.logger.Info(ctx, "location registered",
		adapters.Field{Key: "location_id", Value: inserted.LocationID},
		adapters.Field{Key: "location_name", Value: inserted.LocationName})
	return inserted.LocationID, nil
}

// QueryLocations returns locations matching the selector.
func (r *Registry) QueryLocations(ctx context.Context, sel catalog.Selector, opts *catalog.SelectOptions) ([]common.Location, error) {
	return r.catalog.SelectLocations(ctx, sel, opts)
}

// resolveLocation resolves a storage's location by id or, failing that, by
// name. One of the two must be supplied.
func (r *Registry) resolveLocation(ctx context.Context, locationID, locationName string) (*common.Location, error) {
	var sel catalog.Selector
	switch {
	case locationID != "":
		sel = catalog.And(catalog.Eq("location_id", locationID))
	case locationName != "":
		sel = catalog.And(catalog.Eq("location_name", locationName))
	default:
		return nil, common.E(common.KindInvalidQueryParameters,
			"either location_id or location_name is required")
	}
	locations, err := r.catalog.SelectLocations(ctx, sel, &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "location not found")
	}
	return &locations[0], nil
}

// InitStorage registers a storage backend and returns its generated id.
// The location may be referenced by id or by name.
func (r *Registry) InitStorage(ctx context.Context, storage *common.Storage, locationName string) (string, error) {
	if storage.StorageName == "" {
		return "", common.E(common.KindInvalidQueryParameters, "storage_name is required")
	}
	if storage.StorageType == "" || storage.StorageInterface == "" {
		return "", common.E(common.KindInvalidQueryParameters,
			"storage_type and storage_interface are required")
	}

	loc, err := r.resolveLocation(ctx, storage.LocationID, locationName)
	if err != nil {
		return "", err
	}
	storage.LocationID = loc.LocationID

	if storage.StoragePhase == "" {
		storage.StoragePhase = common.PhaseGas
	} else if !storage.StoragePhase.Valid() {
		return "", common.E(common.KindInvalidQueryParameters,
			"unknown storage_phase %q", storage.StoragePhase)
	}
	if storage.StorageCapacity == 0 {
		storage.StorageCapacity = common.CapacityUnknown
	}

	storage.StorageID = uuid.NewString()
	storage.StorageAvailable = true
	storage.StorageDate = time.Now().UTC()

	inserted, err := r.catalog.InsertStorage(ctx, storage)
	if err != nil {
		return "", translateConflict(err)
	}
	r.logger.Info(ctx, "storage registered",
		adapters.Field{Key: "storage_id", Value: inserted.StorageID},
		adapters.Field{Key: "storage_name", Value: inserted.StorageName},
		adapters.Field{Key: "location_id", Value: inserted.LocationID})
	return inserted.StorageID, nil
}

// QueryStorages returns storage backends matching the selector.
func (r *Registry) QueryStorages(ctx context.Context, sel catalog.Selector, opts *catalog.SelectOptions) ([]common.Storage, error) {
	return r.catalog.SelectStorages(ctx, sel, opts)
}

// UpdateStorages patches storage backends matching the selector.
func (r *Registry) UpdateStorages(ctx context.Context, sel catalog.Selector, patch catalog.Patch) ([]common.Storage, error) {
	if sel.Empty() {
		return nil, common.E(common.KindInvalidQueryParameters, "update requires a selector")
	}
	return r.catalog.UpdateStorages(ctx, sel, patch)
}

// getStorage fetches one backend by id.
func (r *Registry) getStorage(ctx context.Context, storageID string) (*common.Storage, error) {
	storages, err := r.catalog.SelectStorages(ctx,
		catalog.And(catalog.Eq("storage_id", storageID)), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(storages) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "storage %s not found", storageID)
	}
	return &storages[0], nil
}

// CreateStorageConfig stores a transfer-agent configuration for a backend
// and registers it on the agent when it is an rclone remote.
func (r *Registry) CreateStorageConfig(ctx context.Context, config *common.StorageConfig) (string, error) {
	storage, err := r.getStorage(ctx, config.StorageID)
	if err != nil {
		return "", err
	}
	if config.ConfigType == "" {
		config.ConfigType = "rclone"
	}

	config.ConfigID = uuid.NewString()
	config.ConfigDate = time.Now().UTC()

	inserted, err := r.catalog.InsertStorageConfig(ctx, config)
	if err != nil {
		return "", translateConflict(err)
	}

	if config.ConfigType == "rclone" && config.Config != nil {
		remoteType, _ := config.Config["type"].(string)
		if remoteType == "" {
			remoteType = storage.StorageInterface
		}
		if err := r.CreateRcloneConfig(ctx, storage.StorageName, remoteType, config.Config); err != nil {
			// The stored config stays authoritative; the agent is
			// re-registered on the next config creation or restart.
			r.logger.Warn(ctx, "transfer agent registration deferred",
				adapters.Field{Key: "storage_name", Value: storage.StorageName},
				adapters.Field{Key: "error", Value: err.Error()})
		}
	}
	return inserted.ConfigID, nil
}

// CreateRcloneConfig registers a named remote on the transfer agent. The
// agent treats re-registration of the same name as an upsert, so the call
// is idempotent.
func (r *Registry) CreateRcloneConfig(ctx context.Context, name, remoteType string, parameters map[string]any) error {
	if name == "" || remoteType == "" {
		return common.E(common.KindInvalidQueryParameters, "remote name and type are required")
	}
	return r.agent.ConfigCreate(ctx, name, remoteType, parameters)
}

// GetStorageConfigs returns the stored configs of one backend, newest first.
func (r *Registry) GetStorageConfigs(ctx context.Context, storageID string) ([]common.StorageConfig, error) {
	if storageID == "" {
		return nil, common.E(common.KindInvalidQueryParameters, "storage_id is required")
	}
	return r.catalog.SelectStorageConfigs(ctx,
		catalog.And(catalog.Eq("storage_id", storageID)),
		&catalog.SelectOptions{OrderBy: "config_date", OrderDesc: true})
}

// CheckStorageAccess probes every backend matching the selector and patches
// storage_checked / storage_available with the outcome. It returns the ids
// of the backends that passed.
func (r *Registry) CheckStorageAccess(ctx context.Context, sel catalog.Selector) ([]string, error) {
	storages, err := r.catalog.SelectStorages(ctx, sel, nil)
	if err != nil {
		return nil, err
	}
	if len(storages) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "no storage matches the query")
	}

	var reachable []string
	for i := range storages {
		s := &storages[i]
		err := r.probeStorage(ctx, s)
		available := err == nil
		if available {
			reachable = append(reachable, s.StorageID)
		} else {
			r.logger.Warn(ctx, "storage probe failed",
				adapters.Field{Key: "storage_name", Value: s.StorageName},
				adapters.Field{Key: "error", Value: err.Error()})
		}
		if _, uerr := r.catalog.UpdateStorages(ctx,
			catalog.And(catalog.Eq("storage_id", s.StorageID)),
			catalog.Patch{"storage_checked": true, "storage_available": available}); uerr != nil {
			return nil, uerr
		}
	}
	return reachable, nil
}

func (r *Registry) probeStorage(ctx context.Context, s *common.Storage) error {
	prober, err := probe.ForInterface(s.StorageInterface)
	if err != nil {
		return err
	}
	var config map[string]any
	configs, err := r.GetStorageConfigs(ctx, s.StorageID)
	if err == nil && len(configs) > 0 {
		config = configs[0].Config
	}
	return prober.Probe(ctx, s, config)
}

// CheckItemOnStorage returns the placements of every ready copy of an item,
// referenced by name, oid or uid, optionally narrowed to one backend.
func (r *Registry) CheckItemOnStorage(ctx context.Context, itemName, oid, uid, storageID string) ([]common.ItemLocation, error) {
	sel := catalog.And(catalog.Eq("item_state", string(common.StateReady)))
	switch {
	case itemName != "":
		sel.Conds = append(sel.Conds, catalog.Eq("item_name", itemName))
	case oid != "":
		sel.Conds = append(sel.Conds, catalog.Eq("oid", oid))
	case uid != "":
		sel.Conds = append(sel.Conds, catalog.Eq("uid", uid))
	default:
		return nil, common.E(common.KindInvalidQueryParameters,
			"one of item_name, oid or uid is required")
	}
	if storageID != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("storage_id", storageID))
	}
	items, err := r.catalog.SelectDataItems(ctx, sel, nil)
	if err != nil {
		return nil, err
	}
	locations := make([]common.ItemLocation, 0, len(items))
	for _, item := range items {
		locations = append(locations, common.ItemLocation{
			OID:       item.OID,
			UID:       item.UID,
			ItemName:  item.ItemName,
			StorageID: item.StorageID,
			URI:       item.URI,
		})
	}
	return locations, nil
}
