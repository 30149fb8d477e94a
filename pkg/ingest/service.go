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

// Package ingest creates catalog entries for new data items and drives the
// INITIALISED to READY transition at registration time.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/metadata"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
)

// Service is the ingest service.
type Service struct {
	catalog catalog.Catalog
	agent   rclone.Agent
	sink    metadata.Sink
	logger  adapters.Logger

	uidExpiration time.Duration
}

// NewService creates the ingest service. uidExpiration is the TTL applied
// to new physical copies; zero selects the default.
func NewService(cat catalog.Catalog, agent rclone.Agent, sink metadata.Sink, logger adapters.Logger, uidExpiration time.Duration) *Service {
	if uidExpiration <= 0 {
		uidExpiration = common.DefaultUIDExpiration
	}
	return &Service{catalog: cat, agent: agent, sink: sink, logger: logger, uidExpiration: uidExpiration}
}

// InitRequest describes a new data item to initialise. OID is optional:
// when set, the new uid joins an existing logical item as an additional
// copy or version.
type InitRequest struct {
	ItemName    string            `json:"item_name"`
	OID         string            `json:"oid,omitempty"`
	ItemVersion int               `json:"item_version,omitempty"`
	ItemType    common.ItemType   `json:"item_type,omitempty"`
	ItemFormat  string            `json:"item_format,omitempty"`
	Phase       common.Phase      `json:"phase,omitempty"`
	ItemTags    map[string]string `json:"item_tags,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	ItemOwner   string            `json:"item_owner,omitempty"`
	ItemGroup   string            `json:"item_group,omitempty"`

	// Expiration overrides; zero values select the defaults.
	UIDExpiration time.Time `json:"uid_expiration,omitempty"`
	OIDExpiration time.Time `json:"oid_expiration,omitempty"`

	// Parents are oids this item was derived from.
	Parents []string `json:"parents,omitempty"`
}

// InitDataItem inserts a data item in INITIALISED state and returns its uid.
func (s *Service) InitDataItem(ctx context.Context, req *InitRequest) (string, error) {
	item, err := s.buildItem(ctx, req)
	if err != nil {
		return "", err
	}

	inserted, err := s.catalog.InsertDataItem(ctx, item)
	if err != nil {
		if common.IsKind(err, common.KindCatalogConflict) {
			return "", common.Wrap(common.KindValueAlreadyInDB, err, "data item already initialised")
		}
		return "", err
	}

	if err := s.recordParents(ctx, inserted.OID, req.Parents); err != nil {
		// Compensate so a failed multi-step init leaves no orphan row.
		s.compensateDelete(ctx, inserted.UID)
		return "", err
	}

	s.logger.Info(ctx, "data item initialised",
		adapters.Field{Key: "oid", Value: inserted.OID},
		adapters.Field{Key: "uid", Value: inserted.UID},
		adapters.Field{Key: "item_name", Value: inserted.ItemName})
	return inserted.UID, nil
}

func (s *Service) buildItem(ctx context.Context, req *InitRequest) (*common.DataItem, error) {
	if req.ItemName == "" {
		return nil, common.E(common.KindInvalidQueryParameters, "item_name is required")
	}

	now := time.Now().UTC()
	item := &common.DataItem{
		OID:         req.OID,
		UID:         uuid.NewString(),
		ItemVersion: req.ItemVersion,
		ItemName:    req.ItemName,
		ItemType:    req.ItemType,
		ItemFormat:  req.ItemFormat,
		ItemTags:    req.ItemTags,
		Metadata:    req.Metadata,
		ItemOwner:   req.ItemOwner,
		ItemGroup:   req.ItemGroup,
		URI:         common.InlineURISentinel,
		ItemState:   common.StateInitialised,
		UIDPhase:    req.Phase,
		OIDPhase:    req.Phase,
		UIDCreation: now,
		OIDCreation: now,
	}

	if item.OID == "" {
		item.OID = uuid.NewString()
	} else {
		// Joining an existing logical item: inherit its oid-level fields.
		existing, err := s.catalog.SelectDataItems(ctx,
			catalog.And(catalog.Eq("oid", item.OID)),
			&catalog.SelectOptions{OrderBy: "uid_creation", Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			return nil, common.E(common.KindUnmetPrecondition, "oid %s not found", item.OID)
		}
		item.OIDCreation = existing[0].OIDCreation
		item.OIDExpiration = existing[0].OIDExpiration
		item.OIDPhase = existing[0].OIDPhase
	}
	if item.ItemVersion <= 0 {
		item.ItemVersion = 1
	}
	if item.ItemType == "" {
		item.ItemType = common.ItemTypeUnknown
	}
	if item.UIDPhase == "" {
		item.UIDPhase = common.PhaseGas
	} else if !item.UIDPhase.Valid() {
		return nil, common.E(common.KindInvalidQueryParameters, "unknown phase %q", item.UIDPhase)
	}
	if item.OIDPhase == "" {
		item.OIDPhase = common.PhaseGas
	}

	item.UIDExpiration = req.UIDExpiration
	if item.UIDExpiration.IsZero() {
		item.UIDExpiration = now.Add(s.uidExpiration)
	}
	if item.OIDExpiration.IsZero() {
		item.OIDExpiration = req.OIDExpiration
	}
	if item.OIDExpiration.IsZero() {
		item.OIDExpiration = common.EndOfCentury
	}
	if item.UIDExpiration.Before(item.UIDCreation) {
		return nil, common.E(common.KindInvalidQueryParameters, "uid_expiration precedes creation")
	}
	return item, nil
}

func (s *Service) recordParents(ctx context.Context, oid string, parents []string) error {
	for _, parent := range parents {
		if err := s.catalog.AddProvenance(ctx, parent, oid); err != nil {
			return err
		}
	}
	return nil
}

// compensateDelete removes a row inserted by a multi-step operation whose
// later step failed.
func (s *Service) compensateDelete(ctx context.Context, uid string) {
	if err := s.catalog.DeleteDataItems(ctx, catalog.And(catalog.Eq("uid", uid))); err != nil {
		s.logger.Error(ctx, "compensating delete failed",
			adapters.Field{Key: "uid", Value: uid},
			adapters.Field{Key: "error", Value: err.Error()})
	}
}

// RegisterRequest describes a payload already present on a storage backend.
type RegisterRequest struct {
	InitRequest

	// StorageID or StorageName identifies the hosting backend.
	StorageID   string `json:"storage_id,omitempty"`
	StorageName string `json:"storage_name,omitempty"`

	// Path is the item's path relative to the backend root. Empty defaults
	// to the item name.
	Path string `json:"path,omitempty"`

	ItemSize       int64  `json:"item_size,omitempty"`
	ItemChecksum   string `json:"item_checksum,omitempty"`
	ChecksumMethod string `json:"checksum_method,omitempty"`
}

// RegisterDataItem catalogs a payload that already sits on a backend and
// promotes it straight to READY. The backend must be reachable through the
// transfer agent and the payload must exist on it before anything is
// inserted. Duplicate live copies of the same item name on the same backend
// are rejected. Any failure after the insert triggers a compensating delete,
// so a failed registration leaves no catalog residue.
func (s *Service) RegisterDataItem(ctx context.Context, req *RegisterRequest) (string, error) {
	storage, err := s.resolveStorage(ctx, req.StorageID, req.StorageName)
	if err != nil {
		return "", err
	}

	uri := req.Path
	if uri == "" {
		uri = req.ItemName
	}
	if err := s.verifyPayload(ctx, storage, uri); err != nil {
		return "", err
	}

	duplicates, err := s.catalog.SelectDataItems(ctx, catalog.And(
		catalog.Eq("item_name", req.ItemName),
		catalog.Eq("storage_id", storage.StorageID),
		catalog.Neq("item_state", string(common.StateDeleted)),
	), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(duplicates) > 0 {
		return "", common.E(common.KindValueAlreadyInDB,
			"item %q already exists on storage %s", req.ItemName, storage.StorageName)
	}

	uid, err := s.InitDataItem(ctx, &req.InitRequest)
	if err != nil {
		return "", err
	}

	patch := catalog.Patch{
		"storage_id": storage.StorageID,
		"uri":        uri,
		"item_state": string(common.StateReady),
		"uid_phase":  string(storage.StoragePhase),
	}
	if req.ItemSize > 0 {
		patch["item_size"] = req.ItemSize
	}
	if req.ItemChecksum != "" {
		patch["item_checksum"] = req.ItemChecksum
		patch["checksum_method"] = req.ChecksumMethod
	}

	updated, err := s.catalog.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", uid)), patch)
	if err != nil || len(updated) == 0 {
		s.compensateDelete(ctx, uid)
		if err == nil {
			err = common.E(common.KindCatalogQuery, "registered item vanished during promotion")
		}
		return "", err
	}

	s.notifyMetadata(ctx, &updated[0])

	s.logger.Info(ctx, "data item registered",
		adapters.Field{Key: "oid", Value: updated[0].OID},
		adapters.Field{Key: "uid", Value: uid},
		adapters.Field{Key: "uri", Value: uri})
	return uid, nil
}

func (s *Service) resolveStorage(ctx context.Context, storageID, storageName string) (*common.Storage, error) {
	var sel catalog.Selector
	switch {
	case storageID != "":
		sel = catalog.And(catalog.Eq("storage_id", storageID))
	case storageName != "":
		sel = catalog.And(catalog.Eq("storage_name", storageName))
	default:
		return nil, common.E(common.KindInvalidQueryParameters,
			"either storage_id or storage_name is required")
	}
	storages, err := s.catalog.SelectStorages(ctx, sel, &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(storages) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "storage not found")
	}
	if !storages[0].StorageAvailable || storages[0].StorageRetired {
		return nil, common.E(common.KindUnmetPrecondition,
			"storage %s is not available", storages[0].StorageName)
	}
	return &storages[0], nil
}

// verifyPayload confirms through the transfer agent that the backend is
// reachable and the payload exists on it.
func (s *Service) verifyPayload(ctx context.Context, storage *common.Storage, uri string) error {
	fs := storage.StorageName + ":"
	if _, err := s.agent.About(ctx, fs); err != nil {
		return common.Wrap(common.KindUnmetPrecondition, err,
			"storage %s unreachable via transfer agent", storage.StorageName)
	}
	item, err := s.agent.Stat(ctx, fs, uri)
	if err != nil {
		return common.Wrap(common.KindUnmetPrecondition, err,
			"checking %q on storage %s", uri, storage.StorageName)
	}
	if item == nil {
		return common.E(common.KindUnmetPrecondition,
			"uri %q does not exist on storage %s", uri, storage.StorageName)
	}
	return nil
}

// notifyMetadata merges the item identity into its metadata document and
// forwards it, best effort.
func (s *Service) notifyMetadata(ctx context.Context, item *common.DataItem) {
	doc := make(map[string]any, len(item.Metadata)+2)
	for k, v := range item.Metadata {
		doc[k] = v
	}
	doc["uid"] = item.UID
	doc["item_name"] = item.ItemName
	s.sink.NotifyNewItem(ctx, doc)
}

// TransitionState moves a copy to the next lifecycle state, enforcing the
// state machine.
func (s *Service) TransitionState(ctx context.Context, uid string, next common.ItemState) (*common.DataItem, error) {
	if !next.Valid() {
		return nil, common.E(common.KindInvalidQueryParameters, "unknown state %q", next)
	}
	items, err := s.catalog.SelectDataItems(ctx,
		catalog.And(catalog.Eq("uid", uid)), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "uid %s not found", uid)
	}
	current := items[0].ItemState
	if !current.CanTransition(next) {
		return nil, common.E(common.KindUnmetPrecondition,
			"transition %s -> %s not allowed", current, next)
	}

	patch := catalog.Patch{"item_state": string(next)}
	now := time.Now().UTC()
	switch next {
	case common.StateExpired:
		patch["expired"] = true
	case common.StateDeleted:
		patch["deleted"] = true
		patch["uid_deletion"] = now
	}

	updated, err := s.catalog.UpdateDataItems(ctx, catalog.And(catalog.Eq("uid", uid)), patch)
	if err != nil {
		return nil, err
	}
	return &updated[0], nil
}
