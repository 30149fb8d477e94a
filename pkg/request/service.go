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

// Package request answers catalog queries and applies caller-driven updates
// to data items.
package request

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// Service is the request service.
type Service struct {
	catalog catalog.Catalog
	logger  adapters.Logger
}

// NewService creates the request service.
func NewService(cat catalog.Catalog, logger adapters.Logger) *Service {
	return &Service{catalog: cat, logger: logger}
}

// QueryDataItems returns data items matching the selector.
func (s *Service) QueryDataItems(ctx context.Context, sel catalog.Selector, opts *catalog.SelectOptions) ([]common.DataItem, error) {
	return s.catalog.SelectDataItems(ctx, sel, opts)
}

// ItemRef identifies a logical item or one of its copies by name, oid or
// uid. At least one selector must be set.
type ItemRef struct {
	ItemName string
	OID      string
	UID      string
}

func (r ItemRef) conds() ([]catalog.Cond, error) {
	var conds []catalog.Cond
	if r.ItemName != "" {
		conds = append(conds, catalog.Eq("item_name", r.ItemName))
	}
	if r.OID != "" {
		conds = append(conds, catalog.Eq("oid", r.OID))
	}
	if r.UID != "" {
		conds = append(conds, catalog.Eq("uid", r.UID))
	}
	if len(conds) == 0 {
		return nil, common.E(common.KindInvalidQueryParameters,
			"one of item_name, oid or uid is required")
	}
	return conds, nil
}

// QueryExists reports whether any matching copy is cataloged.
func (s *Service) QueryExists(ctx context.Context, ref ItemRef) (bool, error) {
	conds, err := ref.conds()
	if err != nil {
		return false, err
	}
	items, err := s.catalog.SelectDataItems(ctx,
		catalog.And(conds...), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// QueryExistsAndReady reports whether a matching READY copy exists.
func (s *Service) QueryExistsAndReady(ctx context.Context, ref ItemRef) (bool, error) {
	conds, err := ref.conds()
	if err != nil {
		return false, err
	}
	conds = append(conds, catalog.Eq("item_state", string(common.StateReady)))
	items, err := s.catalog.SelectDataItems(ctx,
		catalog.And(conds...), &catalog.SelectOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// QueryItemStorage returns the placements of every matching READY copy and
// stamps their last access time.
func (s *Service) QueryItemStorage(ctx context.Context, ref ItemRef) ([]common.ItemLocation, error) {
	conds, err := ref.conds()
	if err != nil {
		return nil, err
	}
	sel := catalog.And(append(conds, catalog.Eq("item_state", string(common.StateReady)))...)
	items, err := s.catalog.SelectDataItems(ctx, sel, nil)
	if err != nil {
		return nil, err
	}

	locations := make([]common.ItemLocation, 0, len(items))
	now := time.Now().UTC()
	for _, item := range items {
		locations = append(locations, common.ItemLocation{
			OID:       item.OID,
			UID:       item.UID,
			ItemName:  item.ItemName,
			StorageID: item.StorageID,
			URI:       item.URI,
		})
		if _, err := s.catalog.UpdateDataItems(ctx,
			catalog.And(catalog.Eq("uid", item.UID)),
			catalog.Patch{"last_access": now}); err != nil {
			s.logger.Warn(ctx, "last access update failed",
				adapters.Field{Key: "uid", Value: item.UID},
				adapters.Field{Key: "error", Value: err.Error()})
		}
	}
	return locations, nil
}

// QueryExpired returns READY copies whose TTL has elapsed, or will have
// elapsed offset from now. Copies the sweeper already moved past READY are
// not reported again.
func (s *Service) QueryExpired(ctx context.Context, offset time.Duration) ([]common.DataItem, error) {
	cutoff := time.Now().UTC().Add(offset)
	sel := catalog.And(
		catalog.Eq("item_state", string(common.StateReady)),
		catalog.Lt("uid_expiration", cutoff),
	)
	return s.catalog.SelectDataItems(ctx, sel,
		&catalog.SelectOptions{OrderBy: "uid_expiration", OrderDesc: true})
}

// QueryDeleted returns deleted copies, optionally narrowed to one uid.
func (s *Service) QueryDeleted(ctx context.Context, uid string) ([]common.DataItem, error) {
	sel := catalog.And(catalog.Eq("deleted", true))
	if uid != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("uid", uid))
	}
	return s.catalog.SelectDataItems(ctx, sel,
		&catalog.SelectOptions{OrderBy: "uid_deletion", OrderDesc: true})
}

// QueryNew returns copies created at or after the given time, optionally
// narrowed to one uid.
func (s *Service) QueryNew(ctx context.Context, since time.Time, uid string) ([]common.DataItem, error) {
	if since.IsZero() {
		return nil, common.E(common.KindInvalidQueryParameters, "since timestamp is required")
	}
	sel := catalog.And(catalog.Gte("uid_creation", since))
	if uid != "" {
		sel.Conds = append(sel.Conds, catalog.Eq("uid", uid))
	}
	return s.catalog.SelectDataItems(ctx, sel,
		&catalog.SelectOptions{OrderBy: "uid_creation"})
}

// UpdateDataItem patches one copy by uid.
func (s *Service) UpdateDataItem(ctx context.Context, uid string, patch catalog.Patch) (*common.DataItem, error) {
	if uid == "" {
		return nil, common.E(common.KindInvalidQueryParameters, "uid is required")
	}
	updated, err := s.catalog.UpdateDataItems(ctx,
		catalog.And(catalog.Eq("uid", uid)), patch)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "uid %s not found", uid)
	}
	return &updated[0], nil
}

// UpdateItemTags merges tags into every copy of an oid. Existing keys are
// overwritten, absent keys survive.
func (s *Service) UpdateItemTags(ctx context.Context, oid string, tags map[string]string) ([]common.DataItem, error) {
	if oid == "" {
		return nil, common.E(common.KindInvalidQueryParameters, "oid is required")
	}
	if len(tags) == 0 {
		return nil, common.E(common.KindInvalidQueryParameters, "tags are required")
	}
	items, err := s.catalog.SelectDataItems(ctx, catalog.And(catalog.Eq("oid", oid)), nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.E(common.KindUnmetPrecondition, "oid %s not found", oid)
	}

	result := make([]common.DataItem, 0, len(items))
	for _, item := range items {
		merged := make(map[string]string, len(item.ItemTags)+len(tags))
		for k, v := range item.ItemTags {
			merged[k] = v
		}
		for k, v := range tags {
			merged[k] = v
		}
		updated, err := s.catalog.UpdateDataItems(ctx,
			catalog.And(catalog.Eq("uid", item.UID)),
			catalog.Patch{"item_tags": merged})
		if err != nil {
			return nil, err
		}
		result = append(result, updated...)
	}
	return result, nil
}

// QueryProvenance returns the direct parents and children of an oid.
func (s *Service) QueryProvenance(ctx context.Context, oid string) (parents, children []string, err error) {
	if oid == "" {
		return nil, nil, common.E(common.KindInvalidQueryParameters, "oid is required")
	}
	return s.catalog.SelectProvenance(ctx, oid)
}
