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

// Package catalog implements the typed CRUD surface over the persistent DLM
// tables. Operations take a Selector (equality/comparison predicates over
// whitelisted columns) plus an optional mutation payload and return the
// affected rows. Operations are single-statement and atomic at the store;
// cross-row atomicity is serialized through the ingest and migration
// services.
package catalog

import (
	"context"
	"sort"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// Patch is a partial-row mutation keyed by column name. Columns are
// validated against the table's mutable-column whitelist.
type Patch map[string]any

func validatePatch(table string, patch Patch) error {
	if len(patch) == 0 {
		return common.E(common.KindInvalidQueryParameters, "empty patch for table %q", table)
	}
	mutable := mutableColumns[table]
	for column := range patch {
		if !mutable[column] {
			return common.E(common.KindInvalidQueryParameters,
				"column %q not mutable on table %q", column, table)
		}
	}
	return nil
}

// sortedPatchColumns returns the patch columns in deterministic order so the
// generated SQL is stable for identical patches.
func sortedPatchColumns(patch Patch) []string {
	columns := make([]string, 0, len(patch))
	for c := range patch {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// Catalog is the persistent-store abstraction consumed by every service.
// Store implements it over PostgreSQL; Memory implements it in-process for
// tests and development.
type Catalog interface {
	// Locations
	InsertLocation(ctx context.Context, loc *common.Location) (*common.Location, error)
	SelectLocations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Location, error)

	// Storage backends
	InsertStorage(ctx context.Context, storage *common.Storage) (*common.Storage, error)
	SelectStorages(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Storage, error)
	UpdateStorages(ctx context.Context, sel Selector, patch Patch) ([]common.Storage, error)

	// Storage configs
	InsertStorageConfig(ctx context.Context, config *common.StorageConfig) (*common.StorageConfig, error)
	SelectStorageConfigs(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.StorageConfig, error)

	// Data items
	InsertDataItem(ctx context.Context, item *common.DataItem) (*common.DataItem, error)
	SelectDataItems(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.DataItem, error)
	UpdateDataItems(ctx context.Context, sel Selector, patch Patch) ([]common.DataItem, error)
	DeleteDataItems(ctx context.Context, sel Selector) error

	// Migrations
	InsertMigration(ctx context.Context, migration *common.Migration) (*common.Migration, error)
	SelectMigrations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Migration, error)
	UpdateMigrations(ctx context.Context, sel Selector, patch Patch) ([]common.Migration, error)

	// Phase-change queue
	InsertPhaseChangeRequest(ctx context.Context, req *common.PhaseChangeRequest) (*common.PhaseChangeRequest, error)
	SelectPhaseChangeRequests(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.PhaseChangeRequest, error)
	DeletePhaseChangeRequests(ctx context.Context, sel Selector) error

	// Provenance DAG. AddProvenance rejects edges that would close a cycle.
	AddProvenance(ctx context.Context, parentOID, childOID string) error
	SelectProvenance(ctx context.Context, oid string) (parents, children []string, err error)

	Close() error
}
