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

// Canonical table keys. Physical table names are deployment configuration
// (see TableNames); selectors and patches are always validated against the
// canonical key.
const (
	TableLocations           = "locations"
	TableStorages            = "storages"
	TableStorageConfigs      = "storage_configs"
	TableDataItems           = "data_items"
	TableMigrations          = "migrations"
	TablePhaseChangeRequests = "phase_change_requests"
	TableProvenance          = "data_item_provenance"
)

// TableNames maps canonical table keys to physical table names.
type TableNames struct {
	Locations           string
	Storages            string
	StorageConfigs      string
	DataItems           string
	Migrations          string
	PhaseChangeRequests string
	Provenance          string
}

// DefaultTableNames returns the standard physical names.
func DefaultTableNames() TableNames {
	return TableNames{
		Locations:           "location",
		Storages:            "storage",
		StorageConfigs:      "storage_config",
		DataItems:           "data_item",
		Migrations:          "migration",
		PhaseChangeRequests: "phase_change_request",
		Provenance:          "data_item_provenance",
	}
}

func (t TableNames) physical(table string) string {
	switch table {
	case TableLocations:
		return t.Locations
	case TableStorages:
		return t.Storages
	case TableStorageConfigs:
		return t.StorageConfigs
	case TableDataItems:
		return t.DataItems
	case TableMigrations:
		return t.Migrations
	case TablePhaseChangeRequests:
		return t.PhaseChangeRequests
	case TableProvenance:
		return t.Provenance
	}
	return table
}

// locationColumns is the ordered physical column list of the location table.
var locationColumns = []string{
	"location_id", "location_name", "location_type", "location_country",
	"location_city", "location_facility", "location_check_url", "location_date",
}

var storageColumns = []string{
	"storage_id", "location_id", "storage_name", "storage_type",
	"storage_interface", "root_directory", "storage_phase", "storage_capacity",
	"storage_use_pct", "storage_permissions", "storage_checked",
	"storage_available", "storage_retired", "storage_date",
}

var storageConfigColumns = []string{
	"config_id", "storage_id", "config_type", "config", "config_date",
}

var dataItemColumns = []string{
	"oid", "uid", "item_version", "item_name", "item_type", "item_format",
	"item_encoding", "item_mime_type", "item_size", "item_checksum",
	"checksum_method", "compression", "item_tags", "acl", "metadata",
	"item_owner", "item_group", "storage_id", "uri", "item_state",
	"uid_phase", "oid_phase", "uid_creation", "uid_expiration", "uid_deletion",
	"oid_creation", "oid_expiration", "oid_deletion", "expired", "deleted",
	"last_access", "last_check",
}

var migrationColumns = []string{
	"migration_id", "job_id", "oid", "source_storage_id",
	"destination_storage_id", "migration_user", "job_status", "job_stats",
	"complete", "date", "completion_date",
}

var phaseChangeColumns = []string{
	"request_id", "oid", "requested_phase", "request_date",
}

func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}

// tableColumns is the per-table column whitelist used by the selector and
// patch compilers.
var tableColumns = map[string]map[string]bool{
	TableLocations:           columnSet(locationColumns),
	TableStorages:            columnSet(storageColumns),
	TableStorageConfigs:      columnSet(storageConfigColumns),
	TableDataItems:           columnSet(dataItemColumns),
	TableMigrations:          columnSet(migrationColumns),
	TablePhaseChangeRequests: columnSet(phaseChangeColumns),
}

// mutableColumns restricts which columns a patch may touch. Identities and
// creation timestamps are immutable once inserted.
var mutableColumns = map[string]map[string]bool{
	TableStorages: columnSet([]string{
		"storage_capacity", "storage_use_pct", "storage_permissions",
		"storage_checked", "storage_available", "storage_retired", "storage_phase",
	}),
	TableDataItems: columnSet([]string{
		"item_name", "item_format", "item_encoding", "item_mime_type",
		"item_size", "item_checksum", "checksum_method", "compression",
		"item_tags", "acl", "metadata", "item_owner", "item_group",
		"storage_id", "uri", "item_state", "uid_phase", "oid_phase",
		"uid_expiration", "uid_deletion", "oid_expiration", "oid_deletion",
		"expired", "deleted", "last_access", "last_check",
	}),
	TableMigrations: columnSet([]string{
		"job_status", "job_stats", "complete", "completion_date",
	}),
}
