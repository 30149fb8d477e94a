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

// Package common holds the catalog data model, the lifecycle state machine
// and the error taxonomy shared by every DLM service.
package common

import "time"

const (
	// InlineURISentinel is the uri placeholder a data item carries before
	// placement. An item in READY state must never carry it.
	InlineURISentinel = "inline://item_value"

	// DefaultUIDExpiration is the default TTL of a physical copy.
	DefaultUIDExpiration = 24 * time.Hour

	// CapacityUnknown marks a storage backend with undeclared capacity.
	CapacityUnknown int64 = -1
)

// EndOfCentury is the default expiration of a logical item (oid).
var EndOfCentury = time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)

// Location is a physical or logical site hosting storage backends.
type Location struct {
	LocationID       string       `json:"location_id"`
	LocationName     string       `json:"location_name"`
	LocationType     LocationType `json:"location_type"`
	LocationCountry  string       `json:"location_country,omitempty"`
	LocationCity     string       `json:"location_city,omitempty"`
	LocationFacility string       `json:"location_facility,omitempty"`
	LocationCheckURL string       `json:"location_check_url,omitempty"`
	LocationDate     time.Time    `json:"location_date"`
}

// Storage is a mountable/addressable storage target at a Location.
type Storage struct {
	StorageID          string    `json:"storage_id"`
	LocationID         string    `json:"location_id"`
	StorageName        string    `json:"storage_name"`
	StorageType        string    `json:"storage_type"`      // filesystem, objectstore, tape
	StorageInterface   string    `json:"storage_interface"` // posix, s3, sftp, https
	RootDirectory      string    `json:"root_directory,omitempty"`
	StoragePhase       Phase     `json:"storage_phase"`
	StorageCapacity    int64     `json:"storage_capacity"` // bytes, -1 = unknown
	StorageUse         int       `json:"storage_use_pct"`
	StoragePermissions string    `json:"storage_permissions,omitempty"`
	StorageChecked     bool      `json:"storage_checked"`
	StorageAvailable   bool      `json:"storage_available"`
	StorageRetired     bool      `json:"storage_retired"`
	StorageDate        time.Time `json:"storage_date"`
}

// StorageConfig describes how the transfer agent addresses one backend.
// The Config payload is typed by ConfigType (rclone, ssh, aws, gcs).
type StorageConfig struct {
	ConfigID   string         `json:"config_id"`
	StorageID  string         `json:"storage_id"`
	ConfigType string         `json:"config_type"`
	Config     map[string]any `json:"config"`
	ConfigDate time.Time      `json:"config_date"`
}

// DataItem is the catalog's central entity: one physical copy (uid) of one
// logical dataset (oid) on one storage backend.
type DataItem struct {
	OID         string `json:"oid"`
	UID         string `json:"uid"`
	ItemVersion int    `json:"item_version"`

	ItemName       string            `json:"item_name"`
	ItemType       ItemType          `json:"item_type"`
	ItemFormat     string            `json:"item_format,omitempty"`
	ItemEncoding   string            `json:"item_encoding,omitempty"`
	ItemMimeType   string            `json:"item_mime_type,omitempty"`
	ItemSize       int64             `json:"item_size"`
	ItemChecksum   string            `json:"item_checksum,omitempty"`
	ChecksumMethod string            `json:"checksum_method,omitempty"`
	Compression    string            `json:"compression,omitempty"`
	ItemTags       map[string]string `json:"item_tags,omitempty"`
	ACL            map[string]string `json:"acl,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	ItemOwner      string            `json:"item_owner,omitempty"`
	ItemGroup      string            `json:"item_group,omitempty"`

	StorageID string `json:"storage_id,omitempty"`
	URI       string `json:"uri"`

	ItemState ItemState `json:"item_state"`
	UIDPhase  Phase     `json:"uid_phase,omitempty"`
	OIDPhase  Phase     `json:"oid_phase,omitempty"`

	UIDCreation   time.Time  `json:"uid_creation"`
	UIDExpiration time.Time  `json:"uid_expiration"`
	UIDDeletion   *time.Time `json:"uid_deletion,omitempty"`
	OIDCreation   time.Time  `json:"oid_creation"`
	OIDExpiration time.Time  `json:"oid_expiration"`
	OIDDeletion   *time.Time `json:"oid_deletion,omitempty"`

	Expired    bool       `json:"expired"`
	Deleted    bool       `json:"deleted"`
	LastAccess *time.Time `json:"last_access,omitempty"`
	LastCheck  *time.Time `json:"last_check,omitempty"`
}

// Migration records one in-flight or completed copy between two backends.
type Migration struct {
	MigrationID          int64          `json:"migration_id"`
	JobID                int64          `json:"job_id"`
	OID                  string         `json:"oid"`
	SourceStorageID      string         `json:"source_storage_id"`
	DestinationStorageID string         `json:"destination_storage_id"`
	User                 string         `json:"user"`
	JobStatus            map[string]any `json:"job_status,omitempty"`
	JobStats             map[string]any `json:"job_stats,omitempty"`
	Complete             bool           `json:"complete"`
	Date                 time.Time      `json:"date"`
	CompletionDate       *time.Time     `json:"completion_date,omitempty"`
}

// PhaseChangeRequest queues a request to move an oid into a different
// resilience tier. Produced by policy, consumed by the migration controller.
type PhaseChangeRequest struct {
	RequestID      int64     `json:"request_id"`
	OID            string    `json:"oid"`
	RequestedPhase Phase     `json:"requested_phase"`
	RequestDate    time.Time `json:"request_date"`
}

// ItemLocation is one (storage, uri) placement of a ready copy, as returned
// by check_item_on_storage and query_item_storage.
type ItemLocation struct {
	OID       string `json:"oid"`
	UID       string `json:"uid"`
	ItemName  string `json:"item_name"`
	StorageID string `json:"storage_id"`
	URI       string `json:"uri"`
}
