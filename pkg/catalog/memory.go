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

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// Memory is an in-process Catalog used by tests and development
// deployments. It enforces the same uniqueness constraints and selector
// semantics as the SQL store.
type Memory struct {
	mu           sync.RWMutex
	locations    []common.Location
	storages     []common.Storage
	configs      []common.StorageConfig
	items        []common.DataItem
	migrations   []common.Migration
	phaseChanges []common.PhaseChangeRequest
	provenance   map[string][]string // parent oid -> child oids

	migrationSeq   atomic.Int64
	phaseChangeSeq atomic.Int64
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{provenance: make(map[string][]string)}
}

// Close is a no-op for the in-memory catalog.
func (m *Memory) Close() error { return nil }

// match evaluates a selector against a row exposed through a column getter.
func match(table string, sel Selector, get func(string) any) (bool, error) {
	if sel.Empty() {
		return true, nil
	}
	columns := tableColumns[table]

	evalCond := func(c Cond) (bool, error) {
		if !columns[c.Column] {
			return false, common.E(common.KindInvalidQueryParameters,
				"column %q not queryable on table %q", c.Column, table)
		}
		return evalPredicate(get(c.Column), c.Op, c.Value)
	}

	results := make([]bool, 0, len(sel.Conds)+len(sel.Nested))
	for _, c := range sel.Conds {
		ok, err := evalCond(c)
		if err != nil {
			return false, err
		}
		results = append(results, ok)
	}
	for _, nested := range sel.Nested {
		ok, err := match(table, nested, get)
		if err != nil {
			return false, err
		}
		results = append(results, ok)
	}

	if sel.Disjunction {
		for _, r := range results {
			if r {
				return true, nil
			}
		}
		return false, nil
	}
	for _, r := range results {
		if !r {
			return false, nil
		}
	}
	return true, nil
}

func evalPredicate(have any, op Op, want any) (bool, error) {
	if op == OpIn {
		values, ok := want.([]any)
		if !ok || len(values) == 0 {
			return false, common.E(common.KindInvalidQueryParameters,
				"in predicate requires a non-empty value list")
		}
		for _, v := range values {
			if cmp, ok := compareValues(have, v); ok && cmp == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	if op == OpLike || op == OpILike {
		pattern, ok := want.(string)
		if !ok {
			return false, common.E(common.KindInvalidQueryParameters, "pattern must be a string")
		}
		subject := fmt.Sprintf("%v", have)
		return likeMatch(subject, pattern, op == OpILike), nil
	}

	cmp, ok := compareValues(have, want)
	if !ok {
		return false, nil
	}
	switch op {
	case OpEq:
		return cmp == 0, nil
	case OpNeq:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLte:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGte:
		return cmp >= 0, nil
	}
	return false, common.E(common.KindInvalidQueryParameters, "unknown operator %q", op)
}

// compareValues orders two loosely typed values. Booleans only support
// equality; numerics are widened to float64; everything stringish compares
// as strings.
func compareValues(a, b any) (int, bool) {
	if at, ok := toTime(a); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if ab == bb {
			return 0, true
		}
		return 1, true
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)), true
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// likeMatch implements SQL LIKE semantics (% and _ wildcards).
func likeMatch(subject, pattern string, insensitive bool) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	expr := b.String()
	if insensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}

func applyOptions[T any](rows []T, table string, opts *SelectOptions, get func(*T, string) any) ([]T, error) {
	limit := DefaultLimit
	if opts != nil && opts.Limit > 0 {
		limit = opts.Limit
	}
	if opts != nil && opts.OrderBy != "" {
		if !tableColumns[table][opts.OrderBy] {
			return nil, common.E(common.KindInvalidQueryParameters,
				"column %q not orderable on table %q", opts.OrderBy, table)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			cmp, _ := compareValues(get(&rows[i], opts.OrderBy), get(&rows[j], opts.OrderBy))
			if opts.OrderDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func locationColumn(l *common.Location, column string) any {
	switch column {
	case "location_id":
		return l.LocationID
	case "location_name":
		return l.LocationName
	case "location_type":
		return string(l.LocationType)
	case "location_country":
		return l.LocationCountry
	case "location_city":
		return l.LocationCity
	case "location_facility":
		return l.LocationFacility
	case "location_check_url":
		return l.LocationCheckURL
	case "location_date":
		return l.LocationDate
	}
	return nil
}

func storageColumn(s *common.Storage, column string) any {
	switch column {
	case "storage_id":
		return s.StorageID
	case "location_id":
		return s.LocationID
	case "storage_name":
		return s.StorageName
	case "storage_type":
		return s.StorageType
	case "storage_interface":
		return s.StorageInterface
	case "root_directory":
		return s.RootDirectory
	case "storage_phase":
		return string(s.StoragePhase)
	case "storage_capacity":
		return s.StorageCapacity
	case "storage_use_pct":
		return s.StorageUse
	case "storage_permissions":
		return s.StoragePermissions
	case "storage_checked":
		return s.StorageChecked
	case "storage_available":
		return s.StorageAvailable
	case "storage_retired":
		return s.StorageRetired
	case "storage_date":
		return s.StorageDate
	}
	return nil
}

func storageConfigColumn(c *common.StorageConfig, column string) any {
	switch column {
	case "config_id":
		return c.ConfigID
	case "storage_id":
		return c.StorageID
	case "config_type":
		return c.ConfigType
	case "config_date":
		return c.ConfigDate
	}
	return nil
}

func dataItemColumn(d *common.DataItem, column string) any {
	switch column {
	case "oid":
		return d.OID
	case "uid":
		return d.UID
	case "item_version":
		return d.ItemVersion
	case "item_name":
		return d.ItemName
	case "item_type":
		return string(d.ItemType)
	case "item_format":
		return d.ItemFormat
	case "item_encoding":
		return d.ItemEncoding
	case "item_mime_type":
		return d.ItemMimeType
	case "item_size":
		return d.ItemSize
	case "item_checksum":
		return d.ItemChecksum
	case "checksum_method":
		return d.ChecksumMethod
	case "compression":
		return d.Compression
	case "item_owner":
		return d.ItemOwner
	case "item_group":
		return d.ItemGroup
	case "storage_id":
		return d.StorageID
	case "uri":
		return d.URI
	case "item_state":
		return string(d.ItemState)
	case "uid_phase":
		return string(d.UIDPhase)
	case "oid_phase":
		return string(d.OIDPhase)
	case "uid_creation":
		return d.UIDCreation
	case "uid_expiration":
		return d.UIDExpiration
	case "uid_deletion":
		return d.UIDDeletion
	case "oid_creation":
		return d.OIDCreation
	case "oid_expiration":
		return d.OIDExpiration
	case "oid_deletion":
		return d.OIDDeletion
	case "expired":
		return d.Expired
	case "deleted":
		return d.Deleted
	case "last_access":
		return d.LastAccess
	case "last_check":
		return d.LastCheck
	}
	return nil
}

func migrationColumn(m *common.Migration, column string) any {
	switch column {
	case "migration_id":
		return m.MigrationID
	case "job_id":
		return m.JobID
	case "oid":
		return m.OID
	case "source_storage_id":
		return m.SourceStorageID
	case "destination_storage_id":
		return m.DestinationStorageID
	case "migration_user":
		return m.User
	case "complete":
		return m.Complete
	case "date":
		return m.Date
	case "completion_date":
		return m.CompletionDate
	}
	return nil
}

func phaseChangeColumn(p *common.PhaseChangeRequest, column string) any {
	switch column {
	case "request_id":
		return p.RequestID
	case "oid":
		return p.OID
	case "requested_phase":
		return string(p.RequestedPhase)
	case "request_date":
		return p.RequestDate
	}
	return nil
}

// InsertLocation inserts a location, enforcing name uniqueness.
func (m *Memory) InsertLocation(ctx context.Context, loc *common.Location) (*common.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.locations {
		if m.locations[i].LocationName == loc.LocationName {
			return nil, common.E(common.KindCatalogConflict,
				"uniqueness violation on %s", TableLocations)
		}
	}
	m.locations = append(m.locations, *loc)
	inserted := *loc
	return &inserted, nil
}

// SelectLocations returns the locations matching the selector.
func (m *Memory) SelectLocations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.Location
	for i := range m.locations {
		l := m.locations[i]
		ok, err := match(TableLocations, sel, func(c string) any { return locationColumn(&l, c) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, l)
		}
	}
	return applyOptions(result, TableLocations, opts, locationColumn)
}

// InsertStorage inserts a storage backend, enforcing name uniqueness.
func (m *Memory) InsertStorage(ctx context.Context, storage *common.Storage) (*common.Storage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.storages {
		if m.storages[i].StorageName == storage.StorageName {
			return nil, common.E(common.KindCatalogConflict,
				"uniqueness violation on %s", TableStorages)
		}
	}
	m.storages = append(m.storages, *storage)
	inserted := *storage
	return &inserted, nil
}

// SelectStorages returns the storage backends matching the selector.
func (m *Memory) SelectStorages(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Storage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.Storage
	for i := range m.storages {
		s := m.storages[i]
		ok, err := match(TableStorages, sel, func(c string) any { return storageColumn(&s, c) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, s)
		}
	}
	return applyOptions(result, TableStorages, opts, storageColumn)
}

// UpdateStorages patches matching storage backends.
func (m *Memory) UpdateStorages(ctx context.Context, sel Selector, patch Patch) ([]common.Storage, error) {
	if err := validatePatch(TableStorages, patch); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []common.Storage
	for i := range m.storages {
		s := m.storages[i]
		ok, err := match(TableStorages, sel, func(c string) any { return storageColumn(&s, c) })
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		applyStoragePatch(&m.storages[i], patch)
		result = append(result, m.storages[i])
	}
	return result, nil
}

func applyStoragePatch(s *common.Storage, patch Patch) {
	for column, value := range patch {
		switch column {
		case "storage_capacity":
			if v, ok := toFloat(value); ok {
				s.StorageCapacity = int64(v)
			}
		case "storage_use_pct":
			if v, ok := toFloat(value); ok {
				s.StorageUse = int(v)
			}
		case "storage_permissions":
			s.StoragePermissions, _ = value.(string)
		case "storage_checked":
			s.StorageChecked, _ = value.(bool)
		case "storage_available":
			s.StorageAvailable, _ = value.(bool)
		case "storage_retired":
			s.StorageRetired, _ = value.(bool)
		case "storage_phase":
			s.StoragePhase = common.Phase(fmt.Sprintf("%v", value))
		}
	}
}

// InsertStorageConfig inserts a storage config row.
func (m *Memory) InsertStorageConfig(ctx context.Context, config *common.StorageConfig) (*common.StorageConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, *config)
	inserted := *config
	return &inserted, nil
}

// SelectStorageConfigs returns configs matching the selector.
func (m *Memory) SelectStorageConfigs(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.StorageConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.StorageConfig
	for i := range m.configs {
		c := m.configs[i]
		ok, err := match(TableStorageConfigs, sel, func(col string) any { return storageConfigColumn(&c, col) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, c)
		}
	}
	return applyOptions(result, TableStorageConfigs, opts, storageConfigColumn)
}

// InsertDataItem inserts a data item, enforcing (oid, uid, item_version)
// uniqueness and the expiration checks.
func (m *Memory) InsertDataItem(ctx context.Context, item *common.DataItem) (*common.DataItem, error) {
	if item.UIDExpiration.Before(item.UIDCreation) || item.OIDExpiration.Before(item.OIDCreation) {
		return nil, common.E(common.KindCatalogQuery, "expiration precedes creation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		existing := &m.items[i]
		if existing.UID == item.UID ||
			(existing.OID == item.OID && existing.UID == item.UID && existing.ItemVersion == item.ItemVersion) {
			return nil, common.E(common.KindCatalogConflict,
				"uniqueness violation on %s", TableDataItems)
		}
	}
	m.items = append(m.items, *item)
	inserted := *item
	return &inserted, nil
}

// SelectDataItems returns data items matching the selector.
func (m *Memory) SelectDataItems(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.DataItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.DataItem
	for i := range m.items {
		d := m.items[i]
		ok, err := match(TableDataItems, sel, func(c string) any { return dataItemColumn(&d, c) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, d)
		}
	}
	return applyOptions(result, TableDataItems, opts, dataItemColumn)
}

// UpdateDataItems patches matching data items and returns them.
func (m *Memory) UpdateDataItems(ctx context.Context, sel Selector, patch Patch) ([]common.DataItem, error) {
	if err := validatePatch(TableDataItems, patch); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []common.DataItem
	for i := range m.items {
		d := m.items[i]
		ok, err := match(TableDataItems, sel, func(c string) any { return dataItemColumn(&d, c) })
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		applyDataItemPatch(&m.items[i], patch)
		result = append(result, m.items[i])
	}
	return result, nil
}

func applyDataItemPatch(d *common.DataItem, patch Patch) {
	for column, value := range patch {
		switch column {
		case "item_name":
			d.ItemName, _ = value.(string)
		case "item_format":
			d.ItemFormat, _ = value.(string)
		case "item_encoding":
			d.ItemEncoding, _ = value.(string)
		case "item_mime_type":
			d.ItemMimeType, _ = value.(string)
		case "item_size":
			if v, ok := toFloat(value); ok {
				d.ItemSize = int64(v)
			}
		case "item_checksum":
			d.ItemChecksum, _ = value.(string)
		case "checksum_method":
			d.ChecksumMethod, _ = value.(string)
		case "compression":
			d.Compression, _ = value.(string)
		case "item_tags":
			if v, ok := value.(map[string]string); ok {
				d.ItemTags = v
			}
		case "acl":
			if v, ok := value.(map[string]string); ok {
				d.ACL = v
			}
		case "metadata":
			if v, ok := value.(map[string]any); ok {
				d.Metadata = v
			}
		case "item_owner":
			d.ItemOwner, _ = value.(string)
		case "item_group":
			d.ItemGroup, _ = value.(string)
		case "storage_id":
			d.StorageID, _ = value.(string)
		case "uri":
			d.URI, _ = value.(string)
		case "item_state":
			d.ItemState = common.ItemState(fmt.Sprintf("%v", value))
		case "uid_phase":
			d.UIDPhase = common.Phase(fmt.Sprintf("%v", value))
		case "oid_phase":
			d.OIDPhase = common.Phase(fmt.Sprintf("%v", value))
		case "uid_expiration":
			if v, ok := toTime(value); ok {
				d.UIDExpiration = v
			}
		case "uid_deletion":
			if v, ok := toTime(value); ok {
				d.UIDDeletion = &v
			}
		case "oid_expiration":
			if v, ok := toTime(value); ok {
				d.OIDExpiration = v
			}
		case "oid_deletion":
			if v, ok := toTime(value); ok {
				d.OIDDeletion = &v
			}
		case "expired":
			d.Expired, _ = value.(bool)
		case "deleted":
			d.Deleted, _ = value.(bool)
		case "last_access":
			if v, ok := toTime(value); ok {
				d.LastAccess = &v
			}
		case "last_check":
			if v, ok := toTime(value); ok {
				d.LastCheck = &v
			}
		}
	}
}

// DeleteDataItems removes data items matching the selector.
func (m *Memory) DeleteDataItems(ctx context.Context, sel Selector) error {
	if sel.Empty() {
		return common.E(common.KindInvalidQueryParameters, "delete requires a selector")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for i := range m.items {
		d := m.items[i]
		ok, err := match(TableDataItems, sel, func(c string) any { return dataItemColumn(&d, c) })
		if err != nil {
			return err
		}
		if !ok {
			kept = append(kept, d)
		}
	}
	m.items = kept
	return nil
}

// InsertMigration inserts a migration, assigning the monotonic id.
func (m *Memory) InsertMigration(ctx context.Context, migration *common.Migration) (*common.Migration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *migration
	row.MigrationID = m.migrationSeq.Add(1)
	m.migrations = append(m.migrations, row)
	inserted := row
	return &inserted, nil
}

// SelectMigrations returns migrations matching the selector.
func (m *Memory) SelectMigrations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Migration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.Migration
	for i := range m.migrations {
		row := m.migrations[i]
		ok, err := match(TableMigrations, sel, func(c string) any { return migrationColumn(&row, c) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, row)
		}
	}
	return applyOptions(result, TableMigrations, opts, migrationColumn)
}

// UpdateMigrations patches matching migrations and returns them.
func (m *Memory) UpdateMigrations(ctx context.Context, sel Selector, patch Patch) ([]common.Migration, error) {
	if err := validatePatch(TableMigrations, patch); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []common.Migration
	for i := range m.migrations {
		row := m.migrations[i]
		ok, err := match(TableMigrations, sel, func(c string) any { return migrationColumn(&row, c) })
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		applyMigrationPatch(&m.migrations[i], patch)
		result = append(result, m.migrations[i])
	}
	return result, nil
}

func applyMigrationPatch(row *common.Migration, patch Patch) {
	for column, value := range patch {
		switch column {
		case "job_status":
			if v, ok := value.(map[string]any); ok {
				row.JobStatus = v
			}
		case "job_stats":
			if v, ok := value.(map[string]any); ok {
				row.JobStats = v
			}
		case "complete":
			row.Complete, _ = value.(bool)
		case "completion_date":
			if v, ok := toTime(value); ok {
				row.CompletionDate = &v
			}
		}
	}
}

// InsertPhaseChangeRequest enqueues a phase-change request.
func (m *Memory) InsertPhaseChangeRequest(ctx context.Context, req *common.PhaseChangeRequest) (*common.PhaseChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *req
	row.RequestID = m.phaseChangeSeq.Add(1)
	m.phaseChanges = append(m.phaseChanges, row)
	inserted := row
	return &inserted, nil
}

// SelectPhaseChangeRequests returns queued requests matching the selector.
func (m *Memory) SelectPhaseChangeRequests(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.PhaseChangeRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []common.PhaseChangeRequest
	for i := range m.phaseChanges {
		row := m.phaseChanges[i]
		ok, err := match(TablePhaseChangeRequests, sel, func(c string) any { return phaseChangeColumn(&row, c) })
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, row)
		}
	}
	return applyOptions(result, TablePhaseChangeRequests, opts, phaseChangeColumn)
}

// DeletePhaseChangeRequests dequeues requests matching the selector.
func (m *Memory) DeletePhaseChangeRequests(ctx context.Context, sel Selector) error {
	if sel.Empty() {
		return common.E(common.KindInvalidQueryParameters, "delete requires a selector")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.phaseChanges[:0]
	for i := range m.phaseChanges {
		row := m.phaseChanges[i]
		ok, err := match(TablePhaseChangeRequests, sel, func(c string) any { return phaseChangeColumn(&row, c) })
		if err != nil {
			return err
		}
		if !ok {
			kept = append(kept, row)
		}
	}
	m.phaseChanges = kept
	return nil
}

// AddProvenance records a parent/child edge, rejecting cycles.
func (m *Memory) AddProvenance(ctx context.Context, parentOID, childOID string) error {
	if parentOID == childOID {
		return common.E(common.KindInvalidQueryParameters, "provenance edge would form a cycle")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reaches(childOID, parentOID) {
		return common.E(common.KindInvalidQueryParameters,
			"provenance edge %s -> %s would form a cycle", parentOID, childOID)
	}
	for _, child := range m.provenance[parentOID] {
		if child == childOID {
			return nil
		}
	}
	m.provenance[parentOID] = append(m.provenance[parentOID], childOID)
	return nil
}

func (m *Memory) reaches(from, to string) bool {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if oid == to {
			return true
		}
		if seen[oid] {
			continue
		}
		seen[oid] = true
		stack = append(stack, m.provenance[oid]...)
	}
	return false
}

// SelectProvenance returns the direct parents and children of an oid.
func (m *Memory) SelectProvenance(ctx context.Context, oid string) (parents, children []string, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	children = append(children, m.provenance[oid]...)
	for parent, kids := range m.provenance {
		for _, child := range kids {
			if child == oid {
				parents = append(parents, parent)
			}
		}
	}
	return parents, children, nil
}
