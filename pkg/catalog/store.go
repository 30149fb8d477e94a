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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/jeremyhahn/go-dlm/pkg/catalog/migrations"
	"github.com/jeremyhahn/go-dlm/pkg/common"
)

const uniqueViolation = "23505"

// DefaultQueryTimeout bounds every statement issued by the store.
const DefaultQueryTimeout = 10 * time.Second

// Store implements Catalog over PostgreSQL through the pgx stdlib driver.
// The *sql.DB connection pool is a per-service singleton; callers may issue
// concurrent requests.
type Store struct {
	db      *sql.DB
	tables  TableNames
	timeout time.Duration
}

// NewStore opens a connection pool for the given DSN. Schema migrations are
// applied separately via Migrate.
func NewStore(dsn string, tables TableNames) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, common.Wrap(common.KindCatalogUnavailable, err, "open catalog store")
	}
	return &Store{db: db, tables: tables, timeout: DefaultQueryTimeout}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return common.Wrap(common.KindCatalogUnavailable, err, "apply catalog migrations")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps driver errors into the catalog error taxonomy. Uniqueness
// violations become DatabaseOperationError; unreachable-store conditions
// become CatalogUnavailable; everything else is a CatalogQueryError carrying
// the table and selector for diagnostics.
func classify(err error, table, diag string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return common.Wrap(common.KindCatalogConflict, err, "uniqueness violation on %s", table)
		}
		return common.Wrap(common.KindCatalogQuery, err, "table=%s %s", table, diag)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return common.Wrap(common.KindCatalogUnavailable, err, "catalog unreachable (table=%s)", table)
	}
	return common.Wrap(common.KindCatalogUnavailable, err, "table=%s %s", table, diag)
}

func marshalMap(m any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalStringMap(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func unmarshalAnyMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// insertReturning runs INSERT ... RETURNING over the full column list.
func (s *Store) insertReturning(ctx context.Context, table string, columns []string, values []any) (*sql.Row, error) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.tables.physical(table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(columns, ", "))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.QueryRowContext(ctx, query, values...), nil
}

// selectRows runs SELECT over the full column list with selector + options.
func (s *Store) selectRows(ctx context.Context, table string, columns []string, sel Selector, opts *SelectOptions) (*sql.Rows, error) {
	where, args, err := compileSelector(table, sel, 1)
	if err != nil {
		return nil, err
	}
	_, tail, err := compileOptions(table, opts)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), s.tables.physical(table))
	if where != "" {
		query += " WHERE " + where
	}
	query += tail

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, table, fmt.Sprintf("selector=%v", sel))
	}
	return rows, nil
}

// updateRows runs UPDATE ... RETURNING over the full column list.
func (s *Store) updateRows(ctx context.Context, table string, columns []string, sel Selector, patch Patch) (*sql.Rows, error) {
	if err := validatePatch(table, patch); err != nil {
		return nil, err
	}
	if sel.Empty() {
		return nil, common.E(common.KindInvalidQueryParameters, "update on %q requires a selector", table)
	}

	var (
		sets []string
		args []any
	)
	n := 1
	for _, column := range sortedPatchColumns(patch) {
		value := patch[column]
		switch v := value.(type) {
		case map[string]string, map[string]any:
			raw, err := marshalMap(v)
			if err != nil {
				return nil, common.Wrap(common.KindInvalidQueryParameters, err, "patch column %q", column)
			}
			value = raw
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, value)
		n++
	}

	where, whereArgs, err := compileSelector(table, sel, n)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		s.tables.physical(table), strings.Join(sets, ", "), where, strings.Join(columns, ", "))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, table, fmt.Sprintf("selector=%v patch=%v", sel, sortedPatchColumns(patch)))
	}
	return rows, nil
}

func (s *Store) deleteRows(ctx context.Context, table string, sel Selector) error {
	if sel.Empty() {
		return common.E(common.KindInvalidQueryParameters, "delete on %q requires a selector", table)
	}
	where, args, err := compileSelector(table, sel, 1)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", s.tables.physical(table), where)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(err, table, fmt.Sprintf("selector=%v", sel))
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (*common.Location, error) {
	var loc common.Location
	err := row.Scan(&loc.LocationID, &loc.LocationName, &loc.LocationType,
		&loc.LocationCountry, &loc.LocationCity, &loc.LocationFacility,
		&loc.LocationCheckURL, &loc.LocationDate)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanStorage(row scanner) (*common.Storage, error) {
	var st common.Storage
	err := row.Scan(&st.StorageID, &st.LocationID, &st.StorageName,
		&st.StorageType, &st.StorageInterface, &st.RootDirectory,
		&st.StoragePhase, &st.StorageCapacity, &st.StorageUse,
		&st.StoragePermissions, &st.StorageChecked, &st.StorageAvailable,
		&st.StorageRetired, &st.StorageDate)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func scanStorageConfig(row scanner) (*common.StorageConfig, error) {
	var (
		cfg common.StorageConfig
		raw []byte
	)
	err := row.Scan(&cfg.ConfigID, &cfg.StorageID, &cfg.ConfigType, &raw, &cfg.ConfigDate)
	if err != nil {
		return nil, err
	}
	cfg.Config = unmarshalAnyMap(raw)
	return &cfg, nil
}

func scanDataItem(row scanner) (*common.DataItem, error) {
	var (
		d                     common.DataItem
		tags, acl, metadata   []byte
		storageID             sql.NullString
		uidDeletion           sql.NullTime
		oidDeletion           sql.NullTime
		lastAccess, lastCheck sql.NullTime
	)
	err := row.Scan(&d.OID, &d.UID, &d.ItemVersion, &d.ItemName, &d.ItemType,
		&d.ItemFormat, &d.ItemEncoding, &d.ItemMimeType, &d.ItemSize,
		&d.ItemChecksum, &d.ChecksumMethod, &d.Compression, &tags, &acl,
		&metadata, &d.ItemOwner, &d.ItemGroup, &storageID, &d.URI,
		&d.ItemState, &d.UIDPhase, &d.OIDPhase, &d.UIDCreation,
		&d.UIDExpiration, &uidDeletion, &d.OIDCreation, &d.OIDExpiration,
		&oidDeletion, &d.Expired, &d.Deleted, &lastAccess, &lastCheck)
	if err != nil {
		return nil, err
	}
	d.ItemTags = unmarshalStringMap(tags)
	d.ACL = unmarshalStringMap(acl)
	d.Metadata = unmarshalAnyMap(metadata)
	d.StorageID = storageID.String
	d.UIDDeletion = timePtr(uidDeletion)
	d.OIDDeletion = timePtr(oidDeletion)
	d.LastAccess = timePtr(lastAccess)
	d.LastCheck = timePtr(lastCheck)
	return &d, nil
}

func scanMigration(row scanner) (*common.Migration, error) {
	var (
		m              common.Migration
		status, stats  []byte
		completionDate sql.NullTime
	)
	err := row.Scan(&m.MigrationID, &m.JobID, &m.OID, &m.SourceStorageID,
		&m.DestinationStorageID, &m.User, &status, &stats, &m.Complete,
		&m.Date, &completionDate)
	if err != nil {
		return nil, err
	}
	m.JobStatus = unmarshalAnyMap(status)
	m.JobStats = unmarshalAnyMap(stats)
	m.CompletionDate = timePtr(completionDate)
	return &m, nil
}

func scanPhaseChange(row scanner) (*common.PhaseChangeRequest, error) {
	var req common.PhaseChangeRequest
	if err := row.Scan(&req.RequestID, &req.OID, &req.RequestedPhase, &req.RequestDate); err != nil {
		return nil, err
	}
	return &req, nil
}

// InsertLocation inserts a location row and returns it.
func (s *Store) InsertLocation(ctx context.Context, loc *common.Location) (*common.Location, error) {
	row, err := s.insertReturning(ctx, TableLocations, locationColumns, []any{
		loc.LocationID, loc.LocationName, loc.LocationType, loc.LocationCountry,
		loc.LocationCity, loc.LocationFacility, loc.LocationCheckURL, loc.LocationDate,
	})
	if err != nil {
		return nil, err
	}
	inserted, err := scanLocation(row)
	if err != nil {
		return nil, classify(err, TableLocations, "insert")
	}
	return inserted, nil
}

// SelectLocations returns the locations matching the selector.
func (s *Store) SelectLocations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Location, error) {
	rows, err := s.selectRows(ctx, TableLocations, locationColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, classify(err, TableLocations, "scan")
		}
		result = append(result, *loc)
	}
	return result, rows.Err()
}

// InsertStorage inserts a storage backend row and returns it.
func (s *Store) InsertStorage(ctx context.Context, storage *common.Storage) (*common.Storage, error) {
	row, err := s.insertReturning(ctx, TableStorages, storageColumns, []any{
		storage.StorageID, storage.LocationID, storage.StorageName,
		storage.StorageType, storage.StorageInterface, storage.RootDirectory,
		storage.StoragePhase, storage.StorageCapacity, storage.StorageUse,
		storage.StoragePermissions, storage.StorageChecked,
		storage.StorageAvailable, storage.StorageRetired, storage.StorageDate,
	})
	if err != nil {
		return nil, err
	}
	inserted, err := scanStorage(row)
	if err != nil {
		return nil, classify(err, TableStorages, "insert")
	}
	return inserted, nil
}

// SelectStorages returns the storage backends matching the selector.
func (s *Store) SelectStorages(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Storage, error) {
	rows, err := s.selectRows(ctx, TableStorages, storageColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.Storage
	for rows.Next() {
		st, err := scanStorage(rows)
		if err != nil {
			return nil, classify(err, TableStorages, "scan")
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

// UpdateStorages patches the storage backends matching the selector.
func (s *Store) UpdateStorages(ctx context.Context, sel Selector, patch Patch) ([]common.Storage, error) {
	rows, err := s.updateRows(ctx, TableStorages, storageColumns, sel, patch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.Storage
	for rows.Next() {
		st, err := scanStorage(rows)
		if err != nil {
			return nil, classify(err, TableStorages, "scan")
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

// InsertStorageConfig inserts a storage config row and returns it.
func (s *Store) InsertStorageConfig(ctx context.Context, config *common.StorageConfig) (*common.StorageConfig, error) {
	raw, err := marshalMap(config.Config)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode storage config")
	}
	row, err := s.insertReturning(ctx, TableStorageConfigs, storageConfigColumns, []any{
		config.ConfigID, config.StorageID, config.ConfigType, raw, config.ConfigDate,
	})
	if err != nil {
		return nil, err
	}
	inserted, err := scanStorageConfig(row)
	if err != nil {
		return nil, classify(err, TableStorageConfigs, "insert")
	}
	return inserted, nil
}

// SelectStorageConfigs returns the configs matching the selector.
func (s *Store) SelectStorageConfigs(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.StorageConfig, error) {
	rows, err := s.selectRows(ctx, TableStorageConfigs, storageConfigColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.StorageConfig
	for rows.Next() {
		cfg, err := scanStorageConfig(rows)
		if err != nil {
			return nil, classify(err, TableStorageConfigs, "scan")
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

// InsertDataItem inserts a data item row and returns it.
func (s *Store) InsertDataItem(ctx context.Context, item *common.DataItem) (*common.DataItem, error) {
	tags, err := marshalMap(item.ItemTags)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode item tags")
	}
	acl, err := marshalMap(item.ACL)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode acl")
	}
	metadata, err := marshalMap(item.Metadata)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode metadata")
	}

	row, err := s.insertReturning(ctx, TableDataItems, dataItemColumns, []any{
		item.OID, item.UID, item.ItemVersion, item.ItemName, item.ItemType,
		item.ItemFormat, item.ItemEncoding, item.ItemMimeType, item.ItemSize,
		item.ItemChecksum, item.ChecksumMethod, item.Compression, tags, acl,
		metadata, item.ItemOwner, item.ItemGroup, nullString(item.StorageID),
		item.URI, item.ItemState, item.UIDPhase, item.OIDPhase,
		item.UIDCreation, item.UIDExpiration, nullTime(item.UIDDeletion),
		item.OIDCreation, item.OIDExpiration, nullTime(item.OIDDeletion),
		item.Expired, item.Deleted, nullTime(item.LastAccess), nullTime(item.LastCheck),
	})
	if err != nil {
		return nil, err
	}
	inserted, err := scanDataItem(row)
	if err != nil {
		return nil, classify(err, TableDataItems, "insert")
	}
	return inserted, nil
}

// SelectDataItems returns the data items matching the selector.
func (s *Store) SelectDataItems(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.DataItem, error) {
	rows, err := s.selectRows(ctx, TableDataItems, dataItemColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.DataItem
	for rows.Next() {
		d, err := scanDataItem(rows)
		if err != nil {
			return nil, classify(err, TableDataItems, "scan")
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// UpdateDataItems patches the data items matching the selector and returns
// the affected rows.
func (s *Store) UpdateDataItems(ctx context.Context, sel Selector, patch Patch) ([]common.DataItem, error) {
	rows, err := s.updateRows(ctx, TableDataItems, dataItemColumns, sel, patch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.DataItem
	for rows.Next() {
		d, err := scanDataItem(rows)
		if err != nil {
			return nil, classify(err, TableDataItems, "scan")
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// DeleteDataItems removes the data items matching the selector. Used only
// as the compensating action of a failed registration.
func (s *Store) DeleteDataItems(ctx context.Context, sel Selector) error {
	return s.deleteRows(ctx, TableDataItems, sel)
}

// InsertMigration inserts a migration row. The monotonic migration_id is
// assigned by the store.
func (s *Store) InsertMigration(ctx context.Context, migration *common.Migration) (*common.Migration, error) {
	status, err := marshalMap(migration.JobStatus)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode job status")
	}
	stats, err := marshalMap(migration.JobStats)
	if err != nil {
		return nil, common.Wrap(common.KindInvalidQueryParameters, err, "encode job stats")
	}

	columns := migrationColumns[1:] // migration_id is generated
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.tables.physical(TableMigrations),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(migrationColumns, ", "))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query,
		migration.JobID, migration.OID, migration.SourceStorageID,
		migration.DestinationStorageID, migration.User, status, stats,
		migration.Complete, migration.Date, nullTime(migration.CompletionDate))

	inserted, err := scanMigration(row)
	if err != nil {
		return nil, classify(err, TableMigrations, "insert")
	}
	return inserted, nil
}

// SelectMigrations returns the migrations matching the selector.
func (s *Store) SelectMigrations(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.Migration, error) {
	rows, err := s.selectRows(ctx, TableMigrations, migrationColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.Migration
	for rows.Next() {
		m, err := scanMigration(rows)
		if err != nil {
			return nil, classify(err, TableMigrations, "scan")
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

// UpdateMigrations patches the migrations matching the selector.
func (s *Store) UpdateMigrations(ctx context.Context, sel Selector, patch Patch) ([]common.Migration, error) {
	rows, err := s.updateRows(ctx, TableMigrations, migrationColumns, sel, patch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.Migration
	for rows.Next() {
		m, err := scanMigration(rows)
		if err != nil {
			return nil, classify(err, TableMigrations, "scan")
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

// InsertPhaseChangeRequest enqueues a phase-change request.
func (s *Store) InsertPhaseChangeRequest(ctx context.Context, req *common.PhaseChangeRequest) (*common.PhaseChangeRequest, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (oid, requested_phase, request_date) VALUES ($1, $2, $3) RETURNING %s",
		s.tables.physical(TablePhaseChangeRequests), strings.Join(phaseChangeColumns, ", "))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, req.OID, req.RequestedPhase, req.RequestDate)

	inserted, err := scanPhaseChange(row)
	if err != nil {
		return nil, classify(err, TablePhaseChangeRequests, "insert")
	}
	return inserted, nil
}

// SelectPhaseChangeRequests returns queued requests matching the selector.
func (s *Store) SelectPhaseChangeRequests(ctx context.Context, sel Selector, opts *SelectOptions) ([]common.PhaseChangeRequest, error) {
	rows, err := s.selectRows(ctx, TablePhaseChangeRequests, phaseChangeColumns, sel, opts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []common.PhaseChangeRequest
	for rows.Next() {
		req, err := scanPhaseChange(rows)
		if err != nil {
			return nil, classify(err, TablePhaseChangeRequests, "scan")
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// DeletePhaseChangeRequests dequeues the requests matching the selector.
func (s *Store) DeletePhaseChangeRequests(ctx context.Context, sel Selector) error {
	return s.deleteRows(ctx, TablePhaseChangeRequests, sel)
}

// AddProvenance records a parent/child edge in the provenance DAG. The edge
// is rejected when the child already reaches the parent (cycle).
func (s *Store) AddProvenance(ctx context.Context, parentOID, childOID string) error {
	if parentOID == childOID {
		return common.E(common.KindInvalidQueryParameters, "provenance edge would form a cycle")
	}

	reachable, err := s.reaches(ctx, childOID, parentOID)
	if err != nil {
		return err
	}
	if reachable {
		return common.E(common.KindInvalidQueryParameters,
			"provenance edge %s -> %s would form a cycle", parentOID, childOID)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (parent_oid, child_oid) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		s.tables.physical(TableProvenance))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, query, parentOID, childOID); err != nil {
		return classify(err, TableProvenance, "insert")
	}
	return nil
}

// reaches walks the DAG downward from oid looking for target.
func (s *Store) reaches(ctx context.Context, oid, target string) (bool, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE descendants AS (
			SELECT child_oid FROM %[1]s WHERE parent_oid = $1
			UNION
			SELECT p.child_oid FROM %[1]s p
			JOIN descendants d ON p.parent_oid = d.child_oid
		)
		SELECT EXISTS (SELECT 1 FROM descendants WHERE child_oid = $2)`,
		s.tables.physical(TableProvenance))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, oid, target).Scan(&exists); err != nil {
		return false, classify(err, TableProvenance, "reachability")
	}
	return exists, nil
}

// SelectProvenance returns the direct parents and children of an oid.
func (s *Store) SelectProvenance(ctx context.Context, oid string) (parents, children []string, err error) {
	table := s.tables.physical(TableProvenance)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT parent_oid FROM %s WHERE child_oid = $1", table), oid)
	if err != nil {
		return nil, nil, classify(err, TableProvenance, "parents")
	}
	defer rows.Close()
	for rows.Next() {
		var parent string
		if err := rows.Scan(&parent); err != nil {
			return nil, nil, classify(err, TableProvenance, "scan")
		}
		parents = append(parents, parent)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, classify(err, TableProvenance, "parents")
	}

	childRows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT child_oid FROM %s WHERE parent_oid = $1", table), oid)
	if err != nil {
		return nil, nil, classify(err, TableProvenance, "children")
	}
	defer childRows.Close()
	for childRows.Next() {
		var child string
		if err := childRows.Scan(&child); err != nil {
			return nil, nil, classify(err, TableProvenance, "scan")
		}
		children = append(children, child)
	}
	return parents, children, childRows.Err()
}
