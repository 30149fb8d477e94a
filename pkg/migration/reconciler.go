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

package migration

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
)

// DefaultReconcileInterval is the polling cadence for in-flight copies.
const DefaultReconcileInterval = 5 * time.Second

// reconcileBatch bounds how many in-flight migrations one tick examines.
const reconcileBatch = 1000

// Reconciler polls the transfer agent for in-flight copy jobs and settles
// their catalog state: destinations of successful copies become READY,
// failed ones are marked CORRUPTED.
type Reconciler struct {
	catalog  catalog.Catalog
	agent    rclone.Agent
	logger   adapters.Logger
	interval time.Duration
}

// NewReconciler creates a reconciler. A non-positive interval selects the
// default cadence.
func NewReconciler(cat catalog.Catalog, agent rclone.Agent, logger adapters.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{catalog: cat, agent: agent, logger: logger, interval: interval}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.logger.Error(ctx, "reconcile tick failed",
					adapters.Field{Key: "error", Value: err.Error()})
			}
		}
	}
}

// Tick settles every finished copy job it can observe. Agent outages are
// transient: affected migrations stay incomplete and are retried on the
// next tick.
func (r *Reconciler) Tick(ctx context.Context) error {
	migrations, err := r.catalog.SelectMigrations(ctx,
		catalog.And(catalog.Eq("complete", false)),
		&catalog.SelectOptions{OrderBy: "migration_id", Limit: reconcileBatch})
	if err != nil {
		return err
	}

	for i := range migrations {
		m := &migrations[i]
		status, err := r.agent.JobStatus(ctx, m.JobID)
		if err != nil {
			r.logger.Warn(ctx, "job status unavailable",
				adapters.Field{Key: "migration_id", Value: m.MigrationID},
				adapters.Field{Key: "job_id", Value: m.JobID},
				adapters.Field{Key: "error", Value: err.Error()})
			continue
		}
		finished, _ := status["finished"].(bool)
		if !finished {
			continue
		}
		success, _ := status["success"].(bool)

		stats, err := r.agent.CoreStats(ctx, rclone.StatsGroup(m.JobID))
		if err != nil {
			stats = nil
		}

		if err := r.settle(ctx, m, status, stats, success); err != nil {
			r.logger.Error(ctx, "settling migration failed",
				adapters.Field{Key: "migration_id", Value: m.MigrationID},
				adapters.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (r *Reconciler) settle(ctx context.Context, m *common.Migration, status, stats map[string]any, success bool) error {
	destSel := catalog.And(
		catalog.Eq("oid", m.OID),
		catalog.Eq("storage_id", m.DestinationStorageID),
		catalog.Eq("item_state", string(common.StateInitialised)),
	)

	nextState := common.StateReady
	if !success {
		// A failed copy corrupts the never-promoted destination copy.
		nextState = common.StateCorrupted
	}
	if _, err := r.catalog.UpdateDataItems(ctx, destSel,
		catalog.Patch{"item_state": string(nextState)}); err != nil {
		return err
	}

	now := time.Now().UTC()
	patch := catalog.Patch{
		"complete":        true,
		"completion_date": now,
	}
	if status != nil {
		patch["job_status"] = status
	}
	if stats != nil {
		patch["job_stats"] = stats
	}
	if _, err := r.catalog.UpdateMigrations(ctx,
		catalog.And(catalog.Eq("migration_id", m.MigrationID)), patch); err != nil {
		return err
	}

	r.logger.Info(ctx, "migration settled",
		adapters.Field{Key: "migration_id", Value: m.MigrationID},
		adapters.Field{Key: "job_id", Value: m.JobID},
		adapters.Field{Key: "success", Value: success})
	return nil
}
