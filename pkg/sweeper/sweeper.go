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

// Package sweeper retires physical copies whose TTL elapsed: READY copies
// past their expiration become EXPIRED, and expired payloads are deleted
// through the transfer agent before the copy is marked DELETED.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
)

// DefaultInterval is the sweep cadence.
const DefaultInterval = 2 * time.Second

// sweepBatch bounds how many copies one pass examines.
const sweepBatch = 1000

// Sweeper expires and deletes data item copies past their TTL.
type Sweeper struct {
	catalog  catalog.Catalog
	agent    rclone.Agent
	logger   adapters.Logger
	interval time.Duration

	lastTick atomic.Int64 // unix nanos
}

// New creates a sweeper. A non-positive interval selects the default.
func New(cat catalog.Catalog, agent rclone.Agent, logger adapters.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{catalog: cat, agent: agent, logger: logger, interval: interval}
}

// LastTick reports when the last sweep completed, zero before the first.
func (s *Sweeper) LastTick() time.Time {
	nanos := s.lastTick.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error(ctx, "sweep failed",
					adapters.Field{Key: "error", Value: err.Error()})
			}
		}
	}
}

// Tick runs one sweep: the expiration pass, then the deletion pass. Both
// passes are idempotent, so an interrupted sweep resumes cleanly.
func (s *Sweeper) Tick(ctx context.Context) error {
	now := time.Now().UTC()
	if err := s.expirePass(ctx, now); err != nil {
		return err
	}
	if err := s.deletePass(ctx); err != nil {
		return err
	}
	s.lastTick.Store(time.Now().UTC().UnixNano())
	return nil
}

// expirePass moves READY copies past their TTL into EXPIRED.
func (s *Sweeper) expirePass(ctx context.Context, now time.Time) error {
	expired, err := s.catalog.UpdateDataItems(ctx, catalog.And(
		catalog.Eq("item_state", string(common.StateReady)),
		catalog.Lte("uid_expiration", now),
	), catalog.Patch{
		"item_state": string(common.StateExpired),
		"expired":    true,
	})
	if err != nil {
		return err
	}
	for i := range expired {
		s.logger.Info(ctx, "copy expired",
			adapters.Field{Key: "uid", Value: expired[i].UID},
			adapters.Field{Key: "item_name", Value: expired[i].ItemName})
	}
	return nil
}

// deletePass removes expired payloads through the agent and marks the
// copies DELETED. A failed payload delete leaves the copy EXPIRED for the
// next tick.
func (s *Sweeper) deletePass(ctx context.Context) error {
	items, err := s.catalog.SelectDataItems(ctx, catalog.And(
		catalog.Eq("item_state", string(common.StateExpired)),
	), &catalog.SelectOptions{OrderBy: "uid_expiration", Limit: sweepBatch})
	if err != nil {
		return err
	}

	for i := range items {
		item := &items[i]
		if err := s.deletePayload(ctx, item); err != nil {
			s.logger.Warn(ctx, "payload delete deferred",
				adapters.Field{Key: "uid", Value: item.UID},
				adapters.Field{Key: "uri", Value: item.URI},
				adapters.Field{Key: "error", Value: err.Error()})
			continue
		}
		if _, err := s.catalog.UpdateDataItems(ctx,
			catalog.And(catalog.Eq("uid", item.UID)),
			catalog.Patch{
				"item_state":   string(common.StateDeleted),
				"deleted":      true,
				"uid_deletion": time.Now().UTC(),
			}); err != nil {
			return err
		}
		s.logger.Info(ctx, "copy deleted",
			adapters.Field{Key: "uid", Value: item.UID},
			adapters.Field{Key: "item_name", Value: item.ItemName})
	}
	return nil
}

// deletePayload removes the copy's payload through the agent. Catalog rows
// store bare paths, so the backend's storage name is looked up to form the
// "remote:" fs the agent expects.
func (s *Sweeper) deletePayload(ctx context.Context, item *common.DataItem) error {
	// Never-placed copies have no payload to remove.
	if item.URI == "" || item.URI == common.InlineURISentinel || item.StorageID == "" {
		return nil
	}
	storages, err := s.catalog.SelectStorages(ctx,
		catalog.And(catalog.Eq("storage_id", item.StorageID)),
		&catalog.SelectOptions{Limit: 1})
	if err != nil {
		return err
	}
	// A dropped backend clears storage_id on its rows; nothing left to delete.
	if len(storages) == 0 {
		return nil
	}
	return s.agent.DeleteFile(ctx, storages[0].StorageName+":", item.URI)
}
