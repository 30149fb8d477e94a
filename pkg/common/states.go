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

package common

// ItemState is the lifecycle state of one physical copy (uid). The string
// encoding is the persistence-boundary representation; all transition logic
// goes through CanTransition.
type ItemState string

const (
	// StateInitialised is the state of a freshly inserted, not yet placed copy.
	StateInitialised ItemState = "INITIALISED"

	// StateReady indicates the copy is registered and its payload is present.
	StateReady ItemState = "READY"

	// StateCorrupted indicates a checksum or copy failure. Terminal for the
	// uid; recovery is a re-ingest under a fresh uid.
	StateCorrupted ItemState = "CORRUPTED"

	// StateExpired indicates the copy's TTL elapsed and payload deletion is pending.
	StateExpired ItemState = "EXPIRED"

	// StateDeleted is terminal.
	StateDeleted ItemState = "DELETED"
)

// Valid reports whether s is a known state.
func (s ItemState) Valid() bool {
	switch s {
	case StateInitialised, StateReady, StateCorrupted, StateExpired, StateDeleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s ItemState) Terminal() bool {
	return s == StateDeleted || s == StateCorrupted
}

// CanTransition reports whether the state machine allows s -> next.
//
//	INITIALISED -> READY | CORRUPTED | DELETED
//	READY       -> CORRUPTED | EXPIRED
//	EXPIRED     -> DELETED
func (s ItemState) CanTransition(next ItemState) bool {
	switch s {
	case StateInitialised:
		return next == StateReady || next == StateCorrupted || next == StateDeleted
	case StateReady:
		return next == StateCorrupted || next == StateExpired
	case StateExpired:
		return next == StateDeleted
	}
	return false
}

// Phase is the resilience tier of a storage backend or item copy, ordered
// from most volatile to most durable.
type Phase string

const (
	PhaseGas    Phase = "GAS"    // ephemeral
	PhaseLiquid Phase = "LIQUID" // online
	PhaseSolid  Phase = "SOLID"  // archive
	PhasePlasma Phase = "PLASMA" // replicated archive
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseGas, PhaseLiquid, PhaseSolid, PhasePlasma:
		return true
	}
	return false
}

// LocationType is the closed enumeration of site types.
type LocationType string

const (
	LocationDev            LocationType = "dev"
	LocationLowIntegration LocationType = "low-integration"
	LocationMidIntegration LocationType = "mid-integration"
	LocationLowOperations  LocationType = "low-operations"
	LocationMidOperations  LocationType = "mid-operations"
)

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	switch t {
	case LocationDev, LocationLowIntegration, LocationMidIntegration,
		LocationLowOperations, LocationMidOperations:
		return true
	}
	return false
}

// ItemType distinguishes single files from containers (directories).
type ItemType string

const (
	ItemTypeFile      ItemType = "file"
	ItemTypeContainer ItemType = "container"
	ItemTypeUnknown   ItemType = "unknown"
)
