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

import (
	"errors"
	"fmt"
)

// Kind classifies an error for clients. Kinds cross the gateway unchanged
// and are serialized into the "exec" field of the error envelope.
type Kind string

const (
	// KindInvalidQueryParameters indicates the caller supplied an unusable selector.
	KindInvalidQueryParameters Kind = "InvalidQueryParameters"

	// KindValueAlreadyInDB indicates a uniqueness violation at the catalog.
	KindValueAlreadyInDB Kind = "ValueAlreadyInDB"

	// KindUnmetPrecondition indicates the preconditions of a multi-step
	// operation failed (storage missing, item not present, no source config).
	KindUnmetPrecondition Kind = "UnmetPreconditionForOperation"

	// KindCatalogQuery indicates the persistent store rejected a statement.
	KindCatalogQuery Kind = "CatalogQueryError"

	// KindCatalogConflict indicates a uniqueness violation surfaced by the
	// raw catalog store rather than by an ingest precondition check.
	KindCatalogConflict Kind = "DatabaseOperationError"

	// KindCatalogUnavailable indicates the persistent store could not be reached.
	KindCatalogUnavailable Kind = "CatalogUnavailable"

	// KindTransferAgent indicates the transfer agent returned a non-2xx
	// response or failed to respond within the timeout.
	KindTransferAgent Kind = "TransferAgentError"

	// KindAuth indicates a missing/invalid token or insufficient scope.
	KindAuth Kind = "AuthError"

	// KindInternal is the fallback classification.
	KindInternal Kind = "InternalError"
)

// Error is the DLM error type. It carries a Kind for client-side mapping,
// a human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an Error with the given kind and formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
