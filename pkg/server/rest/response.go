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

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// ErrorResponse is the error envelope every failing endpoint returns. Exec
// carries the error classification so clients can branch without parsing
// the message.
type ErrorResponse struct {
	Exec    string `json:"exec"`
	Message string `json:"message"`
}

// IDResponse reports a generated identifier.
type IDResponse struct {
	ID string `json:"id"`
}

// ExistsResponse answers an existence query.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// HeartbeatResponse reports service liveness.
type HeartbeatResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	LastSweep string `json:"last_sweep,omitempty"`
}

// statusForKind maps an error classification to its HTTP status.
func statusForKind(kind common.Kind) int {
	switch kind {
	case common.KindInvalidQueryParameters, common.KindUnmetPrecondition,
		common.KindValueAlreadyInDB:
		return http.StatusUnprocessableEntity
	case common.KindCatalogConflict:
		return http.StatusConflict
	case common.KindAuth:
		return http.StatusUnauthorized
	case common.KindCatalogUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortError writes the error envelope for err and aborts the request.
func abortError(c *gin.Context, err error) {
	kind := common.KindOf(err)
	c.AbortWithStatusJSON(statusForKind(kind), ErrorResponse{
		Exec:    string(kind),
		Message: err.Error(),
	})
}
