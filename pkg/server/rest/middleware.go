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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"github.com/jeremyhahn/go-dlm/pkg/server/middleware"
)

// principalKey is the gin context key holding the authenticated principal.
const principalKey = "principal"

// AuthenticationMiddleware authenticates every request through the
// configured adapter and stores the principal on the context.
func AuthenticationMiddleware(authenticator adapters.Authenticator, logger adapters.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authenticator.AuthenticateHTTP(c.Request.Context(), c.Request)
		if err != nil {
			logger.Warn(c.Request.Context(), "authentication failed",
				adapters.Field{Key: "path", Value: c.Request.URL.Path},
				adapters.Field{Key: "error", Value: err.Error()})
			abortError(c, common.Wrap(common.KindAuth, err, "authentication failed"))
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// principalFrom returns the authenticated principal of a request.
func principalFrom(c *gin.Context) *adapters.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*adapters.Principal); ok {
			return p
		}
	}
	return &adapters.Principal{ID: "anonymous", Name: "anonymous"}
}

// LoggingMiddleware logs one structured line per request.
func LoggingMiddleware(logger adapters.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			adapters.Field{Key: "method", Value: c.Request.Method},
			adapters.Field{Key: "path", Value: c.Request.URL.Path},
			adapters.Field{Key: "status", Value: c.Writer.Status()},
			adapters.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			adapters.Field{Key: "request_id", Value: c.GetString(middleware.RequestIDKey)},
		)
	}
}
