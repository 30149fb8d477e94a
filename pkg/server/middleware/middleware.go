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

// Package middleware provides request-scoped HTTP middleware shared by the
// REST surface.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request id across the gateway.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestIDMiddleware assigns each request a unique id, honoring one
// forwarded by the gateway.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RateLimitConfig tunes the global request rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// Burst is the momentary burst allowance.
	Burst int
}

// DefaultRateLimitConfig returns the standard limiter settings.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{RequestsPerSecond: 100, Burst: 200}
}

// RateLimitMiddleware rejects requests above the configured rate with 429.
func RateLimitMiddleware(config *RateLimitConfig, logger adapters.Logger) gin.HandlerFunc {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	limiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warn(c.Request.Context(), "request rate limited",
				adapters.Field{Key: "path", Value: c.Request.URL.Path},
				adapters.Field{Key: "client", Value: c.ClientIP()})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"exec":    "RateLimited",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
