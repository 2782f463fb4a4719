// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the test case generator.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► sets X-Request-ID, stores it in the Gin context
//	   │
//	   ▼
//	RequestLogger ──► one log line per request
//	   │
//	   ▼
//	RateLimit (generation routes only) ──► 429 when a client exceeds its budget
//	   │
//	   ▼
//	Handler
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// =============================================================================
// Request IDs
// =============================================================================

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "aleutianqa_request_id"

// maxRequestIDLength bounds caller-supplied IDs.
const maxRequestIDLength = 128

// RequestID assigns every request an ID.
//
// # Description
//
// A caller-supplied X-Request-ID is kept when it is non-empty and short
// enough; otherwise a new UUID is generated. The ID is echoed in the
// response header and stored for GetRequestID.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Request Logging
// =============================================================================

// RequestLogger logs method, path, status and latency of each request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(c),
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("Request failed", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("Request rejected", attrs...)
		default:
			slog.Info("Request handled", attrs...)
		}
	}
}

// =============================================================================
// Rate Limiting
// =============================================================================

// DefaultIdleTTL is how long a client's bucket is kept after its last
// request.
const DefaultIdleTTL = 10 * time.Minute

// RateLimiter hands out a token bucket per client IP.
//
// Buckets idle for longer than the idle TTL are swept on a later Allow call,
// so memory tracks recently active clients only. The TTL is never shorter
// than the time a bucket needs to refill, so a swept client gets back exactly
// the budget it would have had.
//
// Thread Safety:
//
//	RateLimiter is safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// client with the given burst. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	ttl := DefaultIdleTTL
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > ttl {
			ttl = refill
		}
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: ttl,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// Allow reports whether key may make a request now.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	now := r.now()
	r.sweep(now)
	b, ok := r.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = b
	}
	b.lastSeen = now
	r.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (r *RateLimiter) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// sweep drops idle buckets at most once per idle TTL. Callers hold r.mu.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	r.lastSweep = now
	for key, b := range r.clients {
		if now.Sub(b.lastSeen) >= r.idleTTL {
			delete(r.clients, key)
		}
	}
}

// Middleware rejects requests over the client's budget with 429.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			slog.Warn("Rate limit exceeded", "client_ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
