// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianQA/services/testgen/handlers"
	"github.com/AleutianAI/AleutianQA/services/testgen/middleware"
)

// Options configures SetupRoutes.
type Options struct {
	// ServiceName names the otelgin server spans. Empty skips tracing.
	ServiceName string

	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string

	// Gatherer backs /metrics. Nil skips the endpoint.
	Gatherer prometheus.Gatherer

	// RateLimiter guards the generation endpoint. Nil disables it.
	RateLimiter *middleware.RateLimiter

	// RequestTimeout bounds generation calls. Zero disables it.
	RequestTimeout time.Duration
}

// SetupRoutes registers middleware and endpoints on router.
//
// # Routes
//
//	GET  /
//	GET  /metrics
//	GET  /api/v1/health
//	POST /api/v1/generate-test-cases
//	GET  /api/v1/jira/issue/:issueKey
//	POST /api/v1/jira/test-cases
//
// # Inputs
//
//   - router: Engine to configure.
//   - gen: Generation pipeline. Must not be nil.
//   - tracker: Issue tracker, nil when Jira is not configured.
//   - opts: Cross-cutting options.
func SetupRoutes(router *gin.Engine, gen handlers.Generator, tracker handlers.IssueTracker, opts Options) {
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.RequestID(), middleware.RequestLogger())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	router.GET("/", handlers.HandleRoot)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HandleHealth)
		v1.POST("/generate-test-cases",
			opts.RateLimiter.Middleware(),
			handlers.HandleGenerateTestCases(gen, tracker, opts.RequestTimeout))

		jiraGroup := v1.Group("/jira")
		{
			jiraGroup.GET("/issue/:issueKey", handlers.HandleGetIssue(tracker))
			jiraGroup.POST("/test-cases", handlers.HandleCreateTestIssue(tracker))
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	return cfg
}
