// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// SetupRoutes wires all engine endpoints onto router.
//
// taskLimiter guards the task endpoint only; nil disables limiting.
func SetupRoutes(router *gin.Engine, d Deps, taskLimiter *rate.Limiter) {
	router.Use(otelgin.Middleware("kodiak-engine"))

	router.GET("/healthz", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		components := v1.Group("/components")
		{
			components.POST("", RegisterComponent(d))
			components.GET("", ListComponents(d))
			components.GET("/:id", GetComponent(d))
			components.DELETE("/:id", UnregisterComponent(d))
		}

		v1.POST("/health/check", TriggerHealthCheck(d))

		tasks := v1.Group("/tasks")
		{
			tasks.POST("", RateLimit(taskLimiter), ExecuteTask(d))
			tasks.GET("/history", TaskHistory(d))
		}
		v1.GET("/stats", Stats(d))

		contexts := v1.Group("/contexts")
		{
			contexts.POST("", CreateContext(d))
			contexts.GET("/:id", GetContext(d))
			contexts.PUT("/:id/payloads", PutContextPayload(d))
			contexts.DELETE("/:id", DeleteContext(d))
		}
	}
}
