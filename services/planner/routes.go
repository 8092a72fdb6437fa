// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all planner routes with the router.
//
// Description:
//
//	Registers all /v1/planner/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Session Endpoints:
//
//	POST /v1/planner/solve - Forward search
//	POST /v1/planner/enumerate - Backward enumeration
//	POST /v1/planner/sample - Distance samples
//	POST /v1/planner/batch - Several sessions concurrently
//
// Storage Endpoints:
//
//	GET    /v1/planner/sessions - List stored sessions
//	GET    /v1/planner/sessions/:id - Get a stored session
//	DELETE /v1/planner/sessions/:id - Delete a stored session
//
// Info Endpoints:
//
//	GET /v1/planner/health - Health check
//	GET /v1/planner/queues - Queues, algorithms and heuristics
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	p := rg.Group("/planner")
	{
		p.POST("/solve", handlers.HandleSolve)
		p.POST("/enumerate", handlers.HandleEnumerate)
		p.POST("/sample", handlers.HandleSample)
		p.POST("/batch", handlers.HandleBatch)

		p.GET("/sessions", handlers.HandleListSessions)
		p.GET("/sessions/:id", handlers.HandleGetSession)
		p.DELETE("/sessions/:id", handlers.HandleDeleteSession)

		p.GET("/health", handlers.HandleHealth)
		p.GET("/queues", handlers.HandleQueues)
	}
}
