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
	"github.com/AleutianAI/taskpiper/services/taskapi/consistency"
	"github.com/AleutianAI/taskpiper/services/taskapi/handlers"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers every endpoint of the task API on the router.
func SetupRoutes(router *gin.Engine, tasks storage.TaskStore, users storage.UserStore,
	engine *consistency.Engine) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("", handlers.APIRoot)

		taskRoutes := api.Group("/tasks")
		{
			taskRoutes.GET("", handlers.ListTasks(tasks))
			taskRoutes.POST("", handlers.CreateTask(tasks, engine))
			taskRoutes.GET("/:id", handlers.GetTask(tasks))
			taskRoutes.PUT("/:id", handlers.ReplaceTask(tasks, users, engine))
			taskRoutes.DELETE("/:id", handlers.DeleteTask(tasks, engine))
		}

		userRoutes := api.Group("/users")
		{
			userRoutes.GET("", handlers.ListUsers(users))
			userRoutes.POST("", handlers.CreateUser(users, engine))
			userRoutes.GET("/:id", handlers.GetUser(users))
			userRoutes.PUT("/:id", handlers.ReplaceUser(users, engine))
			userRoutes.DELETE("/:id", handlers.DeleteUser(users, engine))
		}
	}

	router.NoRoute(handlers.NotFound)
}
