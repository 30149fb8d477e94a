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

import "github.com/gin-gonic/gin"

// SetupRoutes registers every endpoint on the router.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/heartbeat", handler.Heartbeat)

	ingestGroup := router.Group("/ingest")
	{
		ingestGroup.POST("/init_data_item", handler.InitDataItem)
		ingestGroup.POST("/register_data_item", handler.RegisterDataItem)
	}

	migrationGroup := router.Group("/migration")
	{
		migrationGroup.POST("/copy_data_item", handler.CopyDataItem)
		migrationGroup.GET("/query_migrations", handler.QueryMigrations)
		migrationGroup.GET("/get_migration/:id", handler.GetMigration)
		migrationGroup.POST("/request_phase_change", handler.RequestPhaseChange)
	}

	requestGroup := router.Group("/request")
	{
		requestGroup.GET("/query_data_item", handler.QueryDataItem)
		requestGroup.GET("/query_exists", handler.QueryExists)
		requestGroup.GET("/query_exist_and_ready", handler.QueryExistAndReady)
		requestGroup.GET("/query_item_storage", handler.QueryItemStorage)
		requestGroup.GET("/query_expired", handler.QueryExpired)
		requestGroup.GET("/query_deleted", handler.QueryDeleted)
		requestGroup.GET("/query_new", handler.QueryNew)
		requestGroup.GET("/query_provenance", handler.QueryProvenance)
		requestGroup.PATCH("/update_data_item", handler.UpdateDataItem)
		requestGroup.PATCH("/update_item_tags", handler.UpdateItemTags)
	}

	storageGroup := router.Group("/storage")
	{
		storageGroup.POST("/init_location", handler.InitLocation)
		storageGroup.POST("/init_storage", handler.InitStorage)
		storageGroup.POST("/create_storage_config", handler.CreateStorageConfig)
		storageGroup.POST("/rclone_config", handler.CreateRcloneConfig)
		storageGroup.GET("/query_location", handler.QueryLocation)
		storageGroup.GET("/query_storage", handler.QueryStorage)
		storageGroup.GET("/get_storage_config", handler.GetStorageConfig)
		storageGroup.POST("/check_storage_access", handler.CheckStorageAccess)
		storageGroup.GET("/check_item_on_storage", handler.CheckItemOnStorage)
	}
}
