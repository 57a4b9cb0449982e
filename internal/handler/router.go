package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Ingest   *IngestHandler
	Context  *ContextHandler
	Projects *ProjectHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/ingest", deps.Ingest.Ingest)
	api.POST("/conversation", deps.Ingest.IngestConversation)
	api.POST("/context/assemble", deps.Context.Assemble)
	api.GET("/projects/:project_id/sessions", deps.Context.ListSessions)
	api.DELETE("/projects/:project_id", deps.Projects.Purge)
}
