package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ctxloom/ctxloom/internal/pkg/response"
	"github.com/ctxloom/ctxloom/internal/service"
)

type ProjectHandler struct {
	ingest *service.IngestService
}

func NewProjectHandler(ingest *service.IngestService) *ProjectHandler {
	return &ProjectHandler{ingest: ingest}
}

func (h *ProjectHandler) Purge(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.ingest.PurgeProject(requestContext(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"project_id": projectID})
}
