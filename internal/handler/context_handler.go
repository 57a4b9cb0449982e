package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ctxloom/ctxloom/internal/pkg/errcode"
	"github.com/ctxloom/ctxloom/internal/pkg/response"
	"github.com/ctxloom/ctxloom/internal/service"
)

type ContextHandler struct {
	assembly *service.AssemblyService
}

func NewContextHandler(assembly *service.AssemblyService) *ContextHandler {
	return &ContextHandler{assembly: assembly}
}

type assembleRequest struct {
	ProjectID           string   `json:"project_id"`
	Prompt              string   `json:"prompt"`
	Budget              int      `json:"budget"`
	HotPaths            []string `json:"hot_paths"`
	Model               string   `json:"model"`
	IncludeConversation bool     `json:"include_conversation"`
}

func (h *ContextHandler) Assemble(c *gin.Context) {
	var req assembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.assembly.Assemble(requestContext(c), service.AssembleRequest{
		ProjectID:           req.ProjectID,
		Prompt:              req.Prompt,
		Budget:              req.Budget,
		HotPaths:            req.HotPaths,
		Model:               req.Model,
		IncludeConversation: req.IncludeConversation,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ContextHandler) ListSessions(c *gin.Context) {
	projectID := c.Param("project_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.assembly.ListSessions(requestContext(c), projectID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"sessions": sessions})
}
