package handler

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/pkg/errcode"
	"github.com/ctxloom/ctxloom/internal/pkg/response"
	"github.com/ctxloom/ctxloom/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestRequest struct {
	ProjectID     string `json:"project_id"`
	Path          string `json:"path"`
	Content       string `json:"content"`
	ContentBase64 string `json:"content_base64"`
	Kind          string `json:"kind"`
}

type conversationRequest struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	raw := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid base64 content")
			return
		}
		raw = decoded
	}
	result, err := h.ingest.Ingest(requestContext(c), req.ProjectID, req.Path, raw, model.ChunkKind(req.Kind))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *IngestHandler) IngestConversation(c *gin.Context) {
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.ingest.IngestConversation(requestContext(c), req.ProjectID, req.Message)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
