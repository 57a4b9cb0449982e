package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/pkg/errcode"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(requestContext(c)).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrStoreUnavailable):
		response.Error(c, errcode.ErrStoreUnavailable, "backend store unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
