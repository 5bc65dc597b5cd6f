package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/jobs"
)

// statusClientClosedRequest is the nginx convention for a client that went away.
const statusClientClosedRequest = 499

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, logger *slog.Logger, code int, message string, err error) {
	if code >= http.StatusInternalServerError {
		logger.Error(message, "error", err, "code", code, "path", c.Request.URL.Path)
	} else {
		logger.Info(message, "error", err, "code", code, "path", c.Request.URL.Path)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Message: message,
	})
}

func handleError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		notFound   *jobs.NotFoundError
		validation *jobs.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		sendError(c, logger, http.StatusNotFound, "resource not found", err)
	case errors.As(err, &validation):
		sendError(c, logger, http.StatusBadRequest, "validation error", err)
	case errors.Is(err, context.Canceled):
		sendError(c, logger, statusClientClosedRequest, "request cancelled", err)
	default:
		sendError(c, logger, http.StatusInternalServerError, "internal server error", err)
	}
}
