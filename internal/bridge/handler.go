package bridge

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/aevon-lab/trackpipe/internal/core/errors"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgTooLarge       = "Request body exceeds maximum allowed size"
)

// bridgeError carries the HTTP error shape from a helper back to the handler.
type bridgeError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *bridgeError) Error() string {
	return e.message
}

type consentRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type lifecycleRequest struct {
	State string `json:"state" binding:"required,oneof=foreground background"`
}

// EventsHandler forwards one web-view document. The document is composed
// asynchronously; 202 means it was handed to the pipeline, not dispatched.
func (s *Service) EventsHandler(c *gin.Context) {
	body, bErr := s.readBody(c)
	if bErr != nil {
		writeError(c, bErr)
		return
	}
	if !json.Valid(body) {
		slog.Warn("[Bridge] Invalid embedded event body", "payload_size", len(body))
		writeError(c, &bridgeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		})
		return
	}

	s.pipeline.ComposeEmbeddedEvent(body)
	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"buffered": !s.pipeline.DataCollectionEnabled(),
	})
}

// ConsentHandler turns data collection on. Turning it off again is refused.
func (s *Service) ConsentHandler(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &bridgeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		})
		return
	}

	if !*req.Enabled && s.pipeline.DataCollectionEnabled() {
		writeError(c, &bridgeError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpInvalidStateError,
			message:    "Data collection cannot be disabled once enabled",
		})
		return
	}

	s.pipeline.SetDataCollectionEnabled(*req.Enabled)
	slog.Info("[Bridge] Consent updated", "enabled", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": s.pipeline.DataCollectionEnabled()})
}

// LifecycleHandler reports a foreground or background transition.
func (s *Service) LifecycleHandler(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &bridgeError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidStateError,
			message:    "state must be foreground or background",
		})
		return
	}

	if req.State == "background" {
		s.pipeline.OnBackground()
	} else {
		s.pipeline.OnForeground()
	}
	c.JSON(http.StatusOK, gin.H{"state": req.State})
}

// readBody reads at most maxBodySizeBytes.
func (s *Service) readBody(c *gin.Context) ([]byte, *bridgeError) {
	maxBytes := int64(s.maxBodySizeBytes)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[Bridge] Failed to read request body", "error", err)
		return nil, &bridgeError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}
	if int64(len(body)) > maxBytes {
		slog.Warn("[Bridge] Request body exceeds maximum size", "max", maxBytes)
		return nil, &bridgeError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpPayloadTooLarge,
			message:    msgTooLarge,
			details:    map[string]interface{}{"max_size_kb": maxBytes / 1024},
		}
	}
	return body, nil
}

func writeError(c *gin.Context, err *bridgeError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
