package response

import (
	"net/http"
	"time"

	"gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Healthy answers the liveness probe. It must stay trivial and
// dependency-free; the hosting platform polls it.
func Healthy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Fault sends a pipeline-fault response. Client faults (validation, intake,
// capacity) carry the message directly; internal faults hide behind a fixed
// error string with the cause in details. Every body carries the jobId.
func Fault(c *gin.Context, jobID string, err error) {
	customErr := errors.GetError(err)
	status := customErr.Code.HTTPStatus()

	logger.Error(c.Request.Context(), "request failed",
		zap.String("job_id", jobID),
		zap.Int("code", int(customErr.Code)),
		zap.Int("status", status),
		zap.String("message", customErr.Error()),
	)

	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{
			"error": customErr.Error(),
			"jobId": jobID,
		})
		return
	}
	c.JSON(status, gin.H{
		"error":   "Autograding failed",
		"details": customErr.Error(),
		"jobId":   jobID,
	})
}

// NotFound sends a 404 for lookups that missed.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = errors.NotFound.Message()
	}
	c.JSON(http.StatusNotFound, gin.H{"error": message})
}
