package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sahaj33-op/msm/internal/msmerr"
)

// writeError maps domain errors onto HTTP statuses. Anything unrecognized
// is a 500 with the detail kept out of the response body.
func writeError(c *gin.Context, err error) {
	var (
		notFound       *msmerr.NotFoundError
		alreadyRunning *msmerr.AlreadyRunningError
		notRunning     *msmerr.NotRunningError
		portInUse      *msmerr.PortInUseError
		invalidSched   *msmerr.InvalidScheduleError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &portInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &alreadyRunning), errors.As(err, &notRunning), errors.As(err, &invalidSched):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, msmerr.ErrRuntimeNotFound):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		slog.Error("[API] internal error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
