package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chapterwatch/models"
	"github.com/use-agent/chapterwatch/tracker"
)

// Checker processes a single series without persisting anything.
type Checker interface {
	ProcessSeries(ctx context.Context, rec models.SeriesRecord) (models.SeriesResult, error)
}

// ListSeries returns a handler for GET /api/v1/series.
func ListSeries(store tracker.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := store.Load()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SeriesListResponse{Count: len(records), Series: records})
	}
}

// Check returns a handler for POST /api/v1/check.
//
// It runs fetch, extraction and the update decision for one URL and
// reports what a run would do. The store is never touched.
func Check(checker Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CheckResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			req.Name = req.URL
		}

		res, err := checker.ProcessSeries(c.Request.Context(), models.SeriesRecord{
			Name:    req.Name,
			URL:     req.URL,
			Chapter: req.Chapter,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.CheckResponse{Success: true, Result: &res})
	}
}
