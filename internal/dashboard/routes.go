package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/sap"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api.GET("/centers", s.handleCenters)
	api.GET("/groups", s.handleGroupList)
	api.POST("/groups", s.handleGroupCreate)
	api.GET("/groups/:id", s.handleGroupGet)

	api.GET("/strategies", s.handleStrategyList)
	api.POST("/strategies", s.handleStrategyCreate)
	api.PATCH("/strategies/:id", s.handleStrategyUpdate)
	api.POST("/strategies/:id/toggle", s.handleStrategyToggle)
	api.GET("/strategies/:id/occurrences", s.handleStrategyOccurrences)

	// Static segments before :id so gin matches them first.
	api.GET("/stops/summary", s.handleStopSummary)
	api.POST("/stops/repair", s.handleStopRepair)
	api.POST("/stops/generate", s.handleStopGenerate)
	api.GET("/stops", s.handleStopList)
	api.POST("/stops", s.handleStopCreate)
	api.GET("/stops/:id", s.handleStopGet)
	api.PATCH("/stops/:id", s.handleStopUpdate)
	api.DELETE("/stops/:id", s.handleStopDelete)

	api.GET("/timeline", s.handleTimeline)
	api.GET("/filters", s.handleFilters)
	api.POST("/filters", s.handleFilterApply)
	api.DELETE("/filters", s.handleFilterClear)
	api.POST("/rows/move", s.handleRowMove)

	api.GET("/sap/status", s.handleSAPStatus)
	api.POST("/sap/export", s.handleSAPExport)

	api.GET("/events", s.handleEvents)
}

// errorStatus maps err to an HTTP status and a client-facing message.
func errorStatus(err error) (int, string) {
	var se *sap.Error
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, sap.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &se):
		_, msg := sap.Classify(se)
		return http.StatusBadGateway, msg
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError sends err as a JSON error body. Backend errors are logged and
// not echoed to the client.
func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	body := gin.H{"error": msg}
	var se *sap.Error
	if errors.As(err, &se) {
		body["kind"] = se.Kind()
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes the JSON body into v, reporting malformed input as a
// validation error.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("dashboard: invalid request body: %v: %w", err, models.ErrValidation)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("dashboard: %s %q is not a number: %w", key, v, models.ErrValidation)
	}
	return n, nil
}
