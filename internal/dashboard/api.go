package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/group"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"github.com/zulandar/stopyard/internal/stop"
	"github.com/zulandar/stopyard/internal/strategy"
)

func (s *Server) handleCenters(c *gin.Context) {
	centers, err := group.ListCenters(c.Request.Context(), s.db)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, centers)
}

func (s *Server) handleGroupList(c *gin.Context) {
	groups, err := group.List(c.Request.Context(), s.db, group.ListFilters{
		CenterCode: c.Query("center"),
		Phase:      c.Query("phase"),
		Search:     c.Query("search"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) handleGroupGet(c *gin.Context) {
	g, err := group.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type groupRequest struct {
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	CenterCode           string `json:"centerCode"`
	Phase                string `json:"phase"`
	System               string `json:"system"`
	Category             string `json:"category"`
	ExecutiveDirectorate string `json:"executiveDirectorate"`
	ExecutiveManagement  string `json:"executiveManagement"`
	PlantCode            string `json:"plantCode"`
	MaintenancePlant     string `json:"maintenancePlant"`
	PlannerGroup         string `json:"plannerGroup"`
	CreatedBy            string `json:"createdBy"`
}

func (s *Server) handleGroupCreate(c *gin.Context) {
	var req groupRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	g, err := group.Create(ctx, s.db, group.CreateOpts(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.board.Refresh(ctx, s.db); err != nil {
		s.logger.Warn("board refresh failed", "err", err)
	}
	c.JSON(http.StatusCreated, g)
}

func (s *Server) handleStrategyList(c *gin.Context) {
	strategies, err := strategy.List(c.Request.Context(), s.db, strategy.ListFilters{
		GroupID:    c.Query("group"),
		Priority:   c.Query("priority"),
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, strategies)
}

type strategyRequest struct {
	Name               string             `json:"name"`
	GroupID            string             `json:"groupId"`
	Frequency          schedule.Frequency `json:"frequency"`
	Duration           schedule.Span      `json:"duration"`
	StartDate          time.Time          `json:"startDate"`
	EndDate            *time.Time         `json:"endDate"`
	IsActive           *bool              `json:"isActive"`
	Description        string             `json:"description"`
	Priority           string             `json:"priority"`
	Teams              []string           `json:"teams"`
	TotalHours         float64            `json:"totalHours"`
	MaintenancePackage string             `json:"maintenancePackage"`
	TaskListID         string             `json:"taskListId"`
	CreatedBy          string             `json:"createdBy"`
}

func (s *Server) handleStrategyCreate(c *gin.Context) {
	var req strategyRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	st, err := strategy.Create(c.Request.Context(), s.db, strategy.CreateOpts{
		Name:               req.Name,
		GroupID:            req.GroupID,
		Frequency:          req.Frequency,
		Duration:           req.Duration,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		Inactive:           req.IsActive != nil && !*req.IsActive,
		Description:        req.Description,
		Priority:           req.Priority,
		Teams:              req.Teams,
		TotalHours:         req.TotalHours,
		MaintenancePackage: req.MaintenancePackage,
		TaskListID:         req.TaskListID,
		CreatedBy:          req.CreatedBy,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

type strategyUpdate struct {
	Version int `json:"version"`
	strategy.Patch
}

func (s *Server) handleStrategyUpdate(c *gin.Context) {
	var req strategyUpdate
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	st, err := strategy.Update(c.Request.Context(), s.db, c.Param("id"), req.Version, req.Patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type toggleRequest struct {
	Version int  `json:"version"`
	Active  bool `json:"active"`
}

func (s *Server) handleStrategyToggle(c *gin.Context) {
	var req toggleRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	st, err := strategy.SetActive(c.Request.Context(), s.db, c.Param("id"), req.Version, req.Active)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleStrategyOccurrences(c *gin.Context) {
	year, err := queryInt(c, "year", s.now().In(s.loc).Year())
	if err != nil {
		s.writeError(c, err)
		return
	}
	st, err := strategy.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	st.StartDate = st.StartDate.In(s.loc)
	occ := strategy.Occurrences([]models.Strategy{*st}, year)
	if occ == nil {
		occ = []schedule.Occurrence{}
	}
	c.JSON(http.StatusOK, gin.H{"strategy_id": st.ID, "year": year, "occurrences": occ})
}

// stopFilters reads the stop list filters from the query string. A year
// restricts to stops starting in that calendar year.
func (s *Server) stopFilters(c *gin.Context) (stop.ListFilters, error) {
	f := stop.ListFilters{
		GroupID:    c.Query("group"),
		StrategyID: c.Query("strategy"),
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		CenterCode: c.Query("center"),
		Phase:      c.Query("phase"),
		Search:     c.Query("search"),
	}
	year, err := queryInt(c, "year", 0)
	if err != nil {
		return f, err
	}
	if year != 0 {
		w := schedule.YearWindow(year, s.loc)
		f.Window = &w
	}
	return f, nil
}

func (s *Server) handleStopList(c *gin.Context) {
	f, err := s.stopFilters(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	stops, err := stop.List(c.Request.Context(), s.db, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stops)
}

func (s *Server) handleStopGet(c *gin.Context) {
	st, err := stop.Get(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type stopRequest struct {
	GroupID         string    `json:"groupId"`
	StrategyID      string    `json:"strategyId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PlannedStart    time.Time `json:"plannedStart"`
	PlannedEnd      time.Time `json:"plannedEnd"`
	DurationHours   float64   `json:"durationHours"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	AffectedAssets  []string  `json:"affectedAssets"`
	ResponsibleTeam string    `json:"responsibleTeam"`
	EstimatedCost   *float64  `json:"estimatedCost"`
	CostCenter      string    `json:"costCenter"`
	CreatedBy       string    `json:"createdBy"`
}

func (s *Server) handleStopCreate(c *gin.Context) {
	var req stopRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	st, err := stop.Create(c.Request.Context(), s.db, stop.CreateOpts(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

type stopUpdate struct {
	Version int `json:"version"`
	stop.Patch
}

func (s *Server) handleStopUpdate(c *gin.Context) {
	var req stopUpdate
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	st, err := stop.Update(c.Request.Context(), s.db, c.Param("id"), req.Version, req.Patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleStopDelete(c *gin.Context) {
	version, err := queryInt(c, "version", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if version < 1 {
		s.writeError(c, fmt.Errorf("dashboard: version query parameter is required: %w", models.ErrValidation))
		return
	}
	if err := stop.Delete(c.Request.Context(), s.db, c.Param("id"), version); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStopSummary(c *gin.Context) {
	f, err := s.stopFilters(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	sum, err := stop.SummaryOf(c.Request.Context(), s.db, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleStopRepair(c *gin.Context) {
	moved, err := stop.Repair(c.Request.Context(), s.db, s.logger)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if moved == nil {
		moved = []stop.Reassignment{}
	}
	c.JSON(http.StatusOK, gin.H{"reassigned": moved})
}

type generateRequest struct {
	Year int `json:"year"`
}

func (s *Server) handleStopGenerate(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			s.writeError(c, err)
			return
		}
	}
	if req.Year == 0 {
		req.Year = s.now().In(s.loc).Year()
	}
	res, err := stop.Generate(c.Request.Context(), s.db, req.Year, s.loc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
