package dashboard

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/planner"
)

func (s *Server) handleTimeline(c *gin.Context) {
	view, err := s.board.View(c.Request.Context(), s.db, s.now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) filterResponse() gin.H {
	return gin.H{"state": s.board.State(), "options": s.board.FilterOptions(), "rows": s.board.RowIDs()}
}

func (s *Server) handleFilters(c *gin.Context) {
	c.JSON(http.StatusOK, s.filterResponse())
}

func (s *Server) handleFilterApply(c *gin.Context) {
	var change planner.Change
	if err := bind(c, &change); err != nil {
		s.writeError(c, err)
		return
	}
	if _, err := s.board.Apply(change); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.filterResponse())
}

func (s *Server) handleFilterClear(c *gin.Context) {
	if _, err := s.board.Apply(planner.Change{Field: planner.FieldClear}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.filterResponse())
}

// moveRequest moves a row either by position (From/To) or by id (Active
// lands where Over is).
type moveRequest struct {
	From   *int   `json:"from"`
	To     *int   `json:"to"`
	Active string `json:"active"`
	Over   string `json:"over"`
}

func (s *Server) handleRowMove(c *gin.Context) {
	var req moveRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	var err error
	switch {
	case req.Active != "" || req.Over != "":
		err = s.board.MoveID(req.Active, req.Over)
	case req.From != nil && req.To != nil:
		err = s.board.Move(*req.From, *req.To)
	default:
		err = fmt.Errorf("dashboard: move needs from/to or active/over: %w", models.ErrValidation)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": s.board.RowIDs()})
}
