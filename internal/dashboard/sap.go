package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/group"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/sap"
	"github.com/zulandar/stopyard/internal/stop"
	"github.com/zulandar/stopyard/internal/strategy"
	"gorm.io/gorm"
)

func (s *Server) handleSAPStatus(c *gin.Context) {
	if s.sap == nil {
		c.JSON(http.StatusOK, sap.Status{})
		return
	}
	c.JSON(http.StatusOK, s.sap.Status(c.Request.Context()))
}

type exportRequest struct {
	Entity sap.EntityType `json:"entity"`
	IDs    []string       `json:"ids"` // empty exports every record
}

func (s *Server) handleSAPExport(c *gin.Context) {
	var req exportRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	if s.sap == nil {
		s.writeError(c, sap.ErrNotConfigured)
		return
	}
	ctx := c.Request.Context()
	records, err := ExportRecords(ctx, s.db, req.Entity, req.IDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.sap.Export(ctx, records)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ExportRecords loads the stored records of one entity type in SAP form.
// A non-empty ids keeps only those records.
func ExportRecords(ctx context.Context, db *gorm.DB, entity sap.EntityType, ids []string) ([]sap.Record, error) {
	keep := func(id string) bool { return len(ids) == 0 || slices.Contains(ids, id) }
	var out []sap.Record
	switch entity {
	case sap.EntityAssetGroup:
		groups, err := group.List(ctx, db, group.ListFilters{})
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if keep(g.ID) {
				out = append(out, sap.FromGroup(g))
			}
		}
	case sap.EntityStrategy:
		strategies, err := strategy.List(ctx, db, strategy.ListFilters{})
		if err != nil {
			return nil, err
		}
		for _, st := range strategies {
			if keep(st.ID) {
				out = append(out, sap.FromStrategy(st))
			}
		}
	case sap.EntityStop:
		stops, err := stop.List(ctx, db, stop.ListFilters{})
		if err != nil {
			return nil, err
		}
		for _, st := range stops {
			if keep(st.ID) {
				out = append(out, sap.FromStop(st))
			}
		}
	default:
		return nil, fmt.Errorf("dashboard: unknown SAP entity %q: %w", entity, models.ErrValidation)
	}
	return out, nil
}
