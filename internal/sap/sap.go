// Package sap maps stored records onto the SAP BTP / S/4HANA maintenance
// entities and talks to the configured endpoint. Nothing else in the
// module depends on it being reachable.
package sap

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/zulandar/stopyard/internal/models"
)

// EntityType names an SAP maintenance entity set.
type EntityType string

const (
	EntityAssetGroup EntityType = "MaintenanceAssetGroup"
	EntityStrategy   EntityType = "MaintenanceStrategy"
	EntityStop       EntityType = "MaintenanceStop"
)

// Defaults applied to outgoing records.
const (
	DefaultClient       = "100"
	DefaultUser         = "SYSTEM"
	DefaultPlannerGroup = "MAI"
	DefaultIDPrefix     = "MAI"
	DefaultStatusCode   = "01"
	DefaultPriorityCode = "2"
)

var statusCodes = map[string]string{
	models.StatusPlanned:    "01",
	models.StatusInProgress: "02",
	models.StatusCompleted:  "03",
	models.StatusCancelled:  "04",
}

var priorityCodes = map[string]string{
	"critical": "0",
	"high":     "1",
	"medium":   "2",
	"low":      "3",
}

// StatusCode maps a stop status to its SAP code. Unknown statuses map to
// planned.
func StatusCode(status string) string {
	if c, ok := statusCodes[status]; ok {
		return c
	}
	return DefaultStatusCode
}

// StatusFromCode is the inverse of StatusCode.
func StatusFromCode(code string) string {
	for s, c := range statusCodes {
		if c == code {
			return s
		}
	}
	return models.StatusPlanned
}

// PriorityCode maps a priority to its SAP code. Unknown priorities map to
// medium.
func PriorityCode(priority string) string {
	if c, ok := priorityCodes[priority]; ok {
		return c
	}
	return DefaultPriorityCode
}

// ID builds an SAP entity id: prefix followed by seq padded to ten digits.
func ID(prefix string, seq int) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return fmt.Sprintf("%s%010d", prefix, seq)
}

// Format converts camelCase keys to the PascalCase SAP uses. Values are
// copied as-is.
func Format(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[recase(k, unicode.ToUpper)] = v
	}
	return out
}

// Unformat converts PascalCase SAP keys back to camelCase.
func Unformat(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[recase(k, unicode.ToLower)] = v
	}
	return out
}

func recase(key string, fn func(rune) rune) string {
	r, n := utf8.DecodeRuneInString(key)
	if n == 0 {
		return key
	}
	return string(fn(r)) + key[n:]
}

// Record is an outgoing SAP entity.
type Record interface {
	Entity() EntityType
	Key() string
	problems() []string
}

// GroupRecord is an asset group in SAP form.
type GroupRecord struct {
	ID                   string    `json:"Id"`
	Name                 string    `json:"Name"`
	Type                 string    `json:"Type,omitempty"`
	LocationCenter       string    `json:"LocationCenter"`
	LocationCenterName   string    `json:"LocationCenterName,omitempty"`
	Phase                string    `json:"Phase"`
	System               string    `json:"System,omitempty"`
	Category             string    `json:"Category,omitempty"`
	ExecutiveDirectorate string    `json:"ExecutiveDirectorate,omitempty"`
	ExecutiveManagement  string    `json:"ExecutiveManagement,omitempty"`
	PlantCode            string    `json:"PlantCode"`
	MaintenancePlant     string    `json:"MaintenancePlant"`
	PlannerGroup         string    `json:"PlannerGroup"`
	SapID                string    `json:"SapId,omitempty"`
	ClientID             string    `json:"ClientId"`
	CreatedBy            string    `json:"CreatedBy"`
	ModifiedBy           string    `json:"ModifiedBy"`
	LastModified         time.Time `json:"LastModified"`
}

// StrategyRecord is a maintenance strategy in SAP form.
type StrategyRecord struct {
	ID                 string     `json:"Id"`
	Name               string     `json:"Name"`
	GroupID            string     `json:"GroupId"`
	Frequency          *Amount    `json:"Frequency"`
	Duration           *Amount    `json:"Duration"`
	StartDate          time.Time  `json:"StartDate"`
	EndDate            *time.Time `json:"EndDate,omitempty"`
	IsActive           bool       `json:"IsActive"`
	Description        string     `json:"Description,omitempty"`
	Priority           string     `json:"Priority"`
	Teams              []string   `json:"Teams"`
	TotalHours         float64    `json:"TotalHours"`
	SapStrategyID      string     `json:"SapStrategyId,omitempty"`
	MaintenancePackage string     `json:"MaintenancePackage,omitempty"`
	TaskListID         string     `json:"TaskListId,omitempty"`
	SapID              string     `json:"SapId,omitempty"`
	ClientID           string     `json:"ClientId"`
	CreatedBy          string     `json:"CreatedBy"`
	ModifiedBy         string     `json:"ModifiedBy"`
	LastModified       time.Time  `json:"LastModified"`
}

// Amount is a value with a unit, as used for frequency and duration.
type Amount struct {
	Value int    `json:"Value"`
	Unit  string `json:"Unit"`
}

// StopRecord is a maintenance stop in SAP form.
type StopRecord struct {
	ID              string     `json:"Id"`
	GroupID         string     `json:"GroupId"`
	StrategyID      string     `json:"StrategyId,omitempty"`
	Title           string     `json:"Title"`
	Description     string     `json:"Description,omitempty"`
	StartDate       time.Time  `json:"StartDate"`
	EndDate         time.Time  `json:"EndDate"`
	ActualStartDate *time.Time `json:"ActualStartDate,omitempty"`
	ActualEndDate   *time.Time `json:"ActualEndDate,omitempty"`
	Duration        float64    `json:"Duration"`
	Status          string     `json:"Status"`
	Priority        string     `json:"Priority"`
	AffectedAssets  []string   `json:"AffectedAssets"`
	ResponsibleTeam string     `json:"ResponsibleTeam"`
	EstimatedCost   *float64   `json:"EstimatedCost,omitempty"`
	ActualCost      *float64   `json:"ActualCost,omitempty"`
	WorkOrderID     string     `json:"WorkOrderId,omitempty"`
	NotificationID  string     `json:"NotificationId,omitempty"`
	CostCenter      string     `json:"CostCenter,omitempty"`
	SapID           string     `json:"SapId,omitempty"`
	ClientID        string     `json:"ClientId"`
	CreatedBy       string     `json:"CreatedBy"`
	ModifiedBy      string     `json:"ModifiedBy"`
	LastModified    time.Time  `json:"LastModified"`
}

func (GroupRecord) Entity() EntityType    { return EntityAssetGroup }
func (StrategyRecord) Entity() EntityType { return EntityStrategy }
func (StopRecord) Entity() EntityType     { return EntityStop }

func (r GroupRecord) Key() string    { return r.ID }
func (r StrategyRecord) Key() string { return r.ID }
func (r StopRecord) Key() string     { return r.ID }

// meta fills SAP bookkeeping defaults.
func meta(f models.SAPFields, updated time.Time) (client, createdBy, modifiedBy string, last time.Time) {
	return fallback(f.ClientID, DefaultClient), fallback(f.CreatedBy, DefaultUser), fallback(f.ModifiedBy, DefaultUser), updated.UTC()
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// FromGroup converts a group. Plant and maintenance plant default to the
// center code.
func FromGroup(g models.AssetGroup) GroupRecord {
	r := GroupRecord{
		ID:                   g.ID,
		Name:                 g.Name,
		Type:                 g.Type,
		LocationCenter:       g.CenterCode,
		LocationCenterName:   g.Center.Name,
		Phase:                g.Phase,
		System:               g.System,
		Category:             g.Category,
		ExecutiveDirectorate: g.ExecutiveDirectorate,
		ExecutiveManagement:  g.ExecutiveManagement,
		PlantCode:            fallback(g.PlantCode, g.CenterCode),
		MaintenancePlant:     fallback(g.MaintenancePlant, g.CenterCode),
		PlannerGroup:         fallback(g.PlannerGroup, DefaultPlannerGroup),
		SapID:                g.SAPID,
	}
	r.ClientID, r.CreatedBy, r.ModifiedBy, r.LastModified = meta(g.SAPFields, g.UpdatedAt)
	return r
}

// FromStrategy converts a strategy.
func FromStrategy(s models.Strategy) StrategyRecord {
	r := StrategyRecord{
		ID:                 s.ID,
		Name:               s.Name,
		GroupID:            s.GroupID,
		StartDate:          s.StartDate.UTC(),
		EndDate:            s.EndDate,
		IsActive:           s.IsActive,
		Description:        s.Description,
		Priority:           PriorityCode(s.Priority),
		Teams:              s.Teams,
		TotalHours:         s.TotalHours,
		SapStrategyID:      s.SAPStrategyID,
		MaintenancePackage: s.MaintenancePackage,
		TaskListID:         s.TaskListID,
		SapID:              s.SAPID,
	}
	if s.FrequencyValue > 0 {
		r.Frequency = &Amount{Value: s.FrequencyValue, Unit: s.FrequencyUnit}
	}
	if s.DurationValue > 0 {
		r.Duration = &Amount{Value: s.DurationValue, Unit: s.DurationUnit}
	}
	if r.Teams == nil {
		r.Teams = []string{}
	}
	r.ClientID, r.CreatedBy, r.ModifiedBy, r.LastModified = meta(s.SAPFields, s.UpdatedAt)
	return r
}

// FromStop converts a stop.
func FromStop(s models.Stop) StopRecord {
	r := StopRecord{
		ID:              s.ID,
		GroupID:         s.GroupID,
		Title:           s.Title,
		Description:     s.Description,
		StartDate:       s.PlannedStart.UTC(),
		EndDate:         s.PlannedEnd.UTC(),
		ActualStartDate: s.ActualStart,
		ActualEndDate:   s.ActualEnd,
		Duration:        s.DurationHours,
		Status:          StatusCode(s.Status),
		Priority:        PriorityCode(s.Priority),
		AffectedAssets:  s.AffectedAssets,
		ResponsibleTeam: s.ResponsibleTeam,
		EstimatedCost:   s.EstimatedCost,
		ActualCost:      s.ActualCost,
		WorkOrderID:     s.WorkOrderID,
		NotificationID:  s.NotificationID,
		CostCenter:      s.CostCenter,
		SapID:           s.SAPID,
	}
	if s.StrategyID != nil {
		r.StrategyID = *s.StrategyID
	}
	if r.AffectedAssets == nil {
		r.AffectedAssets = []string{}
	}
	r.ClientID, r.CreatedBy, r.ModifiedBy, r.LastModified = meta(s.SAPFields, s.UpdatedAt)
	return r
}
