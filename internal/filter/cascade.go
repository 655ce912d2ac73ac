// Package filter holds the dashboard's cascading filter selections and the
// user-defined row order.
package filter

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/stopyard/internal/schedule"
)

// All is the wildcard selection for string filters.
const All = "all"

// Group is the subset of an asset group the filters look at.
type Group struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CenterCode string `json:"center_code"`
	CenterName string `json:"center_name"`
	Phase      string `json:"phase"`
}

// State is the current selection. Month and Week use 0 for "all".
type State struct {
	Search string `json:"search"`
	Center string `json:"center"`
	Phase  string `json:"phase"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Week   int    `json:"week"`
}

// Selection returns the time part of the state.
func (s State) Selection() schedule.Selection {
	return schedule.Selection{Year: s.Year, Month: s.Month, Week: s.Week}
}

// Active reports whether anything other than the year narrows the view.
func (s State) Active() bool {
	return s.Search != "" || s.Center != All || s.Phase != All || s.Month != 0 || s.Week != 0
}

// Center is a selectable location center.
type Center struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Options are the choices offered for each filter given the upstream state.
type Options struct {
	Centers []Center `json:"centers"`
	Phases  []string `json:"phases"`
	Years   []int    `json:"years"`
	Months  []int    `json:"months"`
	Weeks   []int    `json:"weeks"`
}

// Cascade is the filter chain search -> center -> phase -> year -> month ->
// week. Option sets are recomputed from the groups on every read; the
// selected center and phase are kept valid after every transition.
type Cascade struct {
	groups []Group
	state  State
	now    func() time.Time
}

// NewCascade starts with every filter cleared and the year set to now's year.
func NewCascade(groups []Group, now func() time.Time) *Cascade {
	if now == nil {
		now = time.Now
	}
	c := &Cascade{groups: slices.Clone(groups), now: now}
	c.ClearAll()
	return c
}

// State returns the current selection.
func (c *Cascade) State() State { return c.state }

// SetGroups replaces the underlying data and revalidates the selection.
func (c *Cascade) SetGroups(groups []Group) {
	c.groups = slices.Clone(groups)
	c.normalize()
}

// SetSearch changes the search text without resetting downstream filters,
// unless they no longer match anything offered.
func (c *Cascade) SetSearch(text string) {
	c.state.Search = text
	c.normalize()
}

// SetCenter selects a center. Choosing a specific center resets the phase,
// since phase options are scoped to the center.
func (c *Cascade) SetCenter(code string) {
	if code == "" {
		code = All
	}
	c.state.Center = code
	if code != All {
		c.state.Phase = All
	}
	c.normalize()
}

// SetPhase selects a phase.
func (c *Cascade) SetPhase(phase string) {
	if phase == "" {
		phase = All
	}
	c.state.Phase = phase
	c.normalize()
}

// SetYear selects the displayed year. A week beyond the year's last ISO
// week is cleared.
func (c *Cascade) SetYear(year int) {
	c.state.Year = year
	if c.state.Week > schedule.ISOWeeksIn(year) {
		c.state.Week = 0
	}
}

// SetMonth selects a month (1-12) or 0 for all.
func (c *Cascade) SetMonth(month int) {
	if month < 0 || month > 12 {
		month = 0
	}
	c.state.Month = month
}

// SetWeek selects an ISO week or 0 for all.
func (c *Cascade) SetWeek(week int) {
	if week < 0 || week > schedule.ISOWeeksIn(c.state.Year) {
		week = 0
	}
	c.state.Week = week
}

// ClearAll resets every filter to its default.
func (c *Cascade) ClearAll() {
	c.state = State{
		Center: All,
		Phase:  All,
		Year:   c.now().Year(),
	}
}

// Options computes the option sets for the current state. Years offers the
// year around now and always contains the selected year, so a year set
// outside that range stays selectable.
func (c *Cascade) Options() Options {
	bySearch := c.bySearch()
	now := c.now().Year()

	years := []int{now - 1, now, now + 1}
	if y := c.state.Year; !slices.Contains(years, y) {
		years = append(years, y)
		slices.Sort(years)
	}

	opts := Options{
		Centers: centersOf(bySearch),
		Phases:  phasesOf(c.byCenter(bySearch)),
		Years:   years,
		Months:  make([]int, 12),
		Weeks:   make([]int, schedule.ISOWeeksIn(c.state.Year)),
	}
	for i := range opts.Months {
		opts.Months[i] = i + 1
	}
	for i := range opts.Weeks {
		opts.Weeks[i] = i + 1
	}
	return opts
}

// Filtered returns the groups matching search, center and phase, in input
// order.
func (c *Cascade) Filtered() []Group {
	return c.byPhase(c.byCenter(c.bySearch()))
}

// FilteredIDs returns the ids of Filtered.
func (c *Cascade) FilteredIDs() []string {
	groups := c.Filtered()
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

// normalize coerces center and phase back to All when they are not offered.
func (c *Cascade) normalize() {
	bySearch := c.bySearch()
	if c.state.Center != All && !slices.ContainsFunc(centersOf(bySearch), func(ct Center) bool {
		return ct.Code == c.state.Center
	}) {
		c.state.Center = All
	}
	if c.state.Phase != All && !slices.Contains(phasesOf(c.byCenter(bySearch)), c.state.Phase) {
		c.state.Phase = All
	}
}

func (c *Cascade) bySearch() []Group {
	term := strings.ToLower(strings.TrimSpace(c.state.Search))
	if term == "" {
		return c.groups
	}
	var out []Group
	for _, g := range c.groups {
		if strings.Contains(strings.ToLower(g.Name), term) || strings.Contains(strings.ToLower(g.CenterName), term) {
			out = append(out, g)
		}
	}
	return out
}

func (c *Cascade) byCenter(groups []Group) []Group {
	if c.state.Center == All {
		return groups
	}
	var out []Group
	for _, g := range groups {
		if g.CenterCode == c.state.Center {
			out = append(out, g)
		}
	}
	return out
}

func (c *Cascade) byPhase(groups []Group) []Group {
	if c.state.Phase == All {
		return groups
	}
	var out []Group
	for _, g := range groups {
		if g.Phase == c.state.Phase {
			out = append(out, g)
		}
	}
	return out
}

func centersOf(groups []Group) []Center {
	seen := make(map[string]bool)
	var out []Center
	for _, g := range groups {
		if g.CenterCode == "" || seen[g.CenterCode] {
			continue
		}
		seen[g.CenterCode] = true
		out = append(out, Center{Code: g.CenterCode, Name: g.CenterName})
	}
	slices.SortFunc(out, func(a, b Center) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func phasesOf(groups []Group) []string {
	var out []string
	for _, g := range groups {
		if g.Phase != "" && !slices.Contains(out, g.Phase) {
			out = append(out, g.Phase)
		}
	}
	slices.Sort(out)
	return out
}

// ParseMonth converts a query value ("all", "", "1".."12") to a month.
func ParseMonth(s string) int {
	return parseAllInt(s)
}

// ParseWeek converts a query value ("all", "", "1".."53") to a week.
func ParseWeek(s string) int {
	return parseAllInt(s)
}

func parseAllInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == All {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
