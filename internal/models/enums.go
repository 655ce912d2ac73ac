package models

import (
	"errors"
	"slices"
)

// Sentinel errors shared by the store packages. Wrap them with context and
// match with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("version conflict")
	ErrValidation = errors.New("validation failed")
)

// Phases a group or asset can belong to.
var Phases = []string{"PORTO", "MINA", "USINA", "PELOTIZAÇÃO", "FERROVIA"}

// Priorities in descending urgency.
var Priorities = []string{"critical", "high", "medium", "low"}

// Stop statuses.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// StopStatuses lists every stop status.
var StopStatuses = []string{StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled}

func ValidPhase(p string) bool      { return slices.Contains(Phases, p) }
func ValidPriority(p string) bool   { return slices.Contains(Priorities, p) }
func ValidStopStatus(s string) bool { return slices.Contains(StopStatuses, s) }
