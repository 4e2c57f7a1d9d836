package models

import "time"

type AlertCategory string

const (
	AlertCategoryMedical    AlertCategory = "medical"
	AlertCategoryFire       AlertCategory = "fire"
	AlertCategorySecurity   AlertCategory = "security"
	AlertCategoryEarthquake AlertCategory = "earthquake"
	AlertCategoryFlood      AlertCategory = "flood"
	AlertCategoryGeneral    AlertCategory = "general"
)

func (c AlertCategory) Valid() bool {
	switch c {
	case AlertCategoryMedical, AlertCategoryFire, AlertCategorySecurity,
		AlertCategoryEarthquake, AlertCategoryFlood, AlertCategoryGeneral:
		return true
	default:
		return false
	}
}

type AlertStatus string

const (
	AlertStatusPending  AlertStatus = "pending"
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// rank orders statuses along the only direction an alert may move.
func (s AlertStatus) rank() int {
	switch s {
	case AlertStatusPending:
		return 1
	case AlertStatusActive:
		return 2
	case AlertStatusResolved:
		return 3
	default:
		return 0
	}
}

func (s AlertStatus) Valid() bool {
	return s.rank() > 0
}

// Open reports whether the alert still counts as unresolved.
func (s AlertStatus) Open() bool {
	return s == AlertStatusPending || s == AlertStatusActive
}

// CanTransitionTo reports whether moving from s to next is a forward move.
// Re-applying the current status is rejected, as is anything out of resolved.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	return s == SeverityHigh || s == SeverityMedium || s == SeverityLow
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Alert struct {
	ID           string        `json:"id"`
	Institution  Institution   `json:"institution"`
	ReporterName string        `json:"reporter_name"`
	Category     AlertCategory `json:"category"`
	Status       AlertStatus   `json:"status"`
	Severity     Severity      `json:"severity"`
	Location     string        `json:"location"`
	Description  string        `json:"description"`
	Coordinates  *Coordinates  `json:"coordinates,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Seq          int64         `json:"-"` // insertion order, breaks CreatedAt ties
}

// AlertDraft is what a trigger point supplies to create an Alert.
type AlertDraft struct {
	Institution  Institution   `json:"institution"`
	ReporterName string        `json:"reporter_name" validate:"required"`
	Category     AlertCategory `json:"category" validate:"required,oneof=medical fire security earthquake flood general"`
	Severity     Severity      `json:"severity" validate:"required,oneof=high medium low"`
	Status       AlertStatus   `json:"status" validate:"omitempty,oneof=pending active"`
	Location     string        `json:"location" validate:"required"`
	Description  string        `json:"description" validate:"required"`
	Coordinates  *Coordinates  `json:"coordinates,omitempty"`
}
