package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Sprint health status bands.
const (
	SprintHealthOnTrack  = "on_track"
	SprintHealthAtRisk   = "at_risk"
	SprintHealthCritical = "critical"
	SprintHealthUnknown  = "unknown"
)

// Risk flag kinds.
const (
	RiskScopeCreep    = "scope_creep"
	RiskStalledTicket = "stalled_ticket"
	RiskBlockedTicket = "blocked_ticket"
)

// RiskFlag marks one risk detected during sprint analysis.
type RiskFlag struct {
	Kind      string `json:"kind"`
	TicketKey string `json:"ticket_key,omitempty"`
	Detail    string `json:"detail"`
}

// SprintSnapshot is one point-in-time computed summary of sprint health.
// Recomputed, never mutated; each analyzer run appends a new row.
type SprintSnapshot struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SprintID  string    `json:"sprint_id" gorm:"type:varchar(64);not null;index"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`

	// Velocity is completed story points per elapsed sprint day.
	Velocity        float64 `json:"velocity"`
	CompletedPoints float64 `json:"completed_points"`
	TotalPoints     float64 `json:"total_points"`
	ElapsedDays     float64 `json:"elapsed_days"`
	RemainingDays   float64 `json:"remaining_days"`
	// BurndownDelta is actual completion ratio minus the ideal line;
	// negative means behind.
	BurndownDelta float64 `json:"burndown_delta"`

	HealthStatus string                        `json:"health_status" gorm:"type:varchar(20)"`
	RiskFlags    datatypes.JSONSlice[RiskFlag] `json:"risk_flags,omitempty" gorm:"type:jsonb"`
	Narrative    string                        `json:"narrative" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (SprintSnapshot) TableName() string {
	return "sprint_snapshots"
}
