package sira

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Alert severities
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

// Alert statuses
const (
	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
	AlertAssigned     = "assigned"
	AlertClosed       = "closed"
)

// Case statuses
const (
	CaseOpen          = "open"
	CaseInvestigating = "investigating"
	CaseClosed        = "closed"
)

// Evidence verification statuses
const (
	EvidencePending  = "pending"
	EvidenceVerified = "verified"
	EvidenceRejected = "rejected"
)

// Movement is a tracked cargo movement.
type Movement struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Reference   string         `gorm:"uniqueIndex;not null" json:"reference"`
	VesselName  string         `json:"vessel_name"`
	CargoType   string         `json:"cargo_type"`
	OriginPort  string         `json:"origin_port"`
	DestPort    string         `json:"dest_port"`
	Status      string         `gorm:"default:in_transit" json:"status"`
	RiskScore   *float64       `json:"risk_score"`
	RiskFactors pq.StringArray `gorm:"type:text[]" json:"risk_factors"`
	DepartedAt  *time.Time     `json:"departed_at"`
	ETA         *time.Time     `json:"eta"`
	CreatedByID uint           `json:"created_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ShipmentEvent is one position or status report for a movement.
type ShipmentEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	MovementID uint           `gorm:"not null;index" json:"movement_id"`
	EventType  string         `gorm:"not null" json:"event_type"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	Detail     datatypes.JSON `json:"detail"`
	OccurredAt time.Time      `json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Alert is a raised risk signal, optionally attached to a case.
type Alert struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	MovementID       *uint      `gorm:"index" json:"movement_id"`
	Title            string     `gorm:"not null" json:"title"`
	Description      string     `json:"description"`
	Severity         string     `gorm:"not null" json:"severity"`
	Status           string     `gorm:"not null;default:open;index" json:"status"`
	CaseID           *uint      `gorm:"index" json:"case_id"`
	AcknowledgedByID *uint      `json:"acknowledged_by_id"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at"`
	ClosedAt         *time.Time `json:"closed_at"`
	CreatedByID      uint       `json:"created_by_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Case is an investigation grouping alerts and evidence. Closed cases
// accept no further updates.
type Case struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Summary      string     `json:"summary"`
	Status       string     `gorm:"not null;default:open;index" json:"status"`
	Priority     string     `gorm:"default:Medium" json:"priority"`
	AssigneeID   *uint      `json:"assignee_id"`
	ClosureCode  *string    `json:"closure_code"`
	ClosureNotes *string    `json:"closure_notes"`
	ClosedByID   *uint      `json:"closed_by_id"`
	ClosedAt     *time.Time `json:"closed_at"`
	CreatedByID  uint       `json:"created_by_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Case) TableName() string { return "sira_cases" }

// Evidence is a file or note attached to a case, hashed at intake so
// later integrity checks can detect tampering.
type Evidence struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CaseID        uint       `gorm:"not null;index" json:"case_id"`
	Title         string     `gorm:"not null" json:"title"`
	ContentRef    string     `json:"content_ref"`
	IntegrityHash string     `gorm:"not null" json:"integrity_hash"`
	Status        string     `gorm:"not null;default:pending" json:"status"`
	VerifiedByID  *uint      `json:"verified_by_id"`
	VerifiedAt    *time.Time `json:"verified_at"`
	SubmittedByID uint       `json:"submitted_by_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Playbook is a named response procedure keyed by alert severity.
type Playbook struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Severity    string         `gorm:"not null" json:"severity"`
	Steps       datatypes.JSON `json:"steps"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedByID uint           `json:"created_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func validSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}
