package projects

import (
	"time"

	"github.com/lib/pq"
)

// Recognized sectors
const (
	SectorEnergy      = "Energy"
	SectorMining      = "Mining"
	SectorWater       = "Water"
	SectorTransport   = "Transport"
	SectorPorts       = "Ports"
	SectorRail        = "Rail"
	SectorRoads       = "Roads"
	SectorAgriculture = "Agriculture"
	SectorHealth      = "Health"
)

// Project lifecycle stages
const (
	StageConcept      = "Concept"
	StageFeasibility  = "Feasibility"
	StageProcurement  = "Procurement"
	StageConstruction = "Construction"
	StageOperation    = "Operation"
)

// Project is the root aggregate. Verification requests and data rooms
// belong to a project and are cascade-deleted with it.
type Project struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"not null;index" json:"name"`
	Sector           string         `gorm:"not null" json:"sector"`
	Country          string         `gorm:"not null" json:"country"`
	Region           *string        `json:"region"`
	Stage            string         `gorm:"not null" json:"stage"`
	EstimatedCapex   float64        `json:"estimated_capex"`
	FundingGap       *float64       `json:"funding_gap"`
	RevenueModel     string         `json:"revenue_model"`
	Offtaker         *string        `json:"offtaker"`
	ConcessionLength *int           `json:"concession_length"`
	Technology       *string        `json:"technology"`
	ESGCategory      *string        `json:"esg_category"`
	PermitsStatus    *string        `json:"permits_status"`
	RiskFlags        pq.StringArray `gorm:"type:text[]" json:"risk_flags"`
	OwnerID          uint           `gorm:"not null;index" json:"owner_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func validSector(s string) bool {
	switch s {
	case SectorEnergy, SectorMining, SectorWater, SectorTransport, SectorPorts,
		SectorRail, SectorRoads, SectorAgriculture, SectorHealth:
		return true
	}
	return false
}

func validStage(s string) bool {
	switch s {
	case StageConcept, StageFeasibility, StageProcurement, StageConstruction, StageOperation:
		return true
	}
	return false
}
