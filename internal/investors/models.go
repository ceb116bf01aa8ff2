package investors

import (
	"time"

	"github.com/lib/pq"
)

// Investor mandate profile used for deal matching.
type Investor struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null;index" json:"name"`
	Type          string         `gorm:"not null" json:"type"`
	Instruments   pq.StringArray `gorm:"type:text[]" json:"instruments"`
	TicketSizeMin float64        `json:"ticket_size_min"`
	TicketSizeMax float64        `json:"ticket_size_max"`
	CountryFocus  pq.StringArray `gorm:"type:text[]" json:"country_focus"`
	SectorFocus   pq.StringArray `gorm:"type:text[]" json:"sector_focus"`
	TargetIRR     *float64       `json:"target_irr"`
	ESGCriteria   *string        `json:"esg_criteria"`
	ContactEmail  *string        `json:"contact_email"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
