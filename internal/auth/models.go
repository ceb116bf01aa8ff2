package auth

import (
	"time"
)

// Platform roles. FP/LP are roles held by reviewer users; the engines
// additionally check that the acting reviewer is the one assigned.
const (
	RoleAdmin        = "admin"
	RoleAnalyst      = "analyst"
	RoleSponsor      = "sponsor"
	RoleInvestor     = "investor"
	RoleFundPreparer = "fund_preparer"
	RoleLeadPartner  = "lead_partner"
	RoleOperator     = "operator"
	RoleSupervisor   = "supervisor"
	RoleSecurityLead = "security_lead"
	RoleViewer       = "viewer"
)

// User is a platform account
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"index" json:"email"`
	FullName       string    `json:"full_name"`
	HashedPassword string    `gorm:"not null" json:"-"`
	Role           string    `gorm:"not null;default:'viewer'" json:"role"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Actor is the authenticated principal passed into every service
// operation: a numeric id plus a role tag.
type Actor struct {
	ID   uint
	Role string
}
