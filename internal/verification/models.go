package verification

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Ordered verification levels
const (
	LevelV0 = "V0"
	LevelV1 = "V1"
	LevelV2 = "V2"
	LevelV3 = "V3"
)

// Request statuses
const (
	StatusPending       = "pending"
	StatusInProgress    = "in_progress"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusNeedsRevision = "needs_revision"
)

// Review outcomes
const (
	OutcomeApproved      = "approved"
	OutcomeRejected      = "rejected"
	OutcomeNeedsRevision = "needs_revision"
)

// Risk levels derived from the overall score
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// History action tags
const (
	ActionCreated           = "created"
	ActionFPAssigned        = "fp_assigned"
	ActionLPAssigned        = "lp_assigned"
	ActionFPReviewSubmitted = "fp_review_submitted"
	ActionLPReviewSubmitted = "lp_review_submitted"
)

// Document verification sub-statuses
const (
	DocStatusPending  = "pending"
	DocStatusVerified = "verified"
	DocStatusRejected = "rejected"
)

// VerificationRequest is one attempt to reach a level. Terminal at
// approved or rejected; a fresh request is opened to retry a level.
// LockVersion is the optimistic concurrency token; every mutation goes
// through the repository's version-checked update.
type VerificationRequest struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	ProjectID      uint    `gorm:"not null;index" json:"project_id"`
	RequestedLevel string  `gorm:"not null" json:"requested_level"`
	CurrentLevel   *string `json:"current_level"`
	Status         string  `gorm:"not null;default:pending;index" json:"status"`
	RequestedByID  uint    `gorm:"not null" json:"requested_by_id"`

	FundPreparerID *uint `json:"fund_preparer_id"`
	LeadPartnerID  *uint `json:"lead_partner_id"`

	FPReviewStatus *string    `json:"fp_review_status"`
	FPReviewDate   *time.Time `json:"fp_review_date"`
	FPReviewNotes  *string    `json:"fp_review_notes"`

	LPReviewStatus *string    `json:"lp_review_status"`
	LPReviewDate   *time.Time `json:"lp_review_date"`
	LPReviewNotes  *string    `json:"lp_review_notes"`

	TechnicalScore *float64 `json:"technical_score"`
	FinancialScore *float64 `json:"financial_score"`
	LegalScore     *float64 `json:"legal_score"`
	ESGScore       *float64 `json:"esg_score"`
	OverallScore   *float64 `json:"overall_score"`
	RiskLevel      *string  `json:"risk_level"`

	RequiredDocuments  pq.StringArray `gorm:"type:text[]" json:"required_documents"`
	SubmittedDocuments pq.Int64Array  `gorm:"type:bigint[]" json:"submitted_documents"`

	BlockchainHash    *string    `json:"blockchain_hash"`
	BlockchainTx      *string    `json:"blockchain_tx"`
	AttestedAt        *time.Time `json:"attested_at"`
	AttestationStatus *string    `json:"attestation_status"`
	CertificateID     *string    `json:"certificate_id"`

	CompletedAt *time.Time `json:"completed_at"`
	LockVersion uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Terminal reports whether the request accepts no further reviews.
func (r *VerificationRequest) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// VerificationDocument is evidence attached to a request. Owned by the
// request and cascade-deleted with it.
type VerificationDocument struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RequestID    uint           `gorm:"not null;index" json:"request_id"`
	Name         string         `gorm:"not null" json:"name"`
	DocumentType string         `gorm:"not null" json:"document_type"`
	FileRef      string         `json:"file_ref"`
	ContentHash  string         `json:"content_hash"`
	Status       string         `gorm:"not null;default:pending" json:"status"`
	AIAnalysis   datatypes.JSON `json:"ai_analysis"`
	AIRiskScore  *float64       `json:"ai_risk_score"`
	UploadedByID uint           `json:"uploaded_by_id"`
	CreatedAt    time.Time      `json:"created_at"`
}

func validLevel(level string) bool {
	switch level {
	case LevelV0, LevelV1, LevelV2, LevelV3:
		return true
	}
	return false
}

func validOutcome(outcome string) bool {
	switch outcome {
	case OutcomeApproved, OutcomeRejected, OutcomeNeedsRevision:
		return true
	}
	return false
}
