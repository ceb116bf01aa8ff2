package attestation

import (
	"time"

	"gorm.io/datatypes"
)

// Result statuses stored on attested entities.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Certificate is the synthetic ledger registration receipt.
type Certificate struct {
	CertificateID   string                 `json:"certificate_id"`
	DocumentHash    string                 `json:"document_hash"`
	TransactionHash string                 `json:"transaction_hash"`
	BlockNumber     int64                  `json:"block_number"`
	Timestamp       time.Time              `json:"timestamp"`
	Network         string                 `json:"network"`
	ContractAddress string                 `json:"contract_address"`
	IssuerAddress   string                 `json:"issuer_address"`
	Metadata        map[string]interface{} `json:"metadata"`
	VerificationURL string                 `json:"verification_url"`
}

// Result is the outcome of a registration attempt. Registration is
// best-effort: failures are carried here, never raised past the
// component boundary.
type Result struct {
	Status      string
	Certificate *Certificate
	Reason      string
}

func (r Result) Succeeded() bool { return r.Status == StatusConfirmed }

// BlockchainCertificate is the persisted certificate record.
type BlockchainCertificate struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CertificateID   string         `gorm:"uniqueIndex;not null" json:"certificate_id"`
	CertificateType string         `gorm:"not null" json:"certificate_type"`
	DocumentType    string         `gorm:"not null" json:"document_type"`
	DocumentID      uint           `gorm:"not null;index" json:"document_id"`
	DocumentHash    string         `gorm:"not null" json:"document_hash"`
	Network         string         `json:"network"`
	TransactionHash string         `json:"transaction_hash"`
	BlockNumber     int64          `json:"block_number"`
	ExplorerURL     string         `json:"explorer_url"`
	CertMetadata    datatypes.JSON `json:"cert_metadata"`
	IssuedToID      uint           `json:"issued_to_id"`
	IssuedByID      *uint          `json:"issued_by_id"`
	CreatedAt       time.Time      `json:"created_at"`
}
