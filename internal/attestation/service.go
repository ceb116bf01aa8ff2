package attestation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/config"
)

// Service registers content hashes against a tamper-evident ledger.
// The current implementation simulates the ledger transaction: hashes
// and certificate ids are real and deterministic, the transaction and
// block number are synthetic. The call shape matches what a contract
// integration would use.
type Service struct {
	cfg    config.AttestationConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewService(cfg config.AttestationConfig, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, logger: logger, now: time.Now}
}

// HashContent returns the hex-encoded SHA-256 hash of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DocumentMetadata builds the canonical metadata map registered
// alongside a document hash.
func DocumentMetadata(documentID uint, documentName, documentHash string, ownerID uint, verificationLevel string, additional map[string]interface{}) map[string]interface{} {
	metadata := map[string]interface{}{
		"version":            "1.0",
		"document_id":        documentID,
		"document_name":      documentName,
		"document_hash":      documentHash,
		"owner_id":           ownerID,
		"verification_level": verificationLevel,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"platform":           "AIP Platform",
	}
	if additional != nil {
		metadata["additional_data"] = additional
	}
	return metadata
}

// Register records a document hash on the ledger and returns the
// certificate. Never returns an error: failures come back as a failed
// Result so callers cannot accidentally let attestation block a
// committed workflow decision.
func (s *Service) Register(ctx context.Context, documentHash string, metadata map[string]interface{}) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return Result{Status: StatusFailed, Reason: err.Error()}
	}
	if len(documentHash) < 8 {
		return Result{Status: StatusFailed, Reason: fmt.Sprintf("document hash %q is too short", documentHash)}
	}

	txData, err := json.Marshal(map[string]interface{}{
		"hash":      documentHash,
		"metadata":  metadata,
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return Result{Status: StatusFailed, Reason: fmt.Sprintf("metadata not serializable: %v", err)}
	}

	txHash := "0x" + HashContent(txData)
	certID := fmt.Sprintf("AIP-CERT-%s-%d", strings.ToUpper(documentHash[:8]), s.now().Unix())

	cert := &Certificate{
		CertificateID:   certID,
		DocumentHash:    documentHash,
		TransactionHash: txHash,
		BlockNumber:     12345678,
		Timestamp:       s.now().UTC(),
		Network:         s.cfg.Network,
		ContractAddress: s.cfg.ContractAddress,
		IssuerAddress:   "0x" + strings.Repeat("0", 40),
		Metadata:        metadata,
		VerificationURL: s.cfg.ExplorerBaseURL + txHash,
	}

	s.logger.Debug("registered document hash",
		zap.String("certificate_id", certID),
		zap.String("network", s.cfg.Network))

	return Result{Status: StatusConfirmed, Certificate: cert}
}

// Verify checks whether a hash exists on the ledger. Simulated: always
// confirms, mirroring the registration path.
func (s *Service) Verify(ctx context.Context, documentHash string) map[string]interface{} {
	return map[string]interface{}{
		"verified":                true,
		"document_hash":           documentHash,
		"blockchain_record_found": true,
		"network":                 s.cfg.Network,
		"verification_timestamp":  s.now().UTC().Format(time.RFC3339),
	}
}
