package attestation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/config"
)

func testService() *Service {
	return NewService(config.AttestationConfig{
		Network:         "polygon-mumbai",
		ContractAddress: "0x0000000000000000000000000000000000000000",
		ExplorerBaseURL: "https://polygonscan.com/tx/",
		Timeout:         5 * time.Second,
	}, zap.NewNop())
}

func TestHashContentDeterministic(t *testing.T) {
	a := HashContent([]byte("document body"))
	b := HashContent([]byte("document body"))
	c := HashContent([]byte("different body"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRegisterProducesCertificate(t *testing.T) {
	service := testService()
	hash := HashContent([]byte("feasibility study v2"))

	result := service.Register(context.Background(), hash, DocumentMetadata(7, "feasibility.pdf", hash, 3, "V3", nil))
	require.True(t, result.Succeeded())

	cert := result.Certificate
	assert.True(t, strings.HasPrefix(cert.CertificateID, "AIP-CERT-"))
	assert.Contains(t, cert.CertificateID, strings.ToUpper(hash[:8]))
	assert.True(t, strings.HasPrefix(cert.TransactionHash, "0x"))
	assert.Equal(t, hash, cert.DocumentHash)
	assert.Equal(t, "polygon-mumbai", cert.Network)
	assert.Equal(t, "https://polygonscan.com/tx/"+cert.TransactionHash, cert.VerificationURL)
}

func TestRegisterNeverReturnsErrorOnCancelledContext(t *testing.T) {
	service := testService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := service.Register(ctx, HashContent([]byte("x")), nil)
	assert.False(t, result.Succeeded())
	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.Reason)
}

func TestRegisterFailsShortHash(t *testing.T) {
	service := testService()

	result := service.Register(context.Background(), "abc123", nil)
	assert.False(t, result.Succeeded())
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Reason, "too short")
}

func TestDocumentMetadataShape(t *testing.T) {
	hash := HashContent([]byte("y"))
	metadata := DocumentMetadata(12, "permits.pdf", hash, 4, "V2", map[string]interface{}{"k": "v"})

	assert.Equal(t, "AIP Platform", metadata["platform"])
	assert.Equal(t, uint(12), metadata["document_id"])
	assert.Equal(t, hash, metadata["document_hash"])
	assert.Equal(t, "V2", metadata["verification_level"])
	assert.Contains(t, metadata, "additional_data")

	bare := DocumentMetadata(1, "a", hash, 1, "V0", nil)
	assert.NotContains(t, bare, "additional_data")
}
