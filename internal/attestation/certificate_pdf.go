package attestation

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderCertificatePDF renders a verification certificate as a PDF.
func RenderCertificatePDF(cert *BlockchainCertificate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Blockchain Verification Certificate", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Certificate ID", cert.CertificateID},
		{"Document Hash", cert.DocumentHash},
		{"Transaction Hash", cert.TransactionHash},
		{"Block Number", fmt.Sprintf("%d", cert.BlockNumber)},
		{"Network", cert.Network},
		{"Issued", cert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		{"Explorer", cert.ExplorerURL},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 8, row[1], "", "L", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "This certificate verifies that the document hash was recorded on the blockchain at the specified time.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
