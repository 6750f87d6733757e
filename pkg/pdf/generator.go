package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt is the data printed on a donation receipt.
type Receipt struct {
	Number     string
	DonorName  string
	DonorEmail string
	Amount     float64
	Currency   string
	PaidAt     time.Time
	Payee      string
}

type Generator interface {
	Receipt(ctx context.Context, r Receipt) (io.ReadSeeker, error)
}

type gofpdfGenerator struct {
	orgName string
}

func NewGenerator(orgName string) Generator {
	return &gofpdfGenerator{orgName: orgName}
}

func (g *gofpdfGenerator) Receipt(ctx context.Context, r Receipt) (io.ReadSeeker, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("%s donation receipt %s", g.orgName, r.Number), true)
	doc.SetAuthor(g.orgName, true)
	doc.SetMargins(20, 20, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 12, g.orgName, "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.SetTextColor(100, 100, 100)
	doc.CellFormat(0, 8, "Supporter receipt", "", 1, "C", false, 0, "")
	doc.Ln(8)

	rows := [][2]string{
		{"Receipt", r.Number},
		{"Supporter", r.DonorName},
		{"Email", r.DonorEmail},
		{"Amount", fmt.Sprintf("%s %.2f", r.Currency, r.Amount)},
		{"Date", r.PaidAt.UTC().Format("2006-01-02 15:04 MST")},
		{"Paid to", r.Payee},
	}

	doc.SetTextColor(0, 0, 0)
	for i, row := range rows {
		if i%2 == 0 {
			doc.SetFillColor(240, 240, 240)
		} else {
			doc.SetFillColor(255, 255, 255)
		}
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(45, 9, row[0], "1", 0, "L", true, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(0, 9, row[1], "1", 1, "L", true, 0, "")
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 10)
	doc.MultiCell(0, 6, "Thank you for supporting "+g.orgName+". This receipt records a self-reported UPI payment.", "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
