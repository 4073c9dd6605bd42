package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"pdr/internal/domain/pdr"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

type CycleSummary struct {
	FYLabel      string         `json:"fyLabel"`
	ByStatus     map[string]int `json:"byStatus"`
	AwaitingCEO  int            `json:"awaitingCeo"`
	Uncalibrated int            `json:"uncalibrated"`
}

func (s *Service) CycleSummary(ctx context.Context, fyLabel string) (CycleSummary, error) {
	byStatus, err := s.Store.CountByStatus(ctx, fyLabel)
	if err != nil {
		return CycleSummary{}, err
	}
	awaiting, err := s.Store.AwaitingCEO(ctx, fyLabel)
	if err != nil {
		return CycleSummary{}, err
	}
	uncalibrated, err := s.Store.Uncalibrated(ctx, fyLabel)
	if err != nil {
		return CycleSummary{}, err
	}
	return CycleSummary{
		FYLabel:      fyLabel,
		ByStatus:     byStatus,
		AwaitingCEO:  awaiting,
		Uncalibrated: uncalibrated,
	}, nil
}

// GeneratePDRPDF renders a review summary document for download. The caller
// is responsible for redacting the aggregate to the requester's visibility
// first.
func (s *Service) GeneratePDRPDF(ctx context.Context, p *pdr.PDR) ([]byte, error) {
	employeeName, err := s.Store.EmployeeName(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance & Development Review")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", employeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Financial year: %s", p.FYLabel))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", p.Status))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Goals")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	for _, g := range p.Goals {
		pdf.Cell(0, 7, fmt.Sprintf("%s (%s)", g.Title, g.Priority))
		pdf.Ln(6)
		writeRatingLine(pdf, g.EmployeeRating, g.CEORating)
		if g.CEOComments != "" {
			pdf.MultiCell(0, 6, fmt.Sprintf("CEO comments: %s", g.CEOComments), "", "L", false)
		}
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Behaviors")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	for _, b := range p.Behaviors {
		pdf.Cell(0, 7, b.CompanyValueName)
		pdf.Ln(6)
		writeRatingLine(pdf, b.EmployeeRating, b.CEORating)
		pdf.Ln(3)
	}

	if p.MidYear != nil {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Mid-year check-in")
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, p.MidYear.ProgressSummary, "", "L", false)
		if p.MidYear.CEOFeedback != "" {
			pdf.MultiCell(0, 6, fmt.Sprintf("CEO feedback: %s", p.MidYear.CEOFeedback), "", "L", false)
		}
		pdf.Ln(3)
	}

	if p.EndYear != nil {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "End-year review")
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, p.EndYear.Achievements, "", "L", false)
		if p.EndYear.CEORating != nil {
			pdf.Cell(0, 6, fmt.Sprintf("Overall rating: %d/5", *p.EndYear.CEORating))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRatingLine(pdf *gofpdf.Fpdf, employeeRating, ceoRating *int) {
	line := "Self-rating: -"
	if employeeRating != nil {
		line = fmt.Sprintf("Self-rating: %d/5", *employeeRating)
	}
	if ceoRating != nil {
		line += fmt.Sprintf("   CEO rating: %d/5", *ceoRating)
	}
	pdf.Cell(0, 6, line)
	pdf.Ln(6)
}
