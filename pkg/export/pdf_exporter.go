package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var pdfColumnWidths = []float64{26, 48, 22, 22, 22, 14, 14, 22, 0}

// PDFExporter renders the roster and a per-section fill summary as a landscape PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the roster document. fills may be empty.
func (e *PDFExporter) Render(title string, rows []RosterRow, fills []SectionFill) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	widths := columnWidths(pdf)
	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		for i, header := range RosterHeaders {
			pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
		}
		for i, value := range row.record() {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(fills) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 8, "Section fill", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for _, fill := range fills {
			pdf.CellFormat(60, 6, fill.Label(), "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%d / %d", fill.Assigned, fill.Capacity), "1", 1, "R", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(pdf *gofpdf.Fpdf) []float64 {
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	widths := make([]float64, len(pdfColumnWidths))
	used := 0.0
	for i, w := range pdfColumnWidths {
		widths[i] = w
		used += w
	}
	widths[len(widths)-1] = usable - used
	return widths
}
