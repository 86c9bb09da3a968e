package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// column widths in mm of the transaction table.
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 25, "L"},
	{"Description", 70, "L"},
	{"Category", 45, "L"},
	{"Amount", 40, "R"},
}

// PDF writes the statement as a PDF document: a header, the summary and the
// transaction table, RowsPerPage rows per page.
func PDF(w io.Writer, s Statement) error {
	pdf := newPDF(s)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error writing pdf: %w", err)
	}
	return nil
}

func newPDF(s Statement) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(s.Title, true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	title := s.Title
	if s.Name != "" {
		title += " for " + s.Name
	}
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Generated on %s, amounts in %s", s.GeneratedAt.Format("2006-01-02 15:04"), s.Currency)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range [][2]string{{"Income", s.Income}, {"Expenses", s.Expense}, {"Net", s.Net}} {
		pdf.CellFormat(40, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(row[1]), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	if len(s.Transactions) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, "No transactions recorded.", "", 1, "L", false, 0, "")
		return pdf
	}

	tableHeader := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range columns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	tableHeader()
	rows := 0
	for _, t := range s.Transactions {
		if rows == RowsPerPage {
			pdf.AddPage()
			tableHeader()
			rows = 0
		}
		cells := []string{t.Date, t.Description, t.Category, t.Amount}
		for i, c := range columns {
			pdf.CellFormat(c.width, 6, tr(fit(pdf, cells[i], c.width)), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
		rows++
	}
	if s.Truncated() {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Showing the %d most recent of %d transactions.", len(s.Transactions), s.Count), "", 1, "L", false, 0, "")
	}
	return pdf
}

// fit shortens text so that it fits in a cell of width mm.
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(text) <= width-padding {
		return text
	}
	r := []rune(text)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width-padding {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
