package letter

import (
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	lineHeight = 6.0
	leftX      = 20.0
	midX       = 110.0
	pageWidth  = 174.0
	blank      = "___________"
)

type writer struct {
	pdf         *gofpdf.Fpdf
	tr          func(string) string
	institution string
}

func (w *writer) header(title string) {
	w.pdf.SetFont("Helvetica", "B", 14)
	w.pdf.CellFormat(0, 8, w.tr(w.institution), "", 1, "C", false, 0, "")
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.MultiCell(0, 7, w.tr(title), "", "C", false)
	w.pdf.Ln(4)
	w.body()
}

func (w *writer) body() {
	w.pdf.SetFont("Helvetica", "", 10)
}

// text writes s at x on the current line without advancing.
func (w *writer) text(x float64, s string) {
	w.pdf.SetX(x)
	w.pdf.CellFormat(0, lineHeight, w.tr(s), "", 0, "L", false, 0, "")
}

// line writes s at x and moves to the next line.
func (w *writer) line(x float64, s string) {
	w.pdf.SetX(x)
	w.pdf.MultiCell(pageWidth-(x-leftX), lineHeight, w.tr(s), "", "L", false)
}

// pair writes two columns on one line.
func (w *writer) pair(left, right string) {
	w.text(leftX, left)
	w.text(midX, right)
	w.pdf.Ln(lineHeight)
}

func (w *writer) gap(lines float64) {
	w.pdf.Ln(lineHeight * lines)
}

// table draws a header row over an empty box of the given height.
func (w *writer) table(height float64, columns []string, widths []float64, values []string) {
	y := w.pdf.GetY()
	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.SetX(leftX)
	for i, col := range columns {
		w.pdf.CellFormat(widths[i], 8, w.tr(col), "1", 0, "C", false, 0, "")
	}
	w.pdf.Ln(8)
	w.body()
	w.pdf.SetX(leftX)
	for i := range columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		w.pdf.CellFormat(widths[i], height, w.tr(value), "1", 0, "C", false, 0, "")
	}
	w.pdf.SetY(y + 8 + height + 2)
}

func (w *writer) officeUse() {
	w.gap(1)
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.CellFormat(0, 8, "OFFICE USE", "", 1, "C", false, 0, "")
	w.body()
}

func (w *writer) recommendations(l *Letter) {
	w.line(leftX, "Recommended by:")
	w.line(leftX+10, "1. Group Tutor: "+orBlank(l.TeacherName))
	w.line(leftX+10, "2. HOD: "+orBlank(l.HODName))
	if l.TargetHODName != "" {
		w.line(leftX+10, "3. HOD, "+l.TargetDepartment+": "+l.TargetHODName)
	}
}

func (w *writer) footer(l *Letter) {
	w.gap(1)
	w.pair("Reference ID: "+l.ReferenceID, "Approved Date: "+date(l.ApprovedAt))
	w.line(leftX, "Sanctioned by the Principal: "+orBlank(l.PrincipalName))
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

func orBlank(s string) string {
	if s == "" {
		return blank
	}
	return s
}
