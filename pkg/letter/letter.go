// Package letter renders the downloadable permission letter of an approved request. Each
// category has its own layout; all of them consume the same Letter.
package letter

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Category names, matching the stored request categories.
const (
	CategoryIndustrialTraining   = "Industrial Training"
	CategoryScholarship          = "Scholarship"
	CategoryOriginalCertificates = "Original Certificates"
	CategoryRailwayConcession    = "Railway Concession"
	CategoryEventPermission      = "Event/Activity Permission"

	SubcategorySeasonTicket = "Season Ticket"
)

// ErrUnsupportedCategory is returned when no layout exists for a category.
var ErrUnsupportedCategory = errors.New("no letter layout for category")

// Letter is the finalized request data printed on a letter.
type Letter struct {
	ReferenceID       string
	Category          string
	Subcategory       string
	StudentName       string
	StudentNumber     string
	StudentClass      string
	StudentDepartment string
	TargetDepartment  string
	Reason            string
	FromDate          time.Time
	ToDate            time.Time
	SubmittedAt       time.Time
	ApprovedAt        time.Time
	TeacherName       string
	HODName           string
	TargetHODName     string
	PrincipalName     string
}

type layout func(w *writer, l *Letter)

var layouts = map[string]layout{
	CategoryIndustrialTraining:   industrialTraining,
	CategoryScholarship:          scholarship,
	CategoryOriginalCertificates: originalCertificates,
	CategoryRailwayConcession:    railwayConcession,
	CategoryEventPermission:      eventPermission,
}

// Supports reports whether category has a layout.
func Supports(category string) bool {
	_, ok := layouts[category]
	return ok
}

// Renderer produces PDF letters headed with the institution name.
type Renderer struct {
	institution string
}

// NewRenderer constructs a renderer.
func NewRenderer(institution string) *Renderer {
	return &Renderer{institution: institution}
}

// Render lays out l with the strategy of its category.
func (r *Renderer) Render(l *Letter) ([]byte, error) {
	render, ok := layouts[l.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, l.Category)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetTitle("Permission "+l.ReferenceID, true)
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), institution: r.institution}
	render(w, l)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the download name of a letter.
func Filename(referenceID string) string {
	return fmt.Sprintf("permission-%s.pdf", referenceID)
}
