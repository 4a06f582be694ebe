// Package export renders a submitted review as a PDF coverage report.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"scriptportal-backend-go/internal/rubric"
	"scriptportal-backend-go/internal/services"
)

const (
	pageFormat   = "A4"
	marginLeft   = 18.0
	marginRight  = 18.0
	marginTop    = 16.0
	headerHeight = 22.0
	// Content stops here; the rest of the page belongs to the footer.
	bottomLimit   = 297.0 - 28.0
	lineHeight    = 5.5
	headingHeight = 8.0
	sectionGap    = 4.0
	logoHeight    = 12.0
)

type Note struct {
	Page int
	Text string
}

type PageRubric struct {
	Page     int
	Sections []rubric.Section
}

// Document is everything printed in a coverage report.
type Document struct {
	ScriptTitle    string
	AuthorName     string
	ContractorName string
	TierName       string
	SubmittedAt    *time.Time
	Sections       []rubric.Section
	OverallNotes   string
	Notes          []Note
	PageRubrics    []PageRubric
}

type Options struct {
	HeaderLogo  string
	FooterLogo  string
	GeneratedAt time.Time
}

// withExistingLogos drops logo paths that cannot be read.
func (o Options) withExistingLogos() Options {
	if o.HeaderLogo != "" {
		if _, err := os.Stat(o.HeaderLogo); err != nil {
			o.HeaderLogo = ""
		}
	}
	if o.FooterLogo != "" {
		if _, err := os.Stat(o.FooterLogo); err != nil {
			o.FooterLogo = ""
		}
	}
	return o
}

func FromReviewDetail(detail services.ReviewDetail) Document {
	doc := Document{
		ScriptTitle:    detail.Script.Title,
		AuthorName:     detail.Script.AuthorName,
		ContractorName: detail.ContractorName,
		TierName:       detail.Script.TierName,
		SubmittedAt:    detail.Review.SubmittedAt,
		Sections:       detail.Sections,
	}
	if detail.Review.OverallNotes != nil {
		doc.OverallNotes = *detail.Review.OverallNotes
	}
	for _, note := range detail.Notes {
		doc.Notes = append(doc.Notes, Note{Page: note.PageNumber, Text: note.NoteContent})
	}
	for _, page := range detail.PageRubrics {
		doc.PageRubrics = append(doc.PageRubrics, PageRubric{Page: page.PageNumber, Sections: page.Sections})
	}
	return doc
}

type renderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	opts      Options
	textWidth float64
}

// Render writes the report to w and returns the number of pages.
func Render(w io.Writer, doc Document, opts Options) (int, error) {
	pdf := fpdf.New("P", "mm", pageFormat, "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("{nb}")
	pageWidth, _ := pdf.GetPageSize()

	r := &renderer{
		pdf:       pdf,
		tr:        pdf.UnicodeTranslatorFromDescriptor(""),
		opts:      opts.withExistingLogos(),
		textWidth: pageWidth - marginLeft - marginRight,
	}
	pdf.SetHeaderFunc(r.header)
	pdf.SetFooterFunc(r.footer)
	pdf.SetTitle(r.tr("Script coverage: "+doc.ScriptTitle), false)

	pdf.AddPage()
	r.titleBlock(doc)
	r.heading("Evaluation")
	for _, section := range doc.Sections {
		r.section(section)
	}
	if strings.TrimSpace(doc.OverallNotes) != "" {
		r.section(rubric.Section{Label: "Overall Notes", Text: doc.OverallNotes})
	}
	if len(doc.Notes) > 0 {
		r.heading("Page Notes")
		for _, note := range doc.Notes {
			r.section(rubric.Section{Label: fmt.Sprintf("Page %d", note.Page), Text: note.Text})
		}
	}
	for _, page := range doc.PageRubrics {
		r.heading(fmt.Sprintf("Page %d Rubric", page.Page))
		for _, section := range page.Sections {
			if section.Rating == nil && strings.TrimSpace(section.Text) == "" {
				continue
			}
			r.section(section)
		}
	}

	if err := pdf.Error(); err != nil {
		return 0, err
	}
	pages := pdf.PageNo()
	if err := pdf.Output(w); err != nil {
		return 0, err
	}
	return pages, nil
}

func (r *renderer) header() {
	if r.opts.HeaderLogo != "" {
		r.pdf.ImageOptions(r.opts.HeaderLogo, marginLeft, 8, 0, logoHeight, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
	}
	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.SetXY(marginLeft, 10)
	r.pdf.CellFormat(r.textWidth, 4, r.tr("Script Coverage Report"), "", 0, "R", false, 0, "")
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetY(marginTop + headerHeight)
}

func (r *renderer) footer() {
	if r.opts.FooterLogo != "" {
		r.pdf.ImageOptions(r.opts.FooterLogo, marginLeft, 297-20, 0, 8, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
	}
	r.pdf.SetY(-15)
	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.CellFormat(r.textWidth, 5, fmt.Sprintf("Page %d of {nb}", r.pdf.PageNo()), "", 0, "C", false, 0, "")
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *renderer) titleBlock(doc Document) {
	r.pdf.SetFont("Helvetica", "B", 18)
	for _, line := range r.split(doc.ScriptTitle, 18) {
		r.pdf.CellFormat(r.textWidth, 9, line, "", 1, "L", false, 0, "")
	}
	r.pdf.SetFont("Helvetica", "", 10)
	meta := []string{"Author: " + doc.AuthorName}
	if doc.ContractorName != "" {
		meta = append(meta, "Reviewer: "+doc.ContractorName)
	}
	if doc.TierName != "" {
		meta = append(meta, "Service: "+doc.TierName)
	}
	if doc.SubmittedAt != nil {
		meta = append(meta, "Submitted: "+doc.SubmittedAt.Format("January 2, 2006"))
	}
	if !r.opts.GeneratedAt.IsZero() {
		meta = append(meta, "Generated: "+r.opts.GeneratedAt.Format("January 2, 2006"))
	}
	for _, line := range meta {
		r.pdf.CellFormat(r.textWidth, lineHeight, r.tr(line), "", 1, "L", false, 0, "")
	}
	r.pdf.Ln(sectionGap)
}

func (r *renderer) ensureSpace(height float64) {
	if r.pdf.GetY()+height > bottomLimit {
		r.pdf.AddPage()
	}
}

func (r *renderer) heading(text string) {
	// Keep a heading with at least its first content line.
	r.ensureSpace(headingHeight + headingHeight + lineHeight)
	r.pdf.SetFont("Helvetica", "B", 13)
	r.pdf.CellFormat(r.textWidth, headingHeight, r.tr(text), "B", 1, "L", false, 0, "")
	r.pdf.Ln(2)
}

// section prints a label line and the wrapped text. It moves to a new page
// when the whole section does not fit, and splits it line by line when it is
// taller than a page.
func (r *renderer) section(s rubric.Section) {
	label := s.Label
	if s.Rating != nil {
		label = fmt.Sprintf("%s  (%d / %d)", s.Label, *s.Rating, s.MaxRating)
	}
	text := strings.TrimSpace(s.Text)
	if text == "" {
		text = "-"
	}
	r.pdf.SetFont("Helvetica", "", 10)
	lines := r.split(text, 10)
	needed := headingHeight + float64(len(lines))*lineHeight + sectionGap
	if needed <= bottomLimit-(marginTop+headerHeight) {
		r.ensureSpace(needed)
	} else {
		r.ensureSpace(headingHeight + lineHeight)
	}

	r.pdf.SetFont("Helvetica", "B", 11)
	r.pdf.CellFormat(r.textWidth, headingHeight, r.tr(label), "", 1, "L", false, 0, "")
	r.pdf.SetFont("Helvetica", "", 10)
	for _, line := range lines {
		if r.pdf.GetY()+lineHeight > bottomLimit {
			r.pdf.AddPage()
			r.pdf.SetFont("Helvetica", "", 10)
		}
		r.pdf.CellFormat(r.textWidth, lineHeight, line, "", 1, "L", false, 0, "")
	}
	r.pdf.Ln(sectionGap)
}

// split wraps text to the content width at the given font size, keeping
// explicit line breaks.
func (r *renderer) split(text string, size float64) []string {
	r.pdf.SetFontSize(size)
	out := []string{}
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		translated := r.tr(paragraph)
		if translated == "" {
			out = append(out, "")
			continue
		}
		for _, line := range r.pdf.SplitLines([]byte(translated), r.textWidth) {
			out = append(out, string(line))
		}
	}
	return out
}
