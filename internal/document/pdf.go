package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 7.0
)

// writePDF lays content out on A4 pages. Text goes through the core-font code page
// translator so user-supplied names cannot break the page stream.
func writePDF(buf *bytes.Buffer, c content, author string, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr(c.title), false)
	pdf.SetAuthor(tr(author), false)
	pdf.SetCreationDate(now)
	pdf.SetMargins(20, 20, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 12, tr(c.title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	for _, blk := range c.blocks {
		switch blk.kind {
		case blockHeading:
			pdf.SetFont(fontFamily, "B", 13)
			pdf.CellFormat(0, lineHeight, tr(blk.text), "B", 1, "C", false, 0, "")
		case blockField:
			pdf.SetFont(fontFamily, "B", 11)
			pdf.CellFormat(40, lineHeight, tr(blk.label+":"), "", 0, "L", false, 0, "")
			pdf.SetFont(fontFamily, "", 11)
			pdf.MultiCell(0, lineHeight, tr(blk.text), "", "L", false)
		case blockParagraph:
			pdf.SetFont(fontFamily, "", 12)
			pdf.MultiCell(0, lineHeight, tr(blk.text), "", "J", false)
			pdf.Ln(3)
		case blockEmphasis:
			pdf.SetFont(fontFamily, "B", 14)
			pdf.CellFormat(0, 10, tr(blk.text), "1", 1, "C", false, 0, "")
		case blockGap:
			pdf.Ln(6)
		case blockSignature:
			pdf.Ln(12)
			pdf.SetFont(fontFamily, "", 11)
			pdf.CellFormat(0, lineHeight, "______________________", "", 1, "R", false, 0, "")
			pdf.CellFormat(0, lineHeight, tr(blk.text), "", 1, "R", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout document: %w", err)
	}
	return pdf.Output(buf)
}
