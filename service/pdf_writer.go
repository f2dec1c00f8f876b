package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// documentEpoch is stamped as creation date so equal input gives equal bytes
var documentEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DocumentWriter serializes composed pages into a PDF
type DocumentWriter interface {
	Write(ctx context.Context, layout PageLayout, pages []Page, w io.Writer) error
}

// FPDFWriter draws pages natively with fpdf, placing each tile PNG in its cell
type FPDFWriter struct {
	compress bool
}

// NewFPDFWriter creates the native PDF writer
func NewFPDFWriter() *FPDFWriter {
	return &FPDFWriter{compress: true}
}

// Ensure FPDFWriter implements DocumentWriter
var _ DocumentWriter = (*FPDFWriter)(nil)

// Write renders every page in order and writes the PDF to w
func (fw *FPDFWriter) Write(ctx context.Context, layout PageLayout, pages []Page, w io.Writer) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetCompression(fw.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(documentEpoch)
	pdf.SetModificationDate(documentEpoch)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetTitle(layout.Brand+" "+layout.Subtitle, true)
	pdf.SetCreator(layout.Brand, true)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.AddPage()
		fw.drawHeader(pdf, layout)
		for i, tile := range p.Tiles {
			fw.drawTile(pdf, layout.CellRect(i), tile, fmt.Sprintf("tile-%d-%d", p.Number, i))
		}
		fw.drawFooter(pdf, layout, p.Number)
		if !pdf.Ok() {
			return fmt.Errorf("failed to draw page %d: %w", p.Number, pdf.Error())
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func (fw *FPDFWriter) drawHeader(pdf *fpdf.Fpdf, layout PageLayout) {
	header := layout.HeaderRect()
	pdf.SetTextColor(0x22, 0x22, 0x22)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(header.X, header.Y)
	pdf.CellFormat(header.W, header.H*0.55, layout.Brand, "", 0, "C", false, 0, "")

	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(header.X, header.Y+header.H*0.55)
	pdf.CellFormat(header.W, header.H*0.45, layout.Subtitle, "", 0, "C", false, 0, "")

	pdf.SetDrawColor(0xcc, 0xcc, 0xcc)
	pdf.SetLineWidth(0.3)
	pdf.Line(header.X, header.Bottom(), header.Right(), header.Bottom())
}

func (fw *FPDFWriter) drawFooter(pdf *fpdf.Fpdf, layout PageLayout, number int) {
	footer := layout.FooterRect()
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(footer.X, footer.Y)
	pdf.CellFormat(footer.W, footer.H, FooterText(number), "", 0, "C", false, 0, "")
}

// drawTile places the tile raster in its cell. Tiles without a raster get
// their captions drawn as PDF text instead.
func (fw *FPDFWriter) drawTile(pdf *fpdf.Fpdf, cell Rect, tile CardTile, alias string) {
	if len(tile.PNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(alias, opts, bytes.NewReader(tile.PNG))
		pdf.ImageOptions(alias, cell.X, cell.Y, cell.W, cell.H, false, opts, 0, "")
		return
	}

	pdf.SetDrawColor(0xdd, 0xdd, 0xdd)
	pdf.SetLineWidth(0.2)
	pdf.Rect(cell.X, cell.Y, cell.W, cell.H, "D")

	unit := cell.H / TileHeight
	pdf.SetTextColor(0x22, 0x22, 0x22)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(cell.X, cell.Y+(captionBaseline-captionSize)*unit)
	pdf.CellFormat(cell.W, captionSize*unit, tile.Caption, "", 0, "C", false, 0, "")

	if len(tile.WeightLabels) > 0 {
		pdf.SetTextColor(0x55, 0x55, 0x55)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetXY(cell.X, cell.Y+(weightBaseline-weightSize)*unit)
		pdf.CellFormat(cell.W, weightSize*unit, strings.Join(tile.WeightLabels, "    "), "", 0, "C", false, 0, "")
	}
}
