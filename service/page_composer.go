package service

import (
	"errors"
	"fmt"
)

const (
	defaultBrand    = "BLOUDAN BANGLES"
	defaultSubtitle = "Product Catalogue"
)

// Rect is a rectangle in millimetres, origin top-left
type Rect struct {
	X, Y, W, H float64
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Overlaps reports whether two rectangles share any area
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// PageLayout fixes the geometry of every catalogue page, in millimetres
type PageLayout struct {
	PageWidth    float64
	PageHeight   float64
	Margin       float64
	HeaderHeight float64
	FooterHeight float64
	Columns      int
	Rows         int
	CellWidth    float64
	CellHeight   float64
	PitchX       float64 // Distance between left edges of adjacent columns
	PitchY       float64 // Distance between top edges of adjacent rows
	Brand        string
	Subtitle     string
}

// DefaultPageLayout returns the A4 2x2 layout. Cells keep the 220:260 tile ratio.
func DefaultPageLayout(brand, subtitle string) PageLayout {
	if brand == "" {
		brand = defaultBrand
	}
	if subtitle == "" {
		subtitle = defaultSubtitle
	}
	return PageLayout{
		PageWidth:    210,
		PageHeight:   297,
		Margin:       12,
		HeaderHeight: 22,
		FooterHeight: 10,
		Columns:      2,
		Rows:         2,
		CellWidth:    88,
		CellHeight:   104,
		PitchX:       98,
		PitchY:       114,
		Brand:        brand,
		Subtitle:     subtitle,
	}
}

// Capacity is the number of tiles per page
func (l PageLayout) Capacity() int {
	return l.Columns * l.Rows
}

// HeaderRect is the band holding the brand and subtitle lines
func (l PageLayout) HeaderRect() Rect {
	return Rect{X: l.Margin, Y: l.Margin, W: l.PageWidth - 2*l.Margin, H: l.HeaderHeight}
}

// FooterRect is the band holding the page number
func (l PageLayout) FooterRect() Rect {
	return Rect{X: l.Margin, Y: l.PageHeight - l.Margin - l.FooterHeight, W: l.PageWidth - 2*l.Margin, H: l.FooterHeight}
}

func (l PageLayout) gridLeft() float64 {
	gridWidth := l.PitchX*float64(l.Columns-1) + l.CellWidth
	return (l.PageWidth - gridWidth) / 2
}

func (l PageLayout) gridTop() float64 {
	return l.Margin + l.HeaderHeight + 4
}

// CellRect returns the position of the tile at index i on its page:
// column = i mod Columns, row = i / Columns.
func (l PageLayout) CellRect(i int) Rect {
	col := i % l.Columns
	row := i / l.Columns
	return Rect{
		X: l.gridLeft() + float64(col)*l.PitchX,
		Y: l.gridTop() + float64(row)*l.PitchY,
		W: l.CellWidth,
		H: l.CellHeight,
	}
}

// Validate checks that cells neither overlap each other nor the bands
func (l PageLayout) Validate() error {
	if l.Columns < 1 || l.Rows < 1 {
		return errors.New("layout needs at least one row and one column")
	}
	if l.PitchX < l.CellWidth || l.PitchY < l.CellHeight {
		return fmt.Errorf("cell pitch %.1fx%.1f smaller than cell %.1fx%.1f", l.PitchX, l.PitchY, l.CellWidth, l.CellHeight)
	}
	header, footer := l.HeaderRect(), l.FooterRect()
	for i := 0; i < l.Capacity(); i++ {
		c := l.CellRect(i)
		if c.X < l.Margin || c.Right() > l.PageWidth-l.Margin {
			return fmt.Errorf("cell %d leaves the horizontal margins", i)
		}
		if c.Overlaps(header) || c.Overlaps(footer) || c.Bottom() > footer.Y {
			return fmt.Errorf("cell %d overlaps the header or footer band", i)
		}
	}
	return nil
}

// FooterText is the page label printed in the footer band
func FooterText(number int) string {
	return fmt.Sprintf("Page %d", number)
}

// Page is one composed catalogue page. Number is 1-based.
type Page struct {
	Number int
	Tiles  []CardTile
}

// Compose groups tiles into pages of layout.Capacity(), keeping tile order.
// N tiles give ceil(N/capacity) pages; zero tiles give a single page that
// carries only the header and footer bands.
func Compose(tiles []CardTile, layout PageLayout) []Page {
	capacity := layout.Capacity()
	if len(tiles) == 0 {
		return []Page{{Number: 1}}
	}

	pages := make([]Page, 0, (len(tiles)+capacity-1)/capacity)
	for start := 0; start < len(tiles); start += capacity {
		end := min(start+capacity, len(tiles))
		page := Page{
			Number: len(pages) + 1,
			Tiles:  make([]CardTile, end-start),
		}
		copy(page.Tiles, tiles[start:end])
		pages = append(pages, page)
	}
	return pages
}
