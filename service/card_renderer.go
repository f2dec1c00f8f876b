package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"bloudan-catalogue/models"
)

// Tile geometry in logical units; rasterized at TileScale for print sharpness.
const (
	TileWidth  = 220
	TileHeight = 260
	TileScale  = 3

	imageBoxX = 10
	imageBoxY = 10
	imageBoxW = 200
	imageBoxH = 180

	captionSize     = 16
	captionBaseline = 216
	weightSize      = 11
	weightBaseline  = 244
	weightLabelGap  = 16
)

var (
	captionColor = color.RGBA{0x22, 0x22, 0x22, 0xff}
	weightColor  = color.RGBA{0x55, 0x55, 0x55, 0xff}
)

// CardTile is one rendered catalogue item, consumed by the page composer.
// PNG holds the rasterized tile; it is nil only if encoding failed, in which
// case writers draw the captions themselves.
type CardTile struct {
	ModelNumber  int
	Caption      string
	WeightLabels []string
	ImageErr     error // Non-nil when the image area was left blank
	PNG          []byte
	Width        int // Pixels
	Height       int // Pixels
}

// Degraded reports whether the tile was rendered without its image
func (t CardTile) Degraded() bool {
	return t.ImageErr != nil
}

type tileFonts struct {
	bold    *opentype.Font
	regular *opentype.Font
}

var loadTileFonts = sync.OnceValues(func() (*tileFonts, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	return &tileFonts{bold: bold, regular: regular}, nil
})

// CardRenderer rasterizes catalogue items into fixed-size tiles.
// It owns a single drawing surface that is cleared and reused for every
// tile, so a renderer must not be shared between goroutines.
type CardRenderer struct {
	surface     *image.RGBA
	captionFace font.Face
	weightFace  font.Face
}

// NewCardRenderer creates a renderer with its drawing surface and font faces
func NewCardRenderer() (*CardRenderer, error) {
	fonts, err := loadTileFonts()
	if err != nil {
		return nil, err
	}

	captionFace, err := opentype.NewFace(fonts.bold, &opentype.FaceOptions{
		Size:    captionSize * TileScale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create caption face: %w", err)
	}
	weightFace, err := opentype.NewFace(fonts.regular, &opentype.FaceOptions{
		Size:    weightSize * TileScale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weight face: %w", err)
	}

	return &CardRenderer{
		surface:     image.NewRGBA(image.Rect(0, 0, TileWidth*TileScale, TileHeight*TileScale)),
		captionFace: captionFace,
		weightFace:  weightFace,
	}, nil
}

// Close releases the font faces
func (r *CardRenderer) Close() error {
	r.captionFace.Close()
	r.weightFace.Close()
	return nil
}

// Render draws one item. imageData may be nil and imageErr carries the
// resolver failure, if any; either way the captions are still drawn.
// The returned error is only set when the tile could not be encoded.
func (r *CardRenderer) Render(item models.CatalogueItem, filter models.RenderFilter, imageData []byte, imageErr error) (CardTile, error) {
	draw.Draw(r.surface, r.surface.Bounds(), image.White, image.Point{}, draw.Src)

	if imageErr == nil && len(imageData) == 0 {
		imageErr = fmt.Errorf("%w: no image data", models.ErrImageUnavailable)
	}
	if imageErr == nil {
		img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
		if err != nil {
			imageErr = fmt.Errorf("%w: failed to decode image: %v", models.ErrImageUnavailable, err)
		} else {
			r.drawContained(img)
		}
	}

	tile := CardTile{
		ModelNumber:  item.ModelNumber,
		Caption:      item.Caption(),
		WeightLabels: WeightLabels(item, filter),
		ImageErr:     imageErr,
		Width:        TileWidth * TileScale,
		Height:       TileHeight * TileScale,
	}

	centerX := TileWidth * TileScale / 2
	r.drawText(r.captionFace, tile.Caption, centerX-r.measure(r.captionFace, tile.Caption)/2, captionBaseline*TileScale, captionColor)
	r.drawLabelRow(tile.WeightLabels)

	var buf bytes.Buffer
	if err := png.Encode(&buf, r.surface); err != nil {
		return tile, fmt.Errorf("failed to encode tile B%d: %w", item.ModelNumber, err)
	}
	tile.PNG = buf.Bytes()
	return tile, nil
}

// drawContained scales img to fit the image box without cropping and centers it
func (r *CardRenderer) drawContained(img image.Image) {
	box := image.Rect(imageBoxX*TileScale, imageBoxY*TileScale,
		(imageBoxX+imageBoxW)*TileScale, (imageBoxY+imageBoxH)*TileScale)
	dst := ContainRect(img.Bounds().Dx(), img.Bounds().Dy(), box)
	if dst.Empty() {
		return
	}
	resized := imaging.Resize(img, dst.Dx(), dst.Dy(), imaging.Lanczos)
	draw.Draw(r.surface, dst, resized, image.Point{}, draw.Over)
}

// drawLabelRow lays labels out side by side with a fixed gap, centered as a group.
// An empty row draws nothing but keeps its place in the layout.
func (r *CardRenderer) drawLabelRow(labels []string) {
	if len(labels) == 0 {
		return
	}
	gap := weightLabelGap * TileScale
	widths := make([]int, len(labels))
	total := gap * (len(labels) - 1)
	for i, l := range labels {
		widths[i] = r.measure(r.weightFace, l)
		total += widths[i]
	}

	x := TileWidth*TileScale/2 - total/2
	for i, l := range labels {
		r.drawText(r.weightFace, l, x, weightBaseline*TileScale, weightColor)
		x += widths[i] + gap
	}
}

func (r *CardRenderer) measure(face font.Face, text string) int {
	return font.MeasureString(face, text).Round()
}

func (r *CardRenderer) drawText(face font.Face, text string, x, baseline int, col color.Color) {
	d := &font.Drawer{
		Dst:  r.surface,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

// ContainRect returns the largest rectangle with the source aspect ratio
// that fits inside box, centered in it. Smaller sources are scaled up.
func ContainRect(srcW, srcH int, box image.Rectangle) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || box.Empty() {
		return image.Rectangle{}
	}
	ratio := math.Min(float64(box.Dx())/float64(srcW), float64(box.Dy())/float64(srcH))
	w := max(1, min(box.Dx(), int(math.Round(float64(srcW)*ratio))))
	h := max(1, min(box.Dy(), int(math.Round(float64(srcH)*ratio))))
	x := box.Min.X + (box.Dx()-w)/2
	y := box.Min.Y + (box.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// WeightLabels returns the weight captions shown for item under filter.
// A label for a tag is shown only when the filter covers the tag, the item
// carries it and a weight is defined for it.
func WeightLabels(item models.CatalogueItem, filter models.RenderFilter) []string {
	var labels []string
	for _, tag := range models.AllSizeTags {
		if !filter.Includes(tag) || !item.HasSize(tag) {
			continue
		}
		if w, ok := item.Weight(tag); ok {
			labels = append(labels, FormatWeightLabel(tag, w))
		}
	}
	return labels
}

// FormatWeightLabel formats a weight caption, e.g. "Adult - 12.5g"
func FormatWeightLabel(tag models.SizeTag, grams float64) string {
	return fmt.Sprintf("%s - %sg", tag, strconv.FormatFloat(grams, 'f', -1, 64))
}
