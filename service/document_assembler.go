package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

// Document is a finished catalogue PDF. It is not modified after Assemble returns.
type Document struct {
	Filter   models.RenderFilter
	Pages    int
	Bytes    []byte
	FileName string
	Degraded []int // Model numbers rendered without their image
}

// DocumentAssembler runs the filter, resolve, render, compose and write
// stages for one catalogue
type DocumentAssembler struct {
	resolver    ImageResolver
	writer      DocumentWriter
	layout      PageLayout
	concurrency int
	timeout     time.Duration
	log         *zap.Logger
}

// NewDocumentAssembler creates an assembler. A zero timeout leaves the
// caller's context as the only deadline.
func NewDocumentAssembler(
	resolver ImageResolver,
	writer DocumentWriter,
	layout PageLayout,
	concurrency int,
	timeout time.Duration,
	log *zap.Logger,
) *DocumentAssembler {
	return &DocumentAssembler{
		resolver:    resolver,
		writer:      writer,
		layout:      layout,
		concurrency: concurrency,
		timeout:     timeout,
		log:         log,
	}
}

// Assemble renders items under filter into a PDF document.
// Input is validated before any image is fetched. Per-item image failures
// degrade single tiles; anything that prevents a whole document fails
// with models.ErrDocumentAssemblyFailed.
func (a *DocumentAssembler) Assemble(ctx context.Context, items []models.CatalogueItem, filter models.RenderFilter) (doc *Document, err error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items must be a non-empty list", models.ErrValidationFailed)
	}
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: invalid filter %q", models.ErrValidationFailed, filter)
	}
	if err := a.layout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDocumentAssemblyFailed, err)
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("❌ Panic while assembling catalogue", zap.Any("panic", r), zap.String("filter", string(filter)))
			doc = nil
			err = fmt.Errorf("%w: panic: %v", models.ErrDocumentAssemblyFailed, r)
		}
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	selected := FilterItems(items, filter)
	images := ResolveAll(ctx, a.resolver, selected, a.concurrency, a.log)

	tiles, degraded, err := a.renderTiles(selected, filter, images)
	if err != nil {
		return nil, err
	}

	pages := Compose(tiles, a.layout)

	var buf bytes.Buffer
	if err := a.writer.Write(ctx, a.layout, pages, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDocumentAssemblyFailed, err)
	}

	doc = &Document{
		Filter:   filter,
		Pages:    len(pages),
		Bytes:    buf.Bytes(),
		FileName: models.CatalogueFileNameFor(filter),
		Degraded: degraded,
	}

	a.log.Info("📄 Catalogue assembled",
		zap.String("filter", string(filter)),
		zap.Int("items", len(selected)),
		zap.Int("pages", doc.Pages),
		zap.Ints("degraded", degraded),
		zap.Int("bytes", len(doc.Bytes)),
		zap.Duration("took", time.Since(start)))

	return doc, nil
}

// renderTiles renders tiles one at a time in item order on a single surface
func (a *DocumentAssembler) renderTiles(items []models.CatalogueItem, filter models.RenderFilter, images []ImageResult) ([]CardTile, []int, error) {
	renderer, err := NewCardRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDocumentAssemblyFailed, err)
	}
	defer renderer.Close()

	tiles := make([]CardTile, 0, len(items))
	degraded := []int{}
	for i, item := range items {
		tile, err := renderer.Render(item, filter, images[i].Data, images[i].Err)
		if err != nil {
			// Writers fall back to drawing captions for tiles without a raster
			a.log.Warn("⚠️  Failed to encode tile", zap.Int("modelNumber", item.ModelNumber), zap.Error(err))
		}
		if tile.Degraded() {
			degraded = append(degraded, item.ModelNumber)
		}
		tiles = append(tiles, tile)
	}
	return tiles, degraded, nil
}
