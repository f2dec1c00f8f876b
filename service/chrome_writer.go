package service

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed templates/catalogue.html
var templateFS embed.FS

const mmPerInch = 25.4

var catalogueTemplate = template.Must(template.New("catalogue.html").Funcs(template.FuncMap{
	"mm": func(v float64) template.CSS {
		return template.CSS(fmt.Sprintf("%.2fmm", v))
	},
	"box": func(r Rect) template.CSS {
		return template.CSS(fmt.Sprintf("left:%.2fmm;top:%.2fmm;width:%.2fmm;height:%.2fmm", r.X, r.Y, r.W, r.H))
	},
}).ParseFS(templateFS, "templates/catalogue.html"))

// detectChromePath returns the configured Chrome path if it exists,
// then falls back to common installation paths
func detectChromePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ChromeWriter lays pages out as HTML and prints them with headless Chrome
type ChromeWriter struct {
	chromePath string
	log        *zap.Logger
}

// NewChromeWriter creates a writer using the Chrome binary at chromePath,
// or an auto-detected one when empty
func NewChromeWriter(chromePath string, log *zap.Logger) *ChromeWriter {
	return &ChromeWriter{chromePath: chromePath, log: log}
}

// Ensure ChromeWriter implements DocumentWriter
var _ DocumentWriter = (*ChromeWriter)(nil)

type htmlCell struct {
	Rect         Rect
	Src          template.URL
	Caption      string
	WeightLabels []string
}

type htmlPage struct {
	Cells  []htmlCell
	Footer string
}

// RenderHTML renders the printable document. Tile rasters are inlined as
// data URIs so the page needs no network access.
func RenderHTML(layout PageLayout, pages []Page) (string, error) {
	data := struct {
		PageLayout
		Header Rect
		Footer Rect
		Pages  []htmlPage
	}{
		PageLayout: layout,
		Header:     layout.HeaderRect(),
		Footer:     layout.FooterRect(),
	}

	for _, p := range pages {
		hp := htmlPage{Footer: FooterText(p.Number)}
		for i, tile := range p.Tiles {
			cell := htmlCell{
				Rect:         layout.CellRect(i),
				Caption:      tile.Caption,
				WeightLabels: tile.WeightLabels,
			}
			if len(tile.PNG) > 0 {
				cell.Src = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(tile.PNG))
			}
			hp.Cells = append(hp.Cells, cell)
		}
		data.Pages = append(data.Pages, hp)
	}

	var buf bytes.Buffer
	if err := catalogueTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Write prints the rendered HTML to PDF and copies it to w
func (cw *ChromeWriter) Write(ctx context.Context, layout PageLayout, pages []Page, w io.Writer) error {
	html, err := RenderHTML(layout, pages)
	if err != nil {
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // Required for running in Docker/containers
	)
	if chromePath := detectChromePath(cw.chromePath); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	} else {
		cw.log.Warn("⚠️  Chrome not found in known paths, letting chromedp auto-detect")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			cw.log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer chromedpCancel()

	var pdfBuf []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(layout.PageWidth / mmPerInch).
				WithPaperHeight(layout.PageHeight / mmPerInch).
				WithMarginTop(0). // Layout margins live in the HTML
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}

	if _, err := w.Write(pdfBuf); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
