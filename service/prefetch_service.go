package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

// ImageFetcher fetches one image through the proxy
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*ProxiedImage, error)
}

// Ensure ImageProxy implements ImageFetcher
var _ ImageFetcher = (*ImageProxy)(nil)

// PrefetchReport summarises a cache warm-up run
type PrefetchReport struct {
	Total   int
	Fetched int
	Skipped int
	Errors  []string
}

// PrefetchService warms the image cache so the next render does not wait
// on upstream hosts
type PrefetchService struct {
	proxy   ImageFetcher
	locator *AssetLocator
	log     *zap.Logger
}

// NewPrefetchService creates a new PrefetchService instance
func NewPrefetchService(proxy ImageFetcher, locator *AssetLocator, log *zap.Logger) *PrefetchService {
	return &PrefetchService{proxy: proxy, locator: locator, log: log}
}

// PrefetchImages fetches every item's image once through the proxy.
// Items without an image and repeated URLs are skipped; per-item failures
// are collected in the report. Only cancellation aborts the run.
func (s *PrefetchService) PrefetchImages(ctx context.Context, items []models.CatalogueItem) (PrefetchReport, error) {
	report := PrefetchReport{Total: len(items)}
	s.log.Info("📥 Starting image prefetch", zap.Int("items", len(items)))

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if item.ImageRef == "" {
			report.Skipped++
			continue
		}
		assetURL, err := s.locator.Locate(item.ImageRef)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("model %d: %v", item.ModelNumber, err))
			continue
		}
		if seen[assetURL] {
			s.log.Debug("⏭️  Skipping repeated image", zap.Int("modelNumber", item.ModelNumber))
			report.Skipped++
			continue
		}
		seen[assetURL] = true

		if _, err := s.proxy.Fetch(ctx, assetURL); err != nil {
			s.log.Warn("❌ Failed to prefetch image", zap.Int("modelNumber", item.ModelNumber), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("model %d: %v", item.ModelNumber, err))
			continue
		}
		report.Fetched++
	}

	s.log.Info("🎉 Prefetch completed",
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Errors)),
		zap.Int("total", report.Total))
	return report, nil
}
