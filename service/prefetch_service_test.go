package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

type countingFetcher struct {
	urls []string
	fail map[string]bool
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string) (*ProxiedImage, error) {
	f.urls = append(f.urls, rawURL)
	if f.fail[rawURL] {
		return nil, ErrUpstreamFailed
	}
	return &ProxiedImage{Data: []byte("img"), ContentType: "image/png"}, nil
}

func TestPrefetchImages(t *testing.T) {
	fetcher := &countingFetcher{fail: map[string]bool{"https://cdn.example.test/assets/b4.png": true}}
	svc := NewPrefetchService(fetcher, NewAssetLocator("https://cdn.example.test/assets"), zap.NewNop())

	report, err := svc.PrefetchImages(context.Background(), []models.CatalogueItem{
		{ModelNumber: 1, ImageRef: "b1.png"},
		{ModelNumber: 2, ImageRef: ""},
		{ModelNumber: 3, ImageRef: "https://cdn.example.test/assets/b1.png"},
		{ModelNumber: 4, ImageRef: "b4.png"},
		{ModelNumber: 5, ImageRef: "drive:"},
	})
	require.NoError(t, err)

	assert.Equal(t, PrefetchReport{Total: 5, Fetched: 1, Skipped: 2}, PrefetchReport{
		Total: report.Total, Fetched: report.Fetched, Skipped: report.Skipped,
	})
	assert.Len(t, report.Errors, 2)
	assert.Equal(t, []string{
		"https://cdn.example.test/assets/b1.png",
		"https://cdn.example.test/assets/b4.png",
	}, fetcher.urls)
}

func TestPrefetchImages_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &countingFetcher{}
	_, err := NewPrefetchService(fetcher, NewAssetLocator(""), zap.NewNop()).
		PrefetchImages(ctx, []models.CatalogueItem{{ModelNumber: 1, ImageRef: "https://cdn.example.test/b1.png"}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, fetcher.urls)
}
