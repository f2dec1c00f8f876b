package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bloudan-catalogue/models"
)

const (
	driveDownloadURL = "https://drive.google.com/uc?id="
	maxImageBytes    = 20 << 20
	maxFetchInFlight = 8
)

// ImageResolver turns an image reference into raw image bytes.
// Failures wrap models.ErrImageUnavailable.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
}

// AssetLocator turns an opaque image reference into a fetchable asset URL
type AssetLocator struct {
	baseURL string
}

// NewAssetLocator creates a locator joining relative references onto baseURL
func NewAssetLocator(baseURL string) *AssetLocator {
	return &AssetLocator{baseURL: baseURL}
}

// Locate returns the asset URL for a reference.
// Absolute http(s) references pass through, drive:<fileId> maps to a Drive
// download URL, anything else is joined onto the base URL.
func (l *AssetLocator) Locate(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", fmt.Errorf("%w: empty image reference", models.ErrImageUnavailable)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref, nil
	case strings.HasPrefix(ref, "drive:"):
		id := strings.TrimPrefix(ref, "drive:")
		if id == "" {
			return "", fmt.Errorf("%w: empty drive file id", models.ErrImageUnavailable)
		}
		return driveDownloadURL + url.QueryEscape(id), nil
	}
	if l.baseURL == "" {
		return "", fmt.Errorf("%w: relative reference %q without asset base URL", models.ErrImageUnavailable, ref)
	}
	assetURL, err := url.JoinPath(l.baseURL, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrImageUnavailable, err)
	}
	return assetURL, nil
}

// ProxyResolver fetches images through the same-origin /proxy endpoint
type ProxyResolver struct {
	proxyBaseURL string
	locator      *AssetLocator
	client       *http.Client
	timeout      time.Duration
}

// NewProxyResolver creates a resolver with a per-item fetch timeout
func NewProxyResolver(proxyBaseURL string, locator *AssetLocator, timeout time.Duration) *ProxyResolver {
	return &ProxyResolver{
		proxyBaseURL: strings.TrimSuffix(proxyBaseURL, "/"),
		locator:      locator,
		client:       &http.Client{},
		timeout:      timeout,
	}
}

// Ensure ProxyResolver implements ImageResolver
var _ ImageResolver = (*ProxyResolver)(nil)

// ProxyURL returns the proxy request URL for an asset URL
func (r *ProxyResolver) ProxyURL(assetURL string) string {
	return r.proxyBaseURL + "/proxy?url=" + url.QueryEscape(assetURL)
}

// Resolve fetches the image bytes for ref through the proxy
func (r *ProxyResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	assetURL, err := r.locator.Locate(ref)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ProxyURL(assetURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch image: %v", models.ErrImageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image proxy returned status %d", models.ErrImageUnavailable, resp.StatusCode)
	}

	data, err := readImage(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image body", models.ErrImageUnavailable)
	}
	return data, nil
}

// readImage reads at most maxImageBytes. A larger body is an error rather
// than a truncated image.
func readImage(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image data: %v", models.ErrImageUnavailable, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image too large (over %d bytes)", models.ErrImageUnavailable, maxImageBytes)
	}
	return data, nil
}

// ImageResult is the outcome of resolving one item's image
type ImageResult struct {
	Data []byte
	Err  error
}

// ResolveAll resolves every item's image with bounded concurrency.
// Results are indexed like items, whatever order the fetches complete in.
// Failures are logged and kept on the result, never returned.
func ResolveAll(ctx context.Context, resolver ImageResolver, items []models.CatalogueItem, concurrency int, log *zap.Logger) []ImageResult {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxFetchInFlight {
		concurrency = maxFetchInFlight
	}

	results := make([]ImageResult, len(items))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i := range items {
		item := items[i]
		g.Go(func() error {
			data, err := resolver.Resolve(ctx, item.ImageRef)
			if err != nil {
				log.Warn("⚠️  Image unavailable, rendering blank image area",
					zap.Int("modelNumber", item.ModelNumber),
					zap.String("image", item.ImageRef),
					zap.Error(err))
			}
			results[i] = ImageResult{Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
