package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidProxyURL is returned for a missing or malformed url parameter
	ErrInvalidProxyURL = errors.New("invalid image url")

	// ErrHostNotAllowed is returned for hosts outside the proxy allowlist
	ErrHostNotAllowed = errors.New("image host not allowed")

	// ErrUpstreamFailed is returned when the upstream image cannot be fetched
	ErrUpstreamFailed = errors.New("upstream image fetch failed")
)

// ProxiedImage is an image served by the proxy
type ProxiedImage struct {
	Data        []byte
	ContentType string
}

// ImageProxy fetches remote images on behalf of the renderer so they are
// served from the same origin
type ImageProxy struct {
	client  *http.Client
	allowed map[string]bool
	drive   DriveDownloader
	cache   ImageCache
	log     *zap.Logger
}

// NewImageProxy creates a proxy. An empty allowlist permits every host;
// drive and cache are optional.
func NewImageProxy(allowedHosts []string, timeout time.Duration, drive DriveDownloader, cache ImageCache, log *zap.Logger) *ImageProxy {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &ImageProxy{
		client:  &http.Client{Timeout: timeout},
		allowed: allowed,
		drive:   drive,
		cache:   cache,
		log:     log,
	}
}

// ContentTypeFor returns the content type reported for an image URL:
// image/png for a .png path, image/jpeg for everything else
func ContentTypeFor(u *url.URL) string {
	if strings.EqualFold(path.Ext(u.Path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

// Fetch returns the bytes of the image at rawURL
func (p *ImageProxy) Fetch(ctx context.Context, rawURL string) (*ProxiedImage, error) {
	u, err := p.parse(rawURL)
	if err != nil {
		return nil, err
	}

	key := CacheKey(u.String())
	if p.cache != nil {
		if data, ok := p.cache.Get(ctx, key); ok {
			return &ProxiedImage{Data: data, ContentType: ContentTypeFor(u)}, nil
		}
	}

	var data []byte
	if fileID, ok := DriveFileID(u); ok && p.drive != nil {
		data, err = p.drive.DownloadImage(ctx, fileID)
	} else {
		data, err = p.get(ctx, u)
	}
	if err != nil {
		p.log.Warn("⚠️  Upstream image fetch failed", zap.String("url", u.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUpstreamFailed)
	}

	if p.cache != nil {
		p.cache.Set(ctx, key, data)
	}
	return &ProxiedImage{Data: data, ContentType: ContentTypeFor(u)}, nil
}

func (p *ImageProxy) parse(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: url parameter is required", ErrInvalidProxyURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxyURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidProxyURL, rawURL)
	}
	if len(p.allowed) > 0 && !p.allowed[strings.ToLower(u.Hostname())] {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return u, nil
}

func (p *ImageProxy) get(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return readImage(resp.Body)
}
