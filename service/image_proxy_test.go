package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDrive struct {
	files map[string][]byte
}

func (f *fakeDrive) DownloadImage(ctx context.Context, fileID string) ([]byte, error) {
	data, ok := f.files[fileID]
	if !ok {
		return nil, assert.AnError
	}
	return data, nil
}

func upstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/b1.png", "/b2.jpeg", "/photo":
			w.Write([]byte("bytes:" + r.URL.Path))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestContentTypeFor(t *testing.T) {
	for raw, want := range map[string]string{
		"https://x.test/a.png":       "image/png",
		"https://x.test/a.PNG?v=2":   "image/png",
		"https://x.test/a.jpg":       "image/jpeg",
		"https://x.test/a.webp":      "image/jpeg",
		"https://x.test/no-ext":      "image/jpeg",
		"https://x.test/dir.png/a.g": "image/jpeg",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, ContentTypeFor(u), raw)
	}
}

func TestImageProxy_Fetch(t *testing.T) {
	var hits atomic.Int32
	srv := upstream(t, &hits)
	p := NewImageProxy(nil, time.Second, nil, nil, zap.NewNop())

	img, err := p.Fetch(context.Background(), srv.URL+"/b1.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, []byte("bytes:/b1.png"), img.Data)

	img, err = p.Fetch(context.Background(), srv.URL+"/photo")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.ContentType)

	_, err = p.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrUpstreamFailed)
}

func TestImageProxy_InvalidURLs(t *testing.T) {
	p := NewImageProxy(nil, time.Second, nil, nil, zap.NewNop())
	for _, raw := range []string{"", "   ", "/relative.png", "ftp://x.test/a.png", "http://", "://bad"} {
		_, err := p.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidProxyURL, raw)
	}
}

func TestImageProxy_Allowlist(t *testing.T) {
	var hits atomic.Int32
	srv := upstream(t, &hits)
	host, err := url.Parse(srv.URL)
	require.NoError(t, err)

	p := NewImageProxy([]string{"cdn.example.test"}, time.Second, nil, nil, zap.NewNop())
	_, err = p.Fetch(context.Background(), srv.URL+"/b1.png")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Zero(t, hits.Load())

	p = NewImageProxy([]string{"cdn.example.test", host.Hostname()}, time.Second, nil, nil, zap.NewNop())
	_, err = p.Fetch(context.Background(), srv.URL+"/b1.png")
	assert.NoError(t, err)
}

func TestImageProxy_CachesUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := upstream(t, &hits)
	cache, err := NewDiskImageCache(t.TempDir(), time.Hour, zap.NewNop())
	require.NoError(t, err)
	p := NewImageProxy(nil, time.Second, nil, cache, zap.NewNop())

	for i := 0; i < 3; i++ {
		img, err := p.Fetch(context.Background(), srv.URL+"/b2.jpeg")
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes:/b2.jpeg"), img.Data)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestImageProxy_DriveDownload(t *testing.T) {
	drive := &fakeDrive{files: map[string][]byte{"abc": []byte("drive-bytes")}}
	p := NewImageProxy([]string{"drive.google.com"}, time.Second, drive, nil, zap.NewNop())

	img, err := p.Fetch(context.Background(), "https://drive.google.com/uc?id=abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("drive-bytes"), img.Data)
	assert.Equal(t, "image/jpeg", img.ContentType)

	_, err = p.Fetch(context.Background(), "https://drive.google.com/uc?id=missing")
	assert.ErrorIs(t, err, ErrUpstreamFailed)
}
