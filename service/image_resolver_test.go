package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

func TestAssetLocator_Locate(t *testing.T) {
	l := NewAssetLocator("https://assets.example.test/bangles")

	got, err := l.Locate("https://cdn.example.test/b1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/b1.png", got)

	got, err = l.Locate("drive:abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/uc?id=abc123", got)

	got, err = l.Locate("/b7.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://assets.example.test/bangles/b7.jpg", got)

	_, err = l.Locate("  ")
	assert.ErrorIs(t, err, models.ErrImageUnavailable)

	_, err = NewAssetLocator("").Locate("b7.jpg")
	assert.ErrorIs(t, err, models.ErrImageUnavailable)
}

func TestProxyResolver_Resolve(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/proxy", r.URL.Path)
		gotURL = r.URL.Query().Get("url")
		if strings.HasSuffix(gotURL, "missing.png") {
			http.Error(w, "not found", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	r := NewProxyResolver(srv.URL+"/", NewAssetLocator("https://assets.example.test"), time.Second)

	data, err := r.Resolve(context.Background(), "b1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "https://assets.example.test/b1.png", gotURL)

	_, err = r.Resolve(context.Background(), "missing.png")
	assert.ErrorIs(t, err, models.ErrImageUnavailable)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrImageUnavailable)
}

func TestProxyResolver_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := NewProxyResolver(srv.URL, NewAssetLocator("https://assets.example.test"), 50*time.Millisecond)
	_, err := r.Resolve(context.Background(), "slow.jpg")
	assert.ErrorIs(t, err, models.ErrImageUnavailable)
}

func TestProxyResolver_ProxyURL(t *testing.T) {
	r := NewProxyResolver("http://localhost:8080", NewAssetLocator(""), time.Second)
	assert.Equal(t,
		"http://localhost:8080/proxy?url=https%3A%2F%2Fcdn.example.test%2Fa+b.png%3Fv%3D1",
		r.ProxyURL("https://cdn.example.test/a b.png?v=1"))
}

// fakeResolver resolves "img-<n>" references after a delay that makes
// early items finish last.
type fakeResolver struct {
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (f *fakeResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, ref)
	f.mu.Unlock()

	var idx int
	fmt.Sscanf(ref, "img-%d", &idx)
	time.Sleep(time.Duration(10-idx%10) * time.Millisecond)

	if f.fail[ref] {
		return nil, fmt.Errorf("%w: boom", models.ErrImageUnavailable)
	}
	return []byte(ref), nil
}

func TestResolveAll_KeepsItemOrderAndBound(t *testing.T) {
	var items []models.CatalogueItem
	for i := 0; i < 12; i++ {
		items = append(items, models.CatalogueItem{ModelNumber: i + 1, ImageRef: fmt.Sprintf("img-%d", i)})
	}
	res := &fakeResolver{fail: map[string]bool{"img-6": true}}

	results := ResolveAll(context.Background(), res, items, 3, zap.NewNop())

	require.Len(t, results, len(items))
	for i, r := range results {
		if i == 6 {
			assert.True(t, errors.Is(r.Err, models.ErrImageUnavailable))
			assert.Nil(t, r.Data)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("img-%d", i), string(r.Data))
	}
	assert.LessOrEqual(t, res.maxSeen.Load(), int32(3))
	assert.Len(t, res.calls, 12)
}

func TestResolveAll_ClampsConcurrency(t *testing.T) {
	var items []models.CatalogueItem
	for i := 0; i < 20; i++ {
		items = append(items, models.CatalogueItem{ImageRef: fmt.Sprintf("img-%d", i)})
	}
	res := &fakeResolver{}
	ResolveAll(context.Background(), res, items, 100, zap.NewNop())
	assert.LessOrEqual(t, res.maxSeen.Load(), int32(maxFetchInFlight))
}

func TestReadImage_RejectsOversizedBody(t *testing.T) {
	data, err := readImage(strings.NewReader(strings.Repeat("x", maxImageBytes)))
	require.NoError(t, err)
	assert.Len(t, data, maxImageBytes)

	_, err = readImage(strings.NewReader(strings.Repeat("x", maxImageBytes+1)))
	require.ErrorIs(t, err, models.ErrImageUnavailable)
	assert.Contains(t, err.Error(), "image too large")
}
