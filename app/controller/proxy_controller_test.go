package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloudan-catalogue/service"
)

type stubFetcher struct {
	img *service.ProxiedImage
	err error
	url string
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (*service.ProxiedImage, error) {
	f.url = rawURL
	return f.img, f.err
}

func TestProxy_Success(t *testing.T) {
	f := &stubFetcher{img: &service.ProxiedImage{Data: []byte("png"), ContentType: "image/png"}}
	c := NewProxyController(f, zap.NewNop())

	target := "/proxy?url=" + url.QueryEscape("https://cdn.example.test/b1.png?v=2")
	rec := httptest.NewRecorder()
	c.Proxy(rec, httptest.NewRequest(http.MethodGet, target, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.test/b1.png?v=2", f.url)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "png", rec.Body.String())
}

func TestProxy_ErrorStatuses(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: missing", service.ErrInvalidProxyURL): http.StatusBadRequest,
		fmt.Errorf("%w: evil.test", service.ErrHostNotAllowed): http.StatusForbidden,
		fmt.Errorf("%w: 500", service.ErrUpstreamFailed):       http.StatusBadGateway,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		NewProxyController(&stubFetcher{err: err}, zap.NewNop()).
			Proxy(rec, httptest.NewRequest(http.MethodGet, "/proxy?url=x", nil))
		assert.Equal(t, want, rec.Code, err.Error())
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec := httptest.NewRecorder()
	NewProxyController(&stubFetcher{}, zap.NewNop()).
		Proxy(rec, httptest.NewRequest(http.MethodPost, "/proxy?url=x", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
