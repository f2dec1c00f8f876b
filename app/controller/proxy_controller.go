package controller

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"bloudan-catalogue/service"
)

// ProxyController serves remote images from the same origin
type ProxyController struct {
	proxy service.ImageFetcher
	log   *zap.Logger
}

// NewProxyController creates a new ProxyController
func NewProxyController(proxy service.ImageFetcher, log *zap.Logger) *ProxyController {
	return &ProxyController{proxy: proxy, log: log}
}

// Proxy handles GET /proxy?url=<encoded image url>
func (c *ProxyController) Proxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rawURL := r.URL.Query().Get("url")
	img, err := c.proxy.Fetch(r.Context(), rawURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProxyURL):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrHostNotAllowed):
			c.log.Warn("⚠️  Proxy request for host outside allowlist", zap.String("url", rawURL))
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, "Failed to fetch image", http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}
