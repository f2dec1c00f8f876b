package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"bloudan-catalogue/app/controller"
)

type Controllers struct {
	Proxy     *controller.ProxyController
	Catalogue *controller.CatalogueController
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func SetupRoutes(mux *http.ServeMux, controllers *Controllers) {
	// Ping endpoint
	mux.HandleFunc("/ping", pingHandler)

	// Same-origin image proxy used while rendering
	mux.HandleFunc("/proxy", controllers.Proxy.Proxy)

	// Catalogue routes
	mux.HandleFunc("/catalogue/pdf", controllers.Catalogue.DownloadPDF)
	mux.HandleFunc("/catalogue/render", controllers.Catalogue.RenderPDF)
	mux.HandleFunc("/catalogue/email", controllers.Catalogue.EmailPDF)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// WithRequestLogging logs one line per request
func WithRequestLogging(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("took", time.Since(start)),
		}
		switch {
		case rec.status >= 500:
			log.Error("HTTP request", fields...)
		case rec.status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	})
}
