package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloudan-catalogue/models"
	"bloudan-catalogue/service"
)

const maxRenderBodyBytes = 5 << 20

// EmailQueue accepts catalogue email jobs
type EmailQueue interface {
	Enqueue(email string, filter models.RenderFilter, order models.SortOrder) (string, error)
}

// CatalogueController handles HTTP requests for catalogue generation
type CatalogueController struct {
	items     service.ItemSource // nil when no catalogue store is configured
	assembler service.CatalogueAssembler
	store     service.ObjectStore // nil disables download links
	emails    EmailQueue          // nil disables email delivery
	log       *zap.Logger
}

// NewCatalogueController creates a new CatalogueController
func NewCatalogueController(
	items service.ItemSource,
	assembler service.CatalogueAssembler,
	store service.ObjectStore,
	emails EmailQueue,
	log *zap.Logger,
) *CatalogueController {
	return &CatalogueController{
		items:     items,
		assembler: assembler,
		store:     store,
		emails:    emails,
		log:       log,
	}
}

type renderRequest struct {
	Filter string          `json:"filter"`
	Items  json.RawMessage `json:"items"`
}

type emailRequest struct {
	Email  string `json:"email"`
	Filter string `json:"filter"`
	Order  string `json:"order"`
}

type linkResponse struct {
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	Pages     int       `json:"pages"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type emailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DownloadPDF handles GET /catalogue/pdf?filter=Adult|Kids|Both&order=asc|desc&delivery=download|link
func (c *CatalogueController) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter, err := models.ParseRenderFilter(q.Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, err := models.ParseSortOrder(q.Get("order"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	delivery := strings.ToLower(strings.TrimSpace(q.Get("delivery")))
	if delivery != "" && delivery != "download" && delivery != "link" {
		http.Error(w, "Invalid delivery. Valid values: download, link", http.StatusBadRequest)
		return
	}

	if c.items == nil {
		http.Error(w, "Catalogue store not configured", http.StatusServiceUnavailable)
		return
	}
	items, err := c.items.ListItems(r.Context(), order)
	if err != nil {
		c.log.Error("❌ DownloadPDF: Error fetching items", zap.Error(err))
		http.Error(w, "Failed to fetch items", http.StatusInternalServerError)
		return
	}

	doc, ok := c.assemble(r.Context(), w, items, filter)
	if !ok {
		return
	}

	cw := &committedWriter{ResponseWriter: w}
	tiers := []service.Saver{}
	if delivery == "link" {
		tiers = append(tiers, &service.LinkSaver{Store: c.store, Prefix: "catalogues/"})
	}
	tiers = append(tiers, &service.BlobSaver{W: cw})

	c.deliver(r.Context(), cw, doc, tiers)
}

// RenderPDF handles POST /catalogue/render with body {"filter": ..., "items": [...]}
func (c *CatalogueController) RenderPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req renderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBodyBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	filter, err := models.ParseRenderFilter(req.Filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	raw := bytes.TrimSpace(req.Items)
	if len(raw) == 0 || raw[0] != '[' {
		http.Error(w, "items must be an array", http.StatusBadRequest)
		return
	}
	var items []models.CatalogueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		http.Error(w, fmt.Sprintf("Invalid items: %v", err), http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "items must not be empty", http.StatusBadRequest)
		return
	}
	items, err = models.NormalizeItems(items)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, ok := c.assemble(r.Context(), w, items, filter)
	if !ok {
		return
	}
	cw := &committedWriter{ResponseWriter: w}
	c.deliver(r.Context(), cw, doc, []service.Saver{&service.BlobSaver{W: cw}})
}

// EmailPDF handles POST /catalogue/email with body {"email": ..., "filter": ..., "order": ...}.
// The response is sent as soon as the job is queued.
func (c *CatalogueController) EmailPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if c.emails == nil {
		http.Error(w, "Email delivery not configured", http.StatusServiceUnavailable)
		return
	}

	var req emailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	filter, err := models.ParseRenderFilter(req.Filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, err := models.ParseSortOrder(req.Order)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := c.emails.Enqueue(req.Email, filter, order); err != nil {
		switch {
		case errors.Is(err, models.ErrValidationFailed):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			c.log.Warn("⚠️  EmailPDF: Job rejected", zap.Error(err))
			http.Error(w, "Email queue unavailable, try again later", http.StatusServiceUnavailable)
		}
		return
	}

	writeJSON(w, http.StatusOK, emailResponse{
		Success: true,
		Message: "Your catalogue will be emailed to you shortly",
	})
}

// assemble renders the document and writes the error response on failure
func (c *CatalogueController) assemble(ctx context.Context, w http.ResponseWriter, items []models.CatalogueItem, filter models.RenderFilter) (*service.Document, bool) {
	doc, err := c.assembler.Assemble(ctx, items, filter)
	if err != nil {
		if errors.Is(err, models.ErrValidationFailed) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		c.log.Error("❌ Catalogue generation failed", zap.String("filter", string(filter)), zap.Error(err))
		http.Error(w, "Failed to generate catalogue", http.StatusInternalServerError)
		return nil, false
	}
	return doc, true
}

// committedWriter records whether the response status has been sent
type committedWriter struct {
	http.ResponseWriter
	committed bool
}

func (w *committedWriter) WriteHeader(status int) {
	w.committed = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *committedWriter) Write(b []byte) (int, error) {
	w.committed = true
	return w.ResponseWriter.Write(b)
}

func (c *CatalogueController) deliver(ctx context.Context, w *committedWriter, doc *service.Document, tiers []service.Saver) {
	delivery, err := service.NewDeliverySelector(c.log, tiers...).Deliver(ctx, doc)
	if err != nil {
		c.log.Error("❌ Catalogue delivery failed", zap.Error(err))
		// A partly streamed attachment cannot be turned into an error response
		if !w.committed {
			http.Error(w, "Failed to deliver catalogue", http.StatusInternalServerError)
		}
		return
	}
	if delivery.Tier == "link" {
		writeJSON(w, http.StatusOK, linkResponse{
			URL:       delivery.Location,
			FileName:  doc.FileName,
			Pages:     doc.Pages,
			ExpiresAt: delivery.ExpiresAt,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
