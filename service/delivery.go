package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

const pdfContentType = "application/pdf"

// Delivery records where a document ended up
type Delivery struct {
	Tier      string
	Location  string    // File path, download URL or attachment name
	ExpiresAt time.Time // Set for download links
}

// Saver is one local-save tier
type Saver interface {
	Name() string
	Save(ctx context.Context, doc *Document) (Delivery, error)
}

// FileSaver writes the document to the local filesystem.
// Path may be a directory, in which case the local catalogue file name is used.
type FileSaver struct {
	Path      string
	Overwrite bool
}

// Name returns the tier name
func (s *FileSaver) Name() string { return "file" }

// Save writes the document atomically. An existing file is left alone
// unless Overwrite is set.
func (s *FileSaver) Save(ctx context.Context, doc *Document) (Delivery, error) {
	if s.Path == "" {
		return Delivery{}, fmt.Errorf("%w: no output path", models.ErrDeliveryUnsupported)
	}

	path := s.Path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, models.CatalogueFileName())
	}
	if _, err := os.Stat(path); err == nil && !s.Overwrite {
		return Delivery{}, fmt.Errorf("%w: %s already exists", models.ErrSaveCancelled, path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalogue-*.pdf")
	if err != nil {
		return Delivery{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc.Bytes); err != nil {
		tmp.Close()
		return Delivery{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return Delivery{}, fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Delivery{}, fmt.Errorf("failed to save %s: %w", path, err)
	}

	return Delivery{Tier: s.Name(), Location: path}, nil
}

// LinkSaver uploads the document to object storage and returns a presigned link
type LinkSaver struct {
	Store  ObjectStore
	Prefix string
}

// Name returns the tier name
func (s *LinkSaver) Name() string { return "link" }

// Save uploads under <prefix><uuid>/<file name>
func (s *LinkSaver) Save(ctx context.Context, doc *Document) (Delivery, error) {
	if s.Store == nil {
		return Delivery{}, fmt.Errorf("%w: object storage not configured", models.ErrDeliveryUnsupported)
	}

	key := s.Prefix + uuid.NewString() + "/" + doc.FileName
	if err := s.Store.Put(ctx, key, pdfContentType, doc.Bytes); err != nil {
		return Delivery{}, err
	}
	link, expires, err := s.Store.PresignGet(ctx, key, doc.FileName)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Tier: s.Name(), Location: link, ExpiresAt: expires}, nil
}

// BlobSaver streams the document to a writer. When the writer is an HTTP
// response the document is sent as an attachment.
type BlobSaver struct {
	W io.Writer
}

// Name returns the tier name
func (s *BlobSaver) Name() string { return "blob" }

// Save writes the document bytes to W
func (s *BlobSaver) Save(ctx context.Context, doc *Document) (Delivery, error) {
	if s.W == nil {
		return Delivery{}, fmt.Errorf("%w: no output stream", models.ErrDeliveryUnsupported)
	}
	if rw, ok := s.W.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", pdfContentType)
		rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
		rw.Header().Set("Content-Length", strconv.Itoa(len(doc.Bytes)))
	}
	if _, err := s.W.Write(doc.Bytes); err != nil {
		return Delivery{}, fmt.Errorf("failed to stream document: %w", err)
	}
	return Delivery{Tier: s.Name(), Location: doc.FileName}, nil
}

// DeliverySelector tries save tiers in order until one succeeds
type DeliverySelector struct {
	tiers []Saver
	log   *zap.Logger
}

// NewDeliverySelector creates a selector over tiers, most preferred first
func NewDeliverySelector(log *zap.Logger, tiers ...Saver) *DeliverySelector {
	return &DeliverySelector{tiers: tiers, log: log}
}

// Deliver hands doc to the first tier that accepts it. A tier that is
// unavailable, cancelled or failing passes the document to the next one.
// When every tier fails the error is ErrDeliveryUnsupported joined with
// each tier's cause.
func (d *DeliverySelector) Deliver(ctx context.Context, doc *Document) (Delivery, error) {
	causes := []error{models.ErrDeliveryUnsupported}
	for _, tier := range d.tiers {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}
		delivery, err := tier.Save(ctx, doc)
		if err == nil {
			d.log.Info("✓ Catalogue delivered",
				zap.String("tier", delivery.Tier),
				zap.String("location", delivery.Location),
				zap.Int("bytes", len(doc.Bytes)))
			return delivery, nil
		}

		switch {
		case errors.Is(err, models.ErrDeliveryUnsupported):
			d.log.Debug("Delivery tier unavailable", zap.String("tier", tier.Name()), zap.Error(err))
		case errors.Is(err, models.ErrSaveCancelled):
			d.log.Info("Delivery tier cancelled, trying next", zap.String("tier", tier.Name()), zap.Error(err))
		default:
			d.log.Warn("⚠️  Delivery tier failed, trying next", zap.String("tier", tier.Name()), zap.Error(err))
		}
		causes = append(causes, fmt.Errorf("%s: %w", tier.Name(), err))
	}

	return Delivery{}, errors.Join(causes...)
}
