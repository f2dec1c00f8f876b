package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

type memoryStore struct {
	objects map[string][]byte
	putErr  error
}

func (m *memoryStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStore) PresignGet(ctx context.Context, key, downloadName string) (string, time.Time, error) {
	return "https://storage.example.test/" + key + "?sig=abc", time.Now().Add(time.Minute), nil
}

func testDocument() *Document {
	return &Document{
		Filter:   models.FilterBoth,
		Pages:    1,
		Bytes:    []byte("%PDF-1.3 test"),
		FileName: models.CatalogueFileNameFor(models.FilterBoth),
	}
}

func TestFileSaver_WritesIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	s := &FileSaver{Path: dir}

	d, err := s.Save(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, "file", d.Tier)
	assert.Equal(t, filepath.Join(dir, "BLOUDAN_BANGLES_CATALOGUE.pdf"), d.Location)

	data, err := os.ReadFile(d.Location)
	require.NoError(t, err)
	assert.Equal(t, testDocument().Bytes, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestFileSaver_ExistingFileCancels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := (&FileSaver{Path: path}).Save(context.Background(), testDocument())
	assert.ErrorIs(t, err, models.ErrSaveCancelled)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "old", string(data))

	_, err = (&FileSaver{Path: path, Overwrite: true}).Save(context.Background(), testDocument())
	require.NoError(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, testDocument().Bytes, data)
}

func TestFileSaver_NoPathUnsupported(t *testing.T) {
	_, err := (&FileSaver{}).Save(context.Background(), testDocument())
	assert.ErrorIs(t, err, models.ErrDeliveryUnsupported)
}

func TestLinkSaver(t *testing.T) {
	store := &memoryStore{}
	s := &LinkSaver{Store: store, Prefix: "catalogues/"}

	d, err := s.Save(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, "link", d.Tier)
	assert.True(t, strings.HasPrefix(d.Location, "https://storage.example.test/catalogues/"))
	assert.True(t, strings.HasSuffix(d.Location, "/BLOUDAN_BANGLES_CATALOGUE_Both.pdf?sig=abc"))
	assert.False(t, d.ExpiresAt.IsZero())
	assert.Len(t, store.objects, 1)

	_, err = (&LinkSaver{}).Save(context.Background(), testDocument())
	assert.ErrorIs(t, err, models.ErrDeliveryUnsupported)
}

func TestBlobSaver_HTTPAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	d, err := (&BlobSaver{W: rec}).Save(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Equal(t, "blob", d.Tier)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="BLOUDAN_BANGLES_CATALOGUE_Both.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, testDocument().Bytes, rec.Body.Bytes())
}

func TestDeliverySelector_FallsThroughTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.pdf")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	store := &memoryStore{}

	sel := NewDeliverySelector(zap.NewNop(),
		&FileSaver{Path: path},
		&LinkSaver{Store: store},
		&BlobSaver{W: httptest.NewRecorder()},
	)
	d, err := sel.Deliver(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, "link", d.Tier)
}

func TestDeliverySelector_FailingTierFallsToBlob(t *testing.T) {
	rec := httptest.NewRecorder()
	sel := NewDeliverySelector(zap.NewNop(),
		&LinkSaver{Store: &memoryStore{putErr: errors.New("bucket gone")}},
		&BlobSaver{W: rec},
	)
	d, err := sel.Deliver(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, "blob", d.Tier)
	assert.NotZero(t, rec.Body.Len())
}

func TestDeliverySelector_AllTiersFail(t *testing.T) {
	sel := NewDeliverySelector(zap.NewNop(),
		&FileSaver{},
		&LinkSaver{Store: &memoryStore{putErr: errors.New("bucket gone")}},
		&BlobSaver{},
	)
	_, err := sel.Deliver(context.Background(), testDocument())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDeliveryUnsupported)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Contains(t, err.Error(), "link:")
}
