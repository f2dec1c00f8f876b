package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"bloudan-catalogue/models"
)

// FileStore reads catalogue items from a JSON or YAML file.
// The file holds either a list of items or an object with an "items" list.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Ensure FileStore implements CatalogueRepositoryInterface
var _ CatalogueRepositoryInterface = (*FileStore)(nil)

type itemsDocument struct {
	Items []models.CatalogueItem `json:"items" yaml:"items"`
}

// ListItems reads, validates and orders the items in the file
func (s *FileStore) ListItems(ctx context.Context, order models.SortOrder) ([]models.CatalogueItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	items, err := decodeItems(s.path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", models.ErrValidationFailed, s.path, err)
	}
	items, err = models.NormalizeItems(items)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if order == models.OrderDesc {
			return items[i].ModelNumber > items[j].ModelNumber
		}
		return items[i].ModelNumber < items[j].ModelNumber
	})
	return items, nil
}

func decodeItems(path string, data []byte) ([]models.CatalogueItem, error) {
	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var list []models.CatalogueItem
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc itemsDocument
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Items, nil
}
