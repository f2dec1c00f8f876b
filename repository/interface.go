package repository

import (
	"context"

	"bloudan-catalogue/models"
)

// CatalogueRepositoryInterface defines the contract for reading catalogue items
type CatalogueRepositoryInterface interface {
	ListItems(ctx context.Context, order models.SortOrder) ([]models.CatalogueItem, error)
}
