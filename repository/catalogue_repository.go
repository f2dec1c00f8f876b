package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

const listItemsQuery = `
	SELECT
		id,
		model_number,
		COALESCE(image_ref, '') AS image_ref,
		is_adult,
		is_kids,
		weight_adult,
		weight_kids
	FROM catalogue_items
	ORDER BY model_number `

// CatalogueRepository reads catalogue items from PostgreSQL
type CatalogueRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewCatalogueRepository creates a new CatalogueRepository
func NewCatalogueRepository(db *sql.DB, log *zap.Logger) *CatalogueRepository {
	return &CatalogueRepository{db: db, log: log}
}

// Ensure CatalogueRepository implements CatalogueRepositoryInterface
var _ CatalogueRepositoryInterface = (*CatalogueRepository)(nil)

// ListItems returns every catalogue item ordered by model number
func (r *CatalogueRepository) ListItems(ctx context.Context, order models.SortOrder) ([]models.CatalogueItem, error) {
	direction := "ASC"
	if order == models.OrderDesc {
		direction = "DESC"
	}
	r.log.Debug("🔍 ListItems", zap.String("order", direction))

	rows, err := r.db.QueryContext(ctx, listItemsQuery+direction)
	if err != nil {
		r.log.Error("❌ Error querying catalogue items", zap.Error(err))
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogueItem{}
	for rows.Next() {
		var item models.CatalogueItem
		var isAdult, isKids bool
		var weightAdult, weightKids sql.NullFloat64

		if err := rows.Scan(
			&item.ID,
			&item.ModelNumber,
			&item.ImageRef,
			&isAdult,
			&isKids,
			&weightAdult,
			&weightKids,
		); err != nil {
			r.log.Warn("⚠️  Skipping unreadable catalogue item", zap.Error(err))
			continue
		}

		if isAdult {
			item.Sizes = append(item.Sizes, models.SizeAdult)
		}
		if isKids {
			item.Sizes = append(item.Sizes, models.SizeKids)
		}
		if weightAdult.Valid {
			item.WeightAdult = models.Grams(weightAdult.Float64)
		}
		if weightKids.Valid {
			item.WeightKids = models.Grams(weightKids.Float64)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.log.Error("❌ Error iterating catalogue items", zap.Error(err))
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	r.log.Info("✓ Fetched catalogue items", zap.Int("count", len(items)), zap.String("order", direction))
	return items, nil
}
