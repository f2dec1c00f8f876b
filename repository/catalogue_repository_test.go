package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

var itemColumns = []string{"id", "model_number", "image_ref", "is_adult", "is_kids", "weight_adult", "weight_kids"}

func TestCatalogueRepository_ListItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(itemColumns).
		AddRow("a1", 1, "b1.png", true, false, 12.5, nil).
		AddRow("a2", 2, "", true, true, 15.0, 8.0).
		AddRow("a3", 3, "drive:xyz", false, true, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalogue_items") + `\s+ORDER BY model_number ASC`).WillReturnRows(rows)

	repo := NewCatalogueRepository(db, zap.NewNop())
	items, err := repo.ListItems(context.Background(), models.OrderAsc)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, []models.SizeTag{models.SizeAdult}, items[0].Sizes)
	require.NotNil(t, items[0].WeightAdult)
	assert.Equal(t, 12.5, *items[0].WeightAdult)
	assert.Nil(t, items[0].WeightKids)

	assert.Equal(t, []models.SizeTag{models.SizeAdult, models.SizeKids}, items[1].Sizes)
	assert.Equal(t, 8.0, *items[1].WeightKids)

	assert.Equal(t, "drive:xyz", items[2].ImageRef)
	assert.Nil(t, items[2].WeightAdult)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogueRepository_ListItemsDesc(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`ORDER BY model_number DESC`).WillReturnRows(sqlmock.NewRows(itemColumns))

	items, err := NewCatalogueRepository(db, zap.NewNop()).ListItems(context.Background(), models.OrderDesc)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogueRepository_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM catalogue_items`).WillReturnError(errors.New("connection reset"))

	_, err = NewCatalogueRepository(db, zap.NewNop()).ListItems(context.Background(), models.OrderAsc)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCatalogueRepository_SkipsBadRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(itemColumns).
		AddRow("a1", "not-a-number", "", true, false, nil, nil).
		AddRow("a2", 2, "", true, false, nil, nil)
	mock.ExpectQuery(`FROM catalogue_items`).WillReturnRows(rows)

	items, err := NewCatalogueRepository(db, zap.NewNop()).ListItems(context.Background(), models.OrderAsc)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].ModelNumber)
}
