package service

import "bloudan-catalogue/models"

// FilterItems returns the items relevant to the filter's audience.
// Input order is preserved; an empty result is valid.
func FilterItems(items []models.CatalogueItem, filter models.RenderFilter) []models.CatalogueItem {
	filtered := make([]models.CatalogueItem, 0, len(items))
	for _, item := range items {
		if matchesFilter(item, filter) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matchesFilter(item models.CatalogueItem, filter models.RenderFilter) bool {
	for _, tag := range item.Sizes {
		if filter.Includes(tag) {
			return true
		}
	}
	return false
}
