package models

import (
	"fmt"
	"strings"
)

// SizeTag identifies the audience a bangle is made for
type SizeTag string

const (
	SizeAdult SizeTag = "Adult"
	SizeKids  SizeTag = "Kids"
)

// AllSizeTags lists the tags in label order (Adult first)
var AllSizeTags = []SizeTag{SizeAdult, SizeKids}

// ParseSizeTag parses a size tag, case-insensitive
func ParseSizeTag(s string) (SizeTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adult":
		return SizeAdult, nil
	case "kids", "kid":
		return SizeKids, nil
	}
	return "", fmt.Errorf("%w: unknown size tag %q", ErrValidationFailed, s)
}

// RenderFilter selects the audience of a catalogue render.
// It controls both which items are included and which weight labels show.
type RenderFilter string

const (
	FilterAdult RenderFilter = "Adult"
	FilterKids  RenderFilter = "Kids"
	FilterBoth  RenderFilter = "Both"
)

// ParseRenderFilter parses a filter value, case-insensitive.
// An empty or unknown value is a validation failure.
func ParseRenderFilter(s string) (RenderFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adult":
		return FilterAdult, nil
	case "kids":
		return FilterKids, nil
	case "both":
		return FilterBoth, nil
	case "":
		return "", fmt.Errorf("%w: filter is required", ErrValidationFailed)
	}
	return "", fmt.Errorf("%w: invalid filter %q (valid: Adult, Kids, Both)", ErrValidationFailed, s)
}

// Valid reports whether f is one of the known filters
func (f RenderFilter) Valid() bool {
	return f == FilterAdult || f == FilterKids || f == FilterBoth
}

// Includes reports whether the filter covers the given size tag
func (f RenderFilter) Includes(tag SizeTag) bool {
	switch f {
	case FilterAdult:
		return tag == SizeAdult
	case FilterKids:
		return tag == SizeKids
	case FilterBoth:
		return tag == SizeAdult || tag == SizeKids
	}
	return false
}

// SortOrder is the caller's declared ordering by model number
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder parses an order value; empty defaults to ascending
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return OrderAsc, nil
	case "desc", "descending":
		return OrderDesc, nil
	}
	return "", fmt.Errorf("%w: invalid order %q (valid: asc, desc)", ErrValidationFailed, s)
}

// CatalogueItem represents a single bangle in the catalogue.
// Items are read-only inputs supplied by the catalogue store.
type CatalogueItem struct {
	ID          string    `json:"id" yaml:"id"`
	ModelNumber int       `json:"modelNumber" yaml:"modelNumber"` // Unique, ordering key
	ImageRef    string    `json:"image" yaml:"image"`             // Opaque reference, may be empty
	Sizes       []SizeTag `json:"sizes" yaml:"sizes"`
	WeightAdult *float64  `json:"weightAdult,omitempty" yaml:"weightAdult,omitempty"` // Grams
	WeightKids  *float64  `json:"weightKids,omitempty" yaml:"weightKids,omitempty"`   // Grams
}

// HasSize reports whether the item is tagged with the given size
func (i CatalogueItem) HasSize(tag SizeTag) bool {
	for _, s := range i.Sizes {
		if s == tag {
			return true
		}
	}
	return false
}

// Weight returns the weight in grams for a size tag, if defined
func (i CatalogueItem) Weight(tag SizeTag) (float64, bool) {
	var w *float64
	switch tag {
	case SizeAdult:
		w = i.WeightAdult
	case SizeKids:
		w = i.WeightKids
	}
	if w == nil {
		return 0, false
	}
	return *w, true
}

// Caption returns the model-number caption printed under the image
func (i CatalogueItem) Caption() string {
	return fmt.Sprintf("B%d", i.ModelNumber)
}

// Grams is a helper for building items with literal weights
func Grams(w float64) *float64 {
	return &w
}

const fileNamePrefix = "BLOUDAN_BANGLES"

// CatalogueFileName is the name used when saving a catalogue locally
func CatalogueFileName() string {
	return fileNamePrefix + "_CATALOGUE.pdf"
}

// CatalogueFileNameFor is the name used by server-driven downloads
func CatalogueFileNameFor(filter RenderFilter) string {
	return fmt.Sprintf("%s_CATALOGUE_%s.pdf", fileNamePrefix, filter)
}

// EmailAttachmentName is the attachment name of an emailed catalogue
func EmailAttachmentName(filter RenderFilter) string {
	return fmt.Sprintf("%s_%s.pdf", fileNamePrefix, filter)
}

// NormalizeItems returns a copy of items with canonical size tags.
// Non-positive or duplicate model numbers, missing sizes and unknown tags
// are validation failures.
func NormalizeItems(items []CatalogueItem) ([]CatalogueItem, error) {
	out := make([]CatalogueItem, len(items))
	seen := make(map[int]bool, len(items))
	for i, item := range items {
		if item.ModelNumber <= 0 {
			return nil, fmt.Errorf("%w: model number must be positive, got %d", ErrValidationFailed, item.ModelNumber)
		}
		if len(item.Sizes) == 0 {
			return nil, fmt.Errorf("%w: item B%d has no sizes", ErrValidationFailed, item.ModelNumber)
		}
		if seen[item.ModelNumber] {
			return nil, fmt.Errorf("%w: duplicate model number %d", ErrValidationFailed, item.ModelNumber)
		}
		seen[item.ModelNumber] = true

		sizes := make([]SizeTag, 0, len(item.Sizes))
		for _, s := range item.Sizes {
			tag, err := ParseSizeTag(string(s))
			if err != nil {
				return nil, fmt.Errorf("item B%d: %w", item.ModelNumber, err)
			}
			sizes = append(sizes, tag)
		}
		item.Sizes = sizes
		out[i] = item
	}
	return out, nil
}
