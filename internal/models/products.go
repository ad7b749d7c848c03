package models

import (
	"strconv"
	"strings"
)

// Product is a catalog entry read from the relational store, left-joined with its category name.
type Product struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CategoryID   *int64   `json:"category_id,omitempty"`
	CategoryName string   `json:"category_name"`
	Tags         []string `json:"tags"`
	Price        float64  `json:"price"`
	ImageURL     string   `json:"image_url"`
}

// Category is stable reference data.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CanonicalText is the text embedded for a product, both at index build time and at query time.
// Order: name, description, category name, space-joined tags.
func CanonicalText(p *Product) string {
	return p.Name + " " + p.Description + " " + p.CategoryName + " " + strings.Join(p.Tags, " ")
}

// Embeddable reports whether the canonical text carries any content.
func Embeddable(p *Product) bool {
	return strings.TrimSpace(CanonicalText(p)) != ""
}

// ProductPayload is the typed payload stored next to each vector in the index.
type ProductPayload struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	CategoryID   *int64  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Tags         Tags    `json:"tags"`
	Price        float64 `json:"price"`
	ImageURL     string  `json:"image_url"`
}

// NewProductPayload copies a product into its index payload.
func NewProductPayload(p *Product) ProductPayload {
	tags := make(Tags, len(p.Tags))
	copy(tags, p.Tags)

	return ProductPayload{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		Tags:         tags,
		Price:        p.Price,
		ImageURL:     p.ImageURL,
	}
}

// Payload field names usable in equality filters.
const (
	PayloadFieldID           = "id"
	PayloadFieldCategoryID   = "category_id"
	PayloadFieldCategoryName = "category_name"
)

// Field returns the string form of a payload field for equality filtering.
// The second return value is false when the field is unknown or null.
func (p ProductPayload) Field(name string) (string, bool) {
	switch name {
	case PayloadFieldID:
		return strconv.FormatInt(p.ID, 10), true
	case PayloadFieldCategoryID:
		if p.CategoryID == nil {
			return "", false
		}

		return strconv.FormatInt(*p.CategoryID, 10), true
	case PayloadFieldCategoryName:
		return p.CategoryName, true
	default:
		return "", false
	}
}

// PayloadFilter restricts a nearest-neighbour search to points whose payload field equals Value.
type PayloadFilter struct {
	Field string
	Value string
}

// CategoryFilter filters on category_id.
func CategoryFilter(categoryID int64) *PayloadFilter {
	return &PayloadFilter{Field: PayloadFieldCategoryID, Value: strconv.FormatInt(categoryID, 10)}
}

// IndexPoint is one vector index entry. ID is the product id.
type IndexPoint struct {
	ID      int64
	Vector  []float32
	Payload ProductPayload
}

// ScoredPoint is a nearest-neighbour search hit. Score is cosine similarity.
type ScoredPoint struct {
	ID      int64
	Score   float64
	Payload ProductPayload
}
