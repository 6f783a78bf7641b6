package enums

import (
	"fmt"
	"strings"
)

// ProductCategory groups catalog items for browsing.
type ProductCategory string

const (
	ProductCategoryMeat    ProductCategory = "meat"
	ProductCategoryFish    ProductCategory = "fish"
	ProductCategoryVeggies ProductCategory = "veggies"
	ProductCategoryGrocery ProductCategory = "grocery"
	ProductCategoryFruit   ProductCategory = "fruit"

	// DefaultProductCategory applies when a product is created without one.
	DefaultProductCategory = ProductCategoryGrocery
)

var validProductCategories = []ProductCategory{
	ProductCategoryMeat,
	ProductCategoryFish,
	ProductCategoryVeggies,
	ProductCategoryGrocery,
	ProductCategoryFruit,
}

// ProductCategories lists every known category in display order.
func ProductCategories() []ProductCategory {
	out := make([]ProductCategory, len(validProductCategories))
	copy(out, validProductCategories)
	return out
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory, ignoring case.
func ParseProductCategory(value string) (ProductCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validProductCategories {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
