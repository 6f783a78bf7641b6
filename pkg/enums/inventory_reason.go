package enums

import "fmt"

// InventoryReason explains why a product's stock moved.
type InventoryReason string

const (
	InventoryReasonCheckout InventoryReason = "checkout"
	InventoryReasonRestock  InventoryReason = "restock"
	InventoryReasonRelease  InventoryReason = "release"
)

var validInventoryReasons = []InventoryReason{
	InventoryReasonCheckout,
	InventoryReasonRestock,
	InventoryReasonRelease,
}

func (r InventoryReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known InventoryReason.
func (r InventoryReason) IsValid() bool {
	for _, candidate := range validInventoryReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseInventoryReason converts raw input into an InventoryReason.
func ParseInventoryReason(value string) (InventoryReason, error) {
	for _, candidate := range validInventoryReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory reason %q", value)
}
