package enums

import "fmt"

// EntityType names the entity an operation targets.
type EntityType string

const (
	EntityTypeProduct   EntityType = "product"
	EntityTypeSale      EntityType = "sale"
	EntityTypeReception EntityType = "reception"
)

var validEntityTypes = []EntityType{
	EntityTypeProduct,
	EntityTypeSale,
	EntityTypeReception,
}

// IsValid reports whether the value matches the canonical entity type enum.
func (e EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntityType converts the raw string to EntityType.
func ParseEntityType(value string) (EntityType, error) {
	for _, candidate := range validEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity type %q", value)
}
