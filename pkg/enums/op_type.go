package enums

import "fmt"

// OpType identifies the kind of mutation a queued operation carries.
type OpType string

const (
	OpTypeProductCreate OpType = "product_create"
	OpTypeProductUpdate OpType = "product_update"
	OpTypeSaleRecord    OpType = "sale_record"
	OpTypeStockReceive  OpType = "stock_receive"
	OpTypeStockCorrect  OpType = "stock_correct"
)

var validOpTypes = []OpType{
	OpTypeProductCreate,
	OpTypeProductUpdate,
	OpTypeSaleRecord,
	OpTypeStockReceive,
	OpTypeStockCorrect,
}

// IsValid reports whether the value matches the canonical op type enum.
func (o OpType) IsValid() bool {
	for _, candidate := range validOpTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOpType converts the raw string to OpType.
func ParseOpType(value string) (OpType, error) {
	for _, candidate := range validOpTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid op type %q", value)
}
