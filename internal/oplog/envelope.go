package oplog

import (
	"encoding/json"
	"fmt"

	"github.com/bibo40140/caisse-backend/internal/oplog/payloads"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// Decode resolves an operation row into its typed payload. Unknown op
// types are rejected; there is no generic passthrough branch.
func Decode(op models.Operation) (payloads.Payload, error) {
	var (
		payload payloads.Payload
		err     error
	)
	switch op.OpType {
	case enums.OpTypeProductCreate:
		var p payloads.ProductCreate
		err = json.Unmarshal(op.Payload, &p)
		payload = p
	case enums.OpTypeProductUpdate:
		var p payloads.ProductUpdate
		err = json.Unmarshal(op.Payload, &p)
		payload = p
	case enums.OpTypeSaleRecord:
		var p payloads.SaleRecord
		err = json.Unmarshal(op.Payload, &p)
		payload = p
	case enums.OpTypeStockReceive:
		var p payloads.StockReceive
		err = json.Unmarshal(op.Payload, &p)
		payload = p
	case enums.OpTypeStockCorrect:
		var p payloads.StockCorrect
		err = json.Unmarshal(op.Payload, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown op type %q", op.OpType)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", op.OpType, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", op.OpType, err)
	}
	return payload, nil
}
