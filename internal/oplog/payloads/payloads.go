package payloads

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payload is the closed set of operation payloads carried by the op log.
// Each kind validates its own required fields before enqueue and again
// before server-side application.
type Payload interface {
	Validate() error
}

// ProductCreate seeds a new catalog product with its starting stock.
type ProductCreate struct {
	ProductID uuid.UUID       `json:"produit_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
}

func (p ProductCreate) Validate() error {
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("produit_id is required")
	}
	if p.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

// ProductUpdate carries catalog field changes. Stock is deliberately
// absent: stock only ever moves through ledger-bearing operations.
type ProductUpdate struct {
	ProductID uuid.UUID        `json:"produit_id"`
	Name      *string          `json:"name,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Deleted   *bool            `json:"deleted,omitempty"`
}

func (p ProductUpdate) Validate() error {
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("produit_id is required")
	}
	if p.Name == nil && p.UnitPrice == nil && p.Deleted == nil {
		return fmt.Errorf("at least one field change is required")
	}
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	return nil
}

// SaleLine is one product/qty pair inside a recorded sale.
type SaleLine struct {
	ProductID uuid.UUID       `json:"produit_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SaleRecord decrements stock for every line of a completed sale.
type SaleRecord struct {
	SaleID uuid.UUID  `json:"sale_id"`
	Lines  []SaleLine `json:"lines"`
}

func (p SaleRecord) Validate() error {
	if p.SaleID == uuid.Nil {
		return fmt.Errorf("sale_id is required")
	}
	if len(p.Lines) == 0 {
		return fmt.Errorf("at least one line is required")
	}
	for i, line := range p.Lines {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("line %d: produit_id is required", i)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("line %d: qty must be positive", i)
		}
	}
	return nil
}

// StockReceive increments stock for a received delivery.
type StockReceive struct {
	ReceptionID uuid.UUID `json:"reception_id"`
	ProductID   uuid.UUID `json:"produit_id"`
	Qty         int       `json:"qty"`
}

func (p StockReceive) Validate() error {
	if p.ReceptionID == uuid.Nil {
		return fmt.Errorf("reception_id is required")
	}
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("produit_id is required")
	}
	if p.Qty <= 0 {
		return fmt.Errorf("qty must be positive")
	}
	return nil
}

// StockCorrect applies a signed manual stock correction.
type StockCorrect struct {
	ProductID uuid.UUID `json:"produit_id"`
	Delta     int       `json:"delta"`
	Note      string    `json:"note,omitempty"`
}

func (p StockCorrect) Validate() error {
	if p.ProductID == uuid.Nil {
		return fmt.Errorf("produit_id is required")
	}
	if p.Delta == 0 {
		return fmt.Errorf("delta must not be zero")
	}
	return nil
}
