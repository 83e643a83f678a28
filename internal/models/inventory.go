package models

import "time"

type Supplier struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	SupplierID *string   `json:"supplier_id"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	Quantity   float64   `json:"quantity"`
	UnitCost   float64   `json:"unit_cost"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RecipeIngredient struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type Recipe struct {
	ID            string             `json:"id"`
	AccountID     string             `json:"account_id"`
	Name          string             `json:"name"`
	Yield         float64            `json:"yield"`
	MarkupPercent float64            `json:"markup_percent"`
	Ingredients   []RecipeIngredient `json:"ingredients"`
	CreatedAt     time.Time          `json:"created_at"`
}

type ShowcaseItem struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	RecipeID  string    `json:"recipe_id"`
	Quantity  float64   `json:"quantity"`
	SalePrice float64   `json:"sale_price"`
	CreatedAt time.Time `json:"created_at"`
}

// Origin names where an inventory entry comes from.
type Origin string

const (
	OriginStock    Origin = "estoque"
	OriginShowcase Origin = "vitrine"
)

// Valuation is the value rule of one inventory entry. It is implemented only
// by StockValuation and ShowcaseValuation.
type Valuation interface {
	Origin() Origin
	Value() float64
	isValuation()
}

// StockValuation values raw stock at its purchase cost.
type StockValuation struct {
	ProductID string
	Quantity  float64
	UnitCost  float64
}

func (StockValuation) Origin() Origin   { return OriginStock }
func (v StockValuation) Value() float64 { return v.Quantity * v.UnitCost }
func (StockValuation) isValuation()     {}

// ShowcaseValuation values finished goods at their sale price.
type ShowcaseValuation struct {
	RecipeID  string
	Quantity  float64
	SalePrice float64
}

func (ShowcaseValuation) Origin() Origin   { return OriginShowcase }
func (v ShowcaseValuation) Value() float64 { return v.Quantity * v.SalePrice }
func (ShowcaseValuation) isValuation()     {}
