package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/models"
	"estoquefacil/internal/numfmt"
	"estoquefacil/internal/plans"

	"github.com/google/uuid"
)

const maxPhotoBytes = 5 << 20

var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Inventory struct {
	store    InventoryStore
	limits   *Limits
	photos   PhotoStore
	activity activity.Recorder
}

type ProductInput struct {
	SupplierID *string `json:"supplier_id"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
}

func (inv *Inventory) CreateProduct(ctx context.Context, accountID string, in ProductInput) (models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Product{}, invalid("name", "is required")
	}
	if in.Quantity < 0 {
		return models.Product{}, invalid("quantity", "must not be negative")
	}
	if in.UnitCost < 0 {
		return models.Product{}, invalid("unit_cost", "must not be negative")
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "un"
	}
	var p models.Product
	err := inv.capped(ctx, accountID, plans.ResourceProducts, func(ctx context.Context) error {
		var err error
		p, err = inv.store.CreateProduct(ctx, models.Product{
			AccountID:  accountID,
			SupplierID: in.SupplierID,
			Name:       name,
			Unit:       unit,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
		})
		return err
	})
	if err != nil {
		return models.Product{}, err
	}
	inv.activity.Record(ctx, models.ActivityEntry{
		AccountID:  accountID,
		Action:     activity.ActionProductCreated,
		EntityType: "product",
		EntityID:   p.ID,
	})
	return p, nil
}

// capped runs create under the account lock, after checking the plan cap
// inside that lock.
func (inv *Inventory) capped(ctx context.Context, accountID string, r plans.Resource, create func(ctx context.Context) error) error {
	return inv.store.WithAccountLock(ctx, accountID, func(ctx context.Context) error {
		if err := inv.limits.Enforce(ctx, accountID, r); err != nil {
			return err
		}
		return create(ctx)
	})
}

func (inv *Inventory) ListProducts(ctx context.Context, accountID string) ([]models.Product, error) {
	return inv.store.ListProducts(ctx, accountID)
}

func (inv *Inventory) DeleteProduct(ctx context.Context, accountID, id string) error {
	return inv.store.DeleteProduct(ctx, accountID, id)
}

// UploadProductPhoto stores the image under the account's prefix and saves
// its public URL on the product.
func (inv *Inventory) UploadProductPhoto(ctx context.Context, accountID, productID, contentType string, size int64, r io.Reader) (models.Product, error) {
	if inv.photos == nil {
		return models.Product{}, ErrStorageNotConfigured
	}
	ext, ok := photoTypes[contentType]
	if !ok {
		return models.Product{}, invalid("photo", "unsupported content type %q", contentType)
	}
	if size <= 0 || size > maxPhotoBytes {
		return models.Product{}, invalid("photo", "size must be between 1 byte and %d bytes", maxPhotoBytes)
	}
	if _, err := inv.store.GetProduct(ctx, accountID, productID); err != nil {
		return models.Product{}, err
	}
	key := path.Join(accountID, productID, uuid.NewString()+ext)
	url, err := inv.photos.Put(ctx, key, r, size, contentType)
	if err != nil {
		return models.Product{}, &RemoteError{Service: "minio", Op: "put object", Err: err}
	}
	if err := inv.store.SetProductPhoto(ctx, accountID, productID, url); err != nil {
		return models.Product{}, err
	}
	return inv.store.GetProduct(ctx, accountID, productID)
}

func (inv *Inventory) CreateSupplier(ctx context.Context, accountID, name, contact string) (models.Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Supplier{}, invalid("name", "is required")
	}
	var sup models.Supplier
	err := inv.capped(ctx, accountID, plans.ResourceSuppliers, func(ctx context.Context) error {
		var err error
		sup, err = inv.store.CreateSupplier(ctx, models.Supplier{AccountID: accountID, Name: name, Contact: strings.TrimSpace(contact)})
		return err
	})
	if err != nil {
		return models.Supplier{}, err
	}
	return sup, nil
}

func (inv *Inventory) ListSuppliers(ctx context.Context, accountID string) ([]models.Supplier, error) {
	return inv.store.ListSuppliers(ctx, accountID)
}

func (inv *Inventory) DeleteSupplier(ctx context.Context, accountID, id string) error {
	return inv.store.DeleteSupplier(ctx, accountID, id)
}

type RecipeInput struct {
	Name          string                    `json:"name"`
	Yield         float64                   `json:"yield"`
	MarkupPercent float64                   `json:"markup_percent"`
	Ingredients   []models.RecipeIngredient `json:"ingredients"`
}

func (inv *Inventory) CreateRecipe(ctx context.Context, accountID string, in RecipeInput) (models.Recipe, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Recipe{}, invalid("name", "is required")
	}
	if in.Yield <= 0 {
		return models.Recipe{}, invalid("yield", "must be greater than 0")
	}
	if in.MarkupPercent < 0 {
		return models.Recipe{}, invalid("markup_percent", "must not be negative")
	}
	if len(in.Ingredients) == 0 {
		return models.Recipe{}, invalid("ingredients", "at least one ingredient is required")
	}
	seen := make(map[string]bool, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		field := fmt.Sprintf("ingredients[%d]", i)
		if ing.Quantity <= 0 {
			return models.Recipe{}, invalid(field, "quantity must be greater than 0")
		}
		if seen[ing.ProductID] {
			return models.Recipe{}, invalid(field, "product listed twice")
		}
		seen[ing.ProductID] = true
		if _, err := inv.store.GetProduct(ctx, accountID, ing.ProductID); err != nil {
			if isMissing(err) {
				return models.Recipe{}, invalid(field, "unknown product %s", ing.ProductID)
			}
			return models.Recipe{}, err
		}
	}
	var r models.Recipe
	err := inv.capped(ctx, accountID, plans.ResourceRecipes, func(ctx context.Context) error {
		var err error
		r, err = inv.store.CreateRecipe(ctx, models.Recipe{
			AccountID:     accountID,
			Name:          name,
			Yield:         in.Yield,
			MarkupPercent: in.MarkupPercent,
			Ingredients:   in.Ingredients,
		})
		return err
	})
	if err != nil {
		return models.Recipe{}, err
	}
	inv.activity.Record(ctx, models.ActivityEntry{
		AccountID:  accountID,
		Action:     activity.ActionRecipeCreated,
		EntityType: "recipe",
		EntityID:   r.ID,
	})
	return r, nil
}

func (inv *Inventory) ListRecipes(ctx context.Context, accountID string) ([]models.Recipe, error) {
	return inv.store.ListRecipes(ctx, accountID)
}

func (inv *Inventory) DeleteRecipe(ctx context.Context, accountID, id string) error {
	return inv.store.DeleteRecipe(ctx, accountID, id)
}

type RecipePricing struct {
	RecipeID       string  `json:"recipe_id"`
	TotalCost      float64 `json:"total_cost"`
	UnitCost       float64 `json:"unit_cost"`
	SuggestedPrice float64 `json:"suggested_price"`
	Margin         float64 `json:"margin"`

	TotalCostLabel      string `json:"total_cost_label"`
	UnitCostLabel       string `json:"unit_cost_label"`
	SuggestedPriceLabel string `json:"suggested_price_label"`
	MarginLabel         string `json:"margin_label"`
}

// PriceRecipe costs a recipe from the current unit cost of its ingredients.
// Margin is (price - cost) / price.
func (inv *Inventory) PriceRecipe(ctx context.Context, accountID, recipeID string) (RecipePricing, error) {
	r, err := inv.store.GetRecipe(ctx, accountID, recipeID)
	if err != nil {
		return RecipePricing{}, err
	}
	products, err := inv.store.ListProducts(ctx, accountID)
	if err != nil {
		return RecipePricing{}, err
	}
	costs := make(map[string]float64, len(products))
	for _, p := range products {
		costs[p.ID] = p.UnitCost
	}
	return priceRecipe(r, costs), nil
}

func priceRecipe(r models.Recipe, unitCosts map[string]float64) RecipePricing {
	out := RecipePricing{RecipeID: r.ID}
	for _, ing := range r.Ingredients {
		out.TotalCost += ing.Quantity * unitCosts[ing.ProductID]
	}
	if r.Yield > 0 {
		out.UnitCost = out.TotalCost / r.Yield
	}
	out.SuggestedPrice = out.UnitCost * (1 + r.MarkupPercent/100)
	if out.SuggestedPrice > 0 {
		out.Margin = (out.SuggestedPrice - out.UnitCost) / out.SuggestedPrice
	}
	out.TotalCostLabel = numfmt.FormatCurrency(out.TotalCost)
	out.UnitCostLabel = numfmt.FormatCurrency(out.UnitCost)
	out.SuggestedPriceLabel = numfmt.FormatCurrency(out.SuggestedPrice)
	out.MarginLabel = numfmt.FormatPercent(out.Margin * 100)
	return out
}

type ShowcaseInput struct {
	RecipeID  string  `json:"recipe_id"`
	Quantity  float64 `json:"quantity"`
	SalePrice float64 `json:"sale_price"`
}

func (inv *Inventory) CreateShowcaseItem(ctx context.Context, accountID string, in ShowcaseInput) (models.ShowcaseItem, error) {
	if in.Quantity < 0 {
		return models.ShowcaseItem{}, invalid("quantity", "must not be negative")
	}
	if in.SalePrice < 0 {
		return models.ShowcaseItem{}, invalid("sale_price", "must not be negative")
	}
	if _, err := inv.store.GetRecipe(ctx, accountID, in.RecipeID); err != nil {
		if isMissing(err) {
			return models.ShowcaseItem{}, invalid("recipe_id", "unknown recipe %s", in.RecipeID)
		}
		return models.ShowcaseItem{}, err
	}
	var item models.ShowcaseItem
	err := inv.capped(ctx, accountID, plans.ResourceShowcase, func(ctx context.Context) error {
		var err error
		item, err = inv.store.CreateShowcaseItem(ctx, models.ShowcaseItem{
			AccountID: accountID,
			RecipeID:  in.RecipeID,
			Quantity:  in.Quantity,
			SalePrice: in.SalePrice,
		})
		return err
	})
	if err != nil {
		return models.ShowcaseItem{}, err
	}
	return item, nil
}

func (inv *Inventory) ListShowcaseItems(ctx context.Context, accountID string) ([]models.ShowcaseItem, error) {
	return inv.store.ListShowcaseItems(ctx, accountID)
}

func (inv *Inventory) DeleteShowcaseItem(ctx context.Context, accountID, id string) error {
	return inv.store.DeleteShowcaseItem(ctx, accountID, id)
}

type OriginTotal struct {
	Origin models.Origin `json:"origin"`
	Items  int           `json:"items"`
	Value  float64       `json:"value"`
	Label  string        `json:"label"`
}

type InventoryValue struct {
	Origins    []OriginTotal `json:"origins"`
	Total      float64       `json:"total"`
	TotalLabel string        `json:"total_label"`
}

// Value totals raw stock at cost and showcase goods at sale price.
func (inv *Inventory) Value(ctx context.Context, accountID string) (InventoryValue, error) {
	products, err := inv.store.ListProducts(ctx, accountID)
	if err != nil {
		return InventoryValue{}, err
	}
	items, err := inv.store.ListShowcaseItems(ctx, accountID)
	if err != nil {
		return InventoryValue{}, err
	}
	vals := make([]models.Valuation, 0, len(products)+len(items))
	for _, p := range products {
		vals = append(vals, models.StockValuation{ProductID: p.ID, Quantity: p.Quantity, UnitCost: p.UnitCost})
	}
	for _, it := range items {
		vals = append(vals, models.ShowcaseValuation{RecipeID: it.RecipeID, Quantity: it.Quantity, SalePrice: it.SalePrice})
	}
	return summarize(vals), nil
}

func summarize(vals []models.Valuation) InventoryValue {
	totals := []OriginTotal{{Origin: models.OriginStock}, {Origin: models.OriginShowcase}}
	var out InventoryValue
	for _, v := range vals {
		i := 0
		if v.Origin() == models.OriginShowcase {
			i = 1
		}
		totals[i].Items++
		totals[i].Value += v.Value()
		out.Total += v.Value()
	}
	for i := range totals {
		totals[i].Label = numfmt.FormatCurrency(totals[i].Value)
	}
	out.Origins = totals
	out.TotalLabel = numfmt.FormatCurrency(out.Total)
	return out
}
