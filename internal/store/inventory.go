package store

import (
	"context"

	"estoquefacil/internal/models"

	"github.com/jackc/pgx/v5"
)

func (p *Postgres) CreateSupplier(ctx context.Context, s models.Supplier) (models.Supplier, error) {
	err := p.db(ctx).QueryRow(ctx, `
		INSERT INTO suppliers (account_id, name, contact)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at`, s.AccountID, s.Name, s.Contact,
	).Scan(&s.ID, &s.CreatedAt)
	return s, err
}

func (p *Postgres) ListSuppliers(ctx context.Context, accountID string) ([]models.Supplier, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT id::text, account_id::text, name, contact, created_at
		FROM suppliers WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Supplier
	for rows.Next() {
		var s models.Supplier
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.Contact, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSupplier(ctx context.Context, accountID, id string) error {
	return p.deleteOwned(ctx, "suppliers", accountID, id)
}

const productColumns = `id::text, account_id::text, supplier_id::text, name, unit, quantity::float8, unit_cost::float8, photo_url, created_at, updated_at`

func scanProduct(row pgx.Row) (models.Product, error) {
	var pr models.Product
	err := row.Scan(&pr.ID, &pr.AccountID, &pr.SupplierID, &pr.Name, &pr.Unit, &pr.Quantity, &pr.UnitCost, &pr.PhotoURL, &pr.CreatedAt, &pr.UpdatedAt)
	if noRow(err) {
		return models.Product{}, ErrNotFound
	}
	return pr, err
}

func (p *Postgres) CreateProduct(ctx context.Context, pr models.Product) (models.Product, error) {
	return scanProduct(p.db(ctx).QueryRow(ctx, `
		INSERT INTO products (account_id, supplier_id, name, unit, quantity, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		pr.AccountID, pr.SupplierID, pr.Name, pr.Unit, pr.Quantity, pr.UnitCost))
}

func (p *Postgres) GetProduct(ctx context.Context, accountID, id string) (models.Product, error) {
	return scanProduct(p.db(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE account_id = $1 AND id = $2`, accountID, id))
}

func (p *Postgres) ListProducts(ctx context.Context, accountID string) ([]models.Product, error) {
	rows, err := p.db(ctx).Query(ctx, `SELECT `+productColumns+` FROM products WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Product
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteProduct(ctx context.Context, accountID, id string) error {
	return p.deleteOwned(ctx, "products", accountID, id)
}

func (p *Postgres) SetProductPhoto(ctx context.Context, accountID, id, url string) error {
	ct, err := p.db(ctx).Exec(ctx, `
		UPDATE products SET photo_url = $3, updated_at = NOW()
		WHERE account_id = $1 AND id = $2`, accountID, id, url)
	if noRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateRecipe(ctx context.Context, r models.Recipe) (models.Recipe, error) {
	tx, err := p.db(ctx).Begin(ctx)
	if err != nil {
		return models.Recipe{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO recipes (account_id, name, yield, markup_percent)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`, r.AccountID, r.Name, r.Yield, r.MarkupPercent,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return models.Recipe{}, err
	}
	for _, ing := range r.Ingredients {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, product_id, quantity)
			VALUES ($1, $2, $3)`, r.ID, ing.ProductID, ing.Quantity); err != nil {
			return models.Recipe{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Recipe{}, err
	}
	return r, nil
}

func (p *Postgres) GetRecipe(ctx context.Context, accountID, id string) (models.Recipe, error) {
	var r models.Recipe
	err := p.db(ctx).QueryRow(ctx, `
		SELECT id::text, account_id::text, name, yield::float8, markup_percent::float8, created_at
		FROM recipes WHERE account_id = $1 AND id = $2`, accountID, id,
	).Scan(&r.ID, &r.AccountID, &r.Name, &r.Yield, &r.MarkupPercent, &r.CreatedAt)
	if noRow(err) {
		return models.Recipe{}, ErrNotFound
	}
	if err != nil {
		return models.Recipe{}, err
	}
	r.Ingredients, err = p.recipeIngredients(ctx, r.ID)
	return r, err
}

func (p *Postgres) ListRecipes(ctx context.Context, accountID string) ([]models.Recipe, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT id::text, account_id::text, name, yield::float8, markup_percent::float8, created_at
		FROM recipes WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	var out []models.Recipe
	for rows.Next() {
		var r models.Recipe
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Name, &r.Yield, &r.MarkupPercent, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Ingredients, err = p.recipeIngredients(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Postgres) recipeIngredients(ctx context.Context, recipeID string) ([]models.RecipeIngredient, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT product_id::text, quantity::float8 FROM recipe_ingredients
		WHERE recipe_id = $1 ORDER BY product_id`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.RecipeIngredient{}
	for rows.Next() {
		var ing models.RecipeIngredient
		if err := rows.Scan(&ing.ProductID, &ing.Quantity); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteRecipe(ctx context.Context, accountID, id string) error {
	return p.deleteOwned(ctx, "recipes", accountID, id)
}

func (p *Postgres) CreateShowcaseItem(ctx context.Context, item models.ShowcaseItem) (models.ShowcaseItem, error) {
	err := p.db(ctx).QueryRow(ctx, `
		INSERT INTO showcase_items (account_id, recipe_id, quantity, sale_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`, item.AccountID, item.RecipeID, item.Quantity, item.SalePrice,
	).Scan(&item.ID, &item.CreatedAt)
	return item, err
}

func (p *Postgres) ListShowcaseItems(ctx context.Context, accountID string) ([]models.ShowcaseItem, error) {
	rows, err := p.db(ctx).Query(ctx, `
		SELECT id::text, account_id::text, recipe_id::text, quantity::float8, sale_price::float8, created_at
		FROM showcase_items WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ShowcaseItem
	for rows.Next() {
		var it models.ShowcaseItem
		if err := rows.Scan(&it.ID, &it.AccountID, &it.RecipeID, &it.Quantity, &it.SalePrice, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteShowcaseItem(ctx context.Context, accountID, id string) error {
	return p.deleteOwned(ctx, "showcase_items", accountID, id)
}

// deleteOwned removes a row only when it belongs to accountID. table is always
// a package constant.
func (p *Postgres) deleteOwned(ctx context.Context, table, accountID, id string) error {
	ct, err := p.db(ctx).Exec(ctx, `DELETE FROM `+table+` WHERE account_id = $1 AND id = $2`, accountID, id)
	if noRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
