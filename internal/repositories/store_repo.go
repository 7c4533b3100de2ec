package repositories

import (
	"context"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type StoreRepo struct {
	pool *pgxpool.Pool
}

func NewStoreRepo(pool *pgxpool.Pool) *StoreRepo {
	return &StoreRepo{pool: pool}
}

const storeColumns = `id, owner_id, slug, name, description, country, currency, logo_url, is_active, created_at, updated_at`

func scanStore(row pgx.Row) (*models.Store, error) {
	var s models.Store
	err := row.Scan(&s.ID, &s.OwnerID, &s.Slug, &s.Name, &s.Description, &s.Country, &s.Currency,
		&s.LogoURL, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StoreRepo) Create(ctx context.Context, s *models.Store) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stores (owner_id, slug, name, description, country, currency, logo_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, s.OwnerID, s.Slug, s.Name, s.Description, s.Country, s.Currency, s.LogoURL, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicate, "store slug is already taken")
	}
	return err
}

func (r *StoreRepo) Update(ctx context.Context, s *models.Store) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE stores SET name = $3, description = $4, logo_url = $5, is_active = $6, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+storeColumns,
		s.ID, s.OwnerID, s.Name, s.Description, s.LogoURL, s.IsActive,
	).Scan(&s.ID, &s.OwnerID, &s.Slug, &s.Name, &s.Description, &s.Country, &s.Currency,
		&s.LogoURL, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return notFound(err, "store")
}

func (r *StoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	s, err := scanStore(r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "store")
	}
	return s, nil
}

// GetActiveBySlug returns the public storefront; inactive stores are NOT_FOUND.
func (r *StoreRepo) GetActiveBySlug(ctx context.Context, slug string) (*models.Store, error) {
	s, err := scanStore(r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE slug = $1 AND is_active`, slug))
	if err != nil {
		return nil, notFound(err, "store")
	}
	return s, nil
}

func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// --- Catalog ---

func (r *StoreRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Images == nil {
		p.Images = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, base_price, currency, images, category, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, p.Name, p.Description, p.BasePrice, p.Currency, p.Images, p.Category, p.SourceURL).Scan(&p.ID, &p.CreatedAt)
}

func (r *StoreRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, base_price, currency, images, category, source_url, created_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.Currency, &p.Images, &p.Category, &p.SourceURL, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

// UpsertStoreProduct lists a catalog product in a store at price.
func (r *StoreRepo) UpsertStoreProduct(ctx context.Context, storeID, productID uuid.UUID, price decimal.Decimal, visible bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO store_products (store_id, product_id, price, is_visible)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (store_id, product_id) DO UPDATE SET
			price = EXCLUDED.price,
			is_visible = EXCLUDED.is_visible
	`, storeID, productID, price, visible)
	return err
}

func (r *StoreRepo) RemoveStoreProduct(ctx context.Context, storeID, productID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM store_products WHERE store_id = $1 AND product_id = $2`, storeID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "store product")
	}
	return nil
}

const storeProductColumns = `p.id, p.name, p.description, p.base_price, p.currency, p.images, p.category, p.source_url, p.created_at,
	sp.store_id, sp.price, sp.is_visible`

func scanStoreProduct(row pgx.Row) (*models.StoreProduct, error) {
	var sp models.StoreProduct
	err := row.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.BasePrice, &sp.Currency, &sp.Images, &sp.Category, &sp.SourceURL, &sp.CreatedAt,
		&sp.StoreID, &sp.Price, &sp.IsVisible)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// GetVisibleProduct returns a product as a store sells it; hidden listings are NOT_FOUND.
func (r *StoreRepo) GetVisibleProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.StoreProduct, error) {
	sp, err := scanStoreProduct(r.pool.QueryRow(ctx, `
		SELECT `+storeProductColumns+`
		FROM store_products sp
		JOIN products p ON p.id = sp.product_id
		WHERE sp.store_id = $1 AND sp.product_id = $2 AND sp.is_visible
	`, storeID, productID))
	if err != nil {
		return nil, notFound(err, "product")
	}
	return sp, nil
}

func (r *StoreRepo) ListProducts(ctx context.Context, storeID uuid.UUID, visibleOnly bool) ([]models.StoreProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+storeProductColumns+`
		FROM store_products sp
		JOIN products p ON p.id = sp.product_id
		WHERE sp.store_id = $1 AND (sp.is_visible OR NOT $2)
		ORDER BY sp.created_at DESC
	`, storeID, visibleOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StoreProduct{}
	for rows.Next() {
		sp, err := scanStoreProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}
