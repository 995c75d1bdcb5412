package product

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the catalog and adjusts stock.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByID loads a product that is currently sellable.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// ReserveStock decrements stock when at least qty units remain. It reports
// false when the product is short.
func (r *Repository) ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStock returns previously reserved units.
func (r *Repository) ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// List returns one keyset page of active products and whether more rows exist.
func (r *Repository) List(ctx context.Context, query productListQuery) ([]models.Product, bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if query.Category != "" {
		tx = tx.Where("category = ?", query.Category)
	}
	if q := strings.ToLower(strings.TrimSpace(query.Query)); q != "" {
		like := "%" + q + "%"
		tx = tx.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)", like, like)
	}

	switch query.Sort {
	case SortPriceAsc:
		if c := query.ValueCursor; c != nil {
			tx = tx.Where("((price_cents > ?) OR (price_cents = ? AND id > ?))", c.Value, c.Value, c.ID)
		}
		tx = tx.Order("price_cents ASC").Order("id ASC")
	case SortPriceDesc:
		if c := query.ValueCursor; c != nil {
			tx = tx.Where("((price_cents < ?) OR (price_cents = ? AND id < ?))", c.Value, c.Value, c.ID)
		}
		tx = tx.Order("price_cents DESC").Order("id DESC")
	default:
		if c := query.Cursor; c != nil {
			tx = tx.Where("((created_at < ?) OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
		}
		tx = tx.Order("created_at DESC").Order("id DESC")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = pagination.LimitWithBuffer(0)
	}
	var rows []models.Product
	if err := tx.Limit(limit).Find(&rows).Error; err != nil {
		return nil, false, err
	}
	rows, hasMore := pagination.Trim(rows, limit)
	return rows, hasMore, nil
}
