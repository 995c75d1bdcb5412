// Package reservation decrements catalog stock for checkout lines inside the order transaction.
package reservation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const reasonInsufficientStock = "insufficient stock"

// StockRequest asks for qty units of a product on behalf of a cart line.
type StockRequest struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	Size      string
	Qty       int
}

// StockResult reports the outcome for one request.
type StockResult struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	Qty       int
	Reserved  bool
	Reason    string
}

// ReserveStock attempts every request in order. Short lines are reported, not returned as errors,
// so the caller can list all of them; rollback is the caller's transaction.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) ([]StockResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	results := make([]StockResult, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND is_active = ? AND stock >= ?", req.ProductID, true, req.Qty).
			Update("stock", gorm.Expr("stock - ?", req.Qty))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		result := StockResult{LineID: req.LineID, ProductID: req.ProductID, Qty: req.Qty, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = reasonInsufficientStock
		}
		results = append(results, result)
	}
	return results, nil
}
