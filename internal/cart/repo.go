package cart

import (
	"context"
	"errors"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyMerged is returned when a merge key was recorded before.
var ErrAlreadyMerged = errors.New("cart merge already applied")

// Repository exposes persistence operations for cart lines and the merge ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByUser returns every line the user holds, cart and saved, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var rows []models.CartLine
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceLines rewrites the user's lines to exactly the provided set.
func (r *Repository) ReplaceLines(ctx context.Context, userID uuid.UUID, lines []models.CartLine) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("user_id = ?", userID).Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].UserID = userID
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
	}
	return tx.Create(&lines).Error
}

// ClearCartList removes the cart list lines and leaves saved lines alone.
func (r *Repository) ClearCartList(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND list = ?", userID, enums.CartListCart).
		Delete(&models.CartLine{}).Error
}

// InsertMerge records a merge key. A repeated key yields ErrAlreadyMerged.
func (r *Repository) InsertMerge(ctx context.Context, merge *models.CartMerge) error {
	if merge.ID == uuid.Nil {
		merge.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(merge).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return ErrAlreadyMerged
		}
		return err
	}
	return nil
}
