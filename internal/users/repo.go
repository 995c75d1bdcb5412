package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists shopper and operator accounts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, in NewUser) (*models.User, error) {
	user := in.Model()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches case-insensitively; emails are stored lowercased.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.lookup(ctx, &models.User{Email: normalizeEmail(email)})
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.lookup(ctx, &models.User{ID: id})
}

// lookup uses struct conditions, so a blank key would match every row.
func (r *Repository) lookup(ctx context.Context, where *models.User) (*models.User, error) {
	if where.Email == "" && where.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).Where(where).Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordLogin stamps last_login_at. A non-empty rehash replaces the stored
// password hash in the same statement.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, rehash string) error {
	set := map[string]any{"last_login_at": at}
	if rehash != "" {
		set["password_hash"] = rehash
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(set)
	return res.Error
}
