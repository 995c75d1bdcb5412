package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the persisted per-user cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, size string) (*View, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*View, error)
	SaveForLater(ctx context.Context, userID, lineID uuid.UUID) (*View, error)
	MoveToCart(ctx context.Context, userID, lineID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Merge(ctx context.Context, userID, guestCartID uuid.UUID, lines []IncomingLine) (*View, error)
	Restore(ctx context.Context, userID, orderID uuid.UUID, lines []IncomingLine) (*View, error)
}

// IncomingLine is a line arriving from outside the persisted cart: a guest
// cart on sign-in or the items of a cancelled order.
type IncomingLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
}

// View is the cart representation returned to clients.
type View struct {
	Items          []Line `json:"items"`
	Saved          []Line `json:"saved"`
	ItemCount      int    `json:"item_count"`
	SubtotalCents  int    `json:"subtotal_cents"`
	Currency       string `json:"currency"`
	FormattedTotal string `json:"formatted_total"`
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
	currency string
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "ZAR"
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		currency: currency,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	c, _ := fromModels(rows)
	return s.view(c), nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, size string) (*View, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	size = strings.TrimSpace(size)
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.HasSize(size) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size is not offered for this product").
			WithDetails(map[string]any{"size": size, "sizes": []string(product.Sizes)})
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.AddItem(snapshotOf(product), size)
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, qty int) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.UpdateQuantity(lineID, qty)
	})
}

func (s *service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.RemoveItem(lineID)
	})
}

func (s *service) SaveForLater(ctx context.Context, userID, lineID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.SaveForLater(lineID)
	})
}

func (s *service) MoveToCart(ctx context.Context, userID, lineID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.MoveToCart(lineID)
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if err := s.repo.ClearCartList(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Merge folds a guest cart into the user's cart once per guest cart id.
func (s *service) Merge(ctx context.Context, userID, guestCartID uuid.UUID, lines []IncomingLine) (*View, error) {
	if guestCartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest_cart_id is required")
	}
	return s.mergeOnce(ctx, userID, "guest:"+guestCartID.String(), lines)
}

// Restore re-hydrates the cart from a cancelled order. Repeated calls for the
// same order leave the cart unchanged.
func (s *service) Restore(ctx context.Context, userID, orderID uuid.UUID, lines []IncomingLine) (*View, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.mergeOnce(ctx, userID, "order:"+orderID.String(), lines)
}

func (s *service) mergeOnce(ctx context.Context, userID uuid.UUID, key string, incoming []IncomingLine) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	lines, err := s.resolveIncoming(ctx, incoming)
	if err != nil {
		return nil, err
	}

	var result *Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.InsertMerge(ctx, &models.CartMerge{
			UserID:    userID,
			MergeKey:  key,
			LineCount: len(lines),
		}); err != nil {
			return err
		}
		rows, err := txRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		c, created := fromModels(rows)
		c.Merge(lines)
		if err := txRepo.ReplaceLines(ctx, userID, toModels(c, created)); err != nil {
			return err
		}
		result = c
		return nil
	})
	if errors.Is(err, ErrAlreadyMerged) {
		return s.Get(ctx, userID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart")
	}
	return s.view(result), nil
}

// resolveIncoming re-prices incoming lines from the catalog. Unknown or
// inactive products and unsupported sizes are dropped.
func (s *service) resolveIncoming(ctx context.Context, incoming []IncomingLine) ([]Line, error) {
	out := make([]Line, 0, len(incoming))
	for _, in := range incoming {
		if in.ProductID == uuid.Nil || in.Quantity <= 0 {
			continue
		}
		product, err := s.products.FindActiveByID(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		size := strings.TrimSpace(in.Size)
		if !product.HasSize(size) {
			continue
		}
		snap := snapshotOf(product)
		out = append(out, Line{
			ProductID:      snap.ProductID,
			Name:           snap.Name,
			UnitPriceCents: snap.UnitPriceCents,
			ImageRef:       snap.ImageRef,
			Quantity:       in.Quantity,
			Size:           size,
			List:           enums.CartListCart,
		})
	}
	return out, nil
}

func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn func(c *Cart) error) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	var result *Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		c, created := fromModels(rows)
		if err := fn(c); err != nil {
			return err
		}
		if err := txRepo.ReplaceLines(ctx, userID, toModels(c, created)); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, mapCartError(err)
	}
	return s.view(result), nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) view(c *Cart) *View {
	return &View{
		Items:          c.Items(),
		Saved:          c.Saved(),
		ItemCount:      c.Count(),
		SubtotalCents:  c.Total(),
		Currency:       s.currency,
		FormattedTotal: c.FormatTotal(s.currency),
	}
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, ErrLineNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cart line not found")
	case errors.Is(err, ErrInvalidQuantity):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quantity must be zero or greater")
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
}

func snapshotOf(p *models.Product) Snapshot {
	return Snapshot{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPriceCents: p.PriceCents,
		ImageRef:       p.PrimaryImage(),
	}
}

// fromModels builds the aggregate and remembers row creation times so rewrites keep ordering.
func fromModels(rows []models.CartLine) (*Cart, map[uuid.UUID]time.Time) {
	lines := make([]Line, 0, len(rows))
	created := make(map[uuid.UUID]time.Time, len(rows))
	for _, row := range rows {
		lines = append(lines, LineFromModel(row))
		created[row.ID] = row.CreatedAt
	}
	return New(lines), created
}

func toModels(c *Cart, created map[uuid.UUID]time.Time) []models.CartLine {
	lines := c.Lines()
	rows := make([]models.CartLine, 0, len(lines))
	now := time.Now().UTC()
	for i, line := range lines {
		createdAt, ok := created[line.ID]
		if !ok {
			createdAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		rows = append(rows, models.CartLine{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Size:           line.Size,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			ImageRef:       line.ImageRef,
			List:           line.List,
			CreatedAt:      createdAt,
		})
	}
	return rows
}

// LineFromModel converts a persisted row to an aggregate line.
func LineFromModel(row models.CartLine) Line {
	return Line{
		ID:             row.ID,
		ProductID:      row.ProductID,
		Name:           row.Name,
		UnitPriceCents: row.UnitPriceCents,
		Quantity:       row.Quantity,
		Size:           row.Size,
		ImageRef:       row.ImageRef,
		List:           row.List,
	}
}
