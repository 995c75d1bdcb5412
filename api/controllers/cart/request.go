package cart

import (
	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/internal/cart"
)

func toIncomingLines(lines []cartdto.MergeLine) []cart.IncomingLine {
	out := make([]cart.IncomingLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, cart.IncomingLine{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
		})
	}
	return out
}
