package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const orderCreatedHTML = `<p>Hi {{.Name}},</p>
<p>Thanks for your order <strong>{{.Number}}</strong>.</p>
<table>
{{range .Items}}<tr><td>{{.Quantity}} x {{.Name}}{{if .Size}} ({{.Size}}){{end}}</td><td>{{.Total}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal}}<br>Shipping: {{.Shipping}}{{if .Discount}}<br>Discount: -{{.Discount}}{{end}}<br><strong>Total: {{.Total}}</strong></p>
{{if .Layby}}<p>This order is on layby. Your deposit of {{.Due}} secures the items.</p>{{else}}<p>Amount due now: {{.Due}}</p>{{end}}`

const statusChangedHTML = `<p>Hi {{.Name}},</p>
<p>{{.Headline}}</p>
{{if .Tracking}}<p>Carrier: {{.Carrier}}<br>Tracking number: {{.Tracking}}</p>{{end}}
{{if .Reason}}<p>{{.Reason}}</p>{{end}}
<p>Order {{.Number}} total: {{.Total}}</p>`

var statusHeadlines = map[enums.OrderStatus]struct {
	subject  string
	headline string
}{
	enums.OrderStatusPaid:          {"Payment received for %s", "We have received your payment and are preparing your order."},
	enums.OrderStatusPaymentFailed: {"Payment failed for %s", "Your payment did not go through. You can retry from your order page."},
	enums.OrderStatusCancelled:     {"Order %s cancelled", "Your order has been cancelled and any reserved items were released."},
	enums.OrderStatusShipped:       {"Order %s shipped", "Your order is on its way."},
	enums.OrderStatusDelivered:     {"Order %s delivered", "Your order has been delivered. Enjoy!"},
}

type templates struct {
	created *template.Template
	changed *template.Template
}

func loadTemplates() (*templates, error) {
	created, err := template.New("order_created").Parse(orderCreatedHTML)
	if err != nil {
		return nil, fmt.Errorf("parse order created template: %w", err)
	}
	changed, err := template.New("order_status_changed").Parse(statusChangedHTML)
	if err != nil {
		return nil, fmt.Errorf("parse status template: %w", err)
	}
	return &templates{created: created, changed: changed}, nil
}

type itemView struct {
	Name     string
	Size     string
	Quantity int
	Total    string
}

func (t *templates) orderCreated(event payloads.OrderCreatedEvent) (mailer.Message, bool, error) {
	if strings.TrimSpace(event.BuyerEmail) == "" {
		return mailer.Message{}, false, nil
	}
	format := func(cents int) string { return money.FormatWithCurrency(cents, event.Currency) }
	items := make([]itemView, 0, len(event.Items))
	lines := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		items = append(items, itemView{
			Name:     item.Name,
			Size:     item.Size,
			Quantity: item.Quantity,
			Total:    format(item.LineTotalCents),
		})
		lines = append(lines, fmt.Sprintf("%d x %s  %s", item.Quantity, item.Name, format(item.LineTotalCents)))
	}
	data := map[string]any{
		"Name":     displayName(event.BuyerName),
		"Number":   event.OrderNumber,
		"Items":    items,
		"Subtotal": format(event.SubtotalCents),
		"Shipping": format(event.ShippingCents),
		"Total":    format(event.TotalCents),
		"Due":      format(event.PaymentAmountCents),
		"Layby":    event.IsLayby,
	}
	if event.DiscountCents > 0 {
		data["Discount"] = format(event.DiscountCents)
	}

	var html bytes.Buffer
	if err := t.created.Execute(&html, data); err != nil {
		return mailer.Message{}, false, err
	}
	text := fmt.Sprintf("Thanks for your order %s.\n\n%s\n\nTotal: %s\nDue now: %s\n",
		event.OrderNumber, strings.Join(lines, "\n"), format(event.TotalCents), format(event.PaymentAmountCents))

	return mailer.Message{
		To:      event.BuyerEmail,
		ToName:  event.BuyerName,
		Subject: fmt.Sprintf("Order %s received", event.OrderNumber),
		HTML:    html.String(),
		Text:    text,
	}, true, nil
}

func (t *templates) statusChanged(event payloads.OrderStatusChangedEvent) (mailer.Message, bool, error) {
	entry, ok := statusHeadlines[event.To]
	if !ok || strings.TrimSpace(event.BuyerEmail) == "" {
		return mailer.Message{}, false, nil
	}
	data := map[string]any{
		"Name":     displayName(event.BuyerName),
		"Number":   event.OrderNumber,
		"Headline": entry.headline,
		"Total":    money.FormatWithCurrency(event.TotalCents, event.Currency),
	}
	if event.TrackingNumber != nil && *event.TrackingNumber != "" {
		data["Tracking"] = *event.TrackingNumber
		if event.Carrier != nil {
			data["Carrier"] = *event.Carrier
		}
	}
	if event.To == enums.OrderStatusCancelled && event.Reason != "" {
		data["Reason"] = "Reason: " + event.Reason
	}

	var html bytes.Buffer
	if err := t.changed.Execute(&html, data); err != nil {
		return mailer.Message{}, false, err
	}
	text := entry.headline
	if tracking, ok := data["Tracking"].(string); ok {
		text += "\nTracking number: " + tracking
	}

	return mailer.Message{
		To:      event.BuyerEmail,
		ToName:  event.BuyerName,
		Subject: fmt.Sprintf(entry.subject, event.OrderNumber),
		HTML:    html.String(),
		Text:    text,
	}, true, nil
}

func displayName(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "there"
}
