// Package payfast builds hosted payment page handoffs and verifies ITN callbacks.
package payfast

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

const (
	SandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
	LiveProcessURL    = "https://www.payfast.co.za/eng/process"

	ParamSignature     = "signature"
	ParamMerchantID    = "merchant_id"
	ParamPaymentID     = "m_payment_id"
	ParamGatewayID     = "pf_payment_id"
	ParamPaymentStatus = "payment_status"
	ParamAmountGross   = "amount_gross"
)

// Gateway payment_status values.
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

// Field is a single form field. Order matters for the checkout signature.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Handoff is everything a client needs to POST the buyer to the hosted payment page.
type Handoff struct {
	ProcessURL string  `json:"process_url"`
	Fields     []Field `json:"fields"`
}

// HandoffRequest describes the order being paid.
type HandoffRequest struct {
	OrderID         uuid.UUID
	AmountCents     int
	ItemName        string
	ItemDescription string
	FirstName       string
	LastName        string
	Email           string
}

// Client holds merchant credentials.
type Client struct {
	cfg config.PayFastConfig
}

func NewClient(cfg config.PayFastConfig) (*Client, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" || strings.TrimSpace(cfg.MerchantKey) == "" {
		return nil, errors.New("payfast merchant id and key are required")
	}
	if cfg.NotifyURL == "" {
		return nil, errors.New("payfast notify url is required")
	}
	return &Client{cfg: cfg}, nil
}

// MerchantID returns the configured merchant identifier.
func (c *Client) MerchantID() string {
	return c.cfg.MerchantID
}

// ProcessURL returns the hosted page endpoint for the configured environment.
func (c *Client) ProcessURL() string {
	if c.cfg.Sandbox {
		return SandboxProcessURL
	}
	return LiveProcessURL
}

// Checkout builds the signed handoff form for req.
func (c *Client) Checkout(req HandoffRequest) (Handoff, error) {
	if req.OrderID == uuid.Nil {
		return Handoff{}, errors.New("order id is required")
	}
	if req.AmountCents <= 0 {
		return Handoff{}, errors.New("amount must be positive")
	}

	fields := []Field{
		{Name: "merchant_id", Value: c.cfg.MerchantID},
		{Name: "merchant_key", Value: c.cfg.MerchantKey},
		{Name: "return_url", Value: c.cfg.ReturnURL},
		{Name: "cancel_url", Value: c.cfg.CancelURL},
		{Name: "notify_url", Value: c.cfg.NotifyURL},
		{Name: "name_first", Value: req.FirstName},
		{Name: "name_last", Value: req.LastName},
		{Name: "email_address", Value: req.Email},
		{Name: ParamPaymentID, Value: req.OrderID.String()},
		{Name: "amount", Value: money.Format(req.AmountCents)},
		{Name: "item_name", Value: truncate(req.ItemName, 100)},
		{Name: "item_description", Value: truncate(req.ItemDescription, 255)},
	}

	kept := fields[:0]
	for _, f := range fields {
		f.Value = strings.TrimSpace(f.Value)
		if f.Value != "" {
			kept = append(kept, f)
		}
	}
	kept = append(kept, Field{Name: ParamSignature, Value: SignFields(kept, c.cfg.Passphrase)})

	return Handoff{ProcessURL: c.ProcessURL(), Fields: kept}, nil
}

// VerifyMerchant reports whether params were addressed to this merchant.
func (c *Client) VerifyMerchant(params url.Values) bool {
	return hmac.Equal([]byte(params.Get(ParamMerchantID)), []byte(c.cfg.MerchantID))
}

// VerifySignature recomputes the callback signature and compares it in constant time.
func (c *Client) VerifySignature(params url.Values) bool {
	provided := strings.ToLower(strings.TrimSpace(params.Get(ParamSignature)))
	if provided == "" {
		return false
	}
	expected := SignParams(params, c.cfg.Passphrase)
	return hmac.Equal([]byte(provided), []byte(expected))
}

// SignFields signs non-empty fields in the order given.
func SignFields(fields []Field, passphrase string) string {
	pairs := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f.Name == ParamSignature || f.Value == "" {
			continue
		}
		pairs = append(pairs, f.Name+"="+url.QueryEscape(f.Value))
	}
	return digest(pairs, passphrase)
}

// SignParams signs every parameter except signature, sorted by key.
func SignParams(params url.Values, passphrase string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == ParamSignature {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		pairs = append(pairs, key+"="+url.QueryEscape(strings.TrimSpace(params.Get(key))))
	}
	return digest(pairs, passphrase)
}

func digest(pairs []string, passphrase string) string {
	if passphrase = strings.TrimSpace(passphrase); passphrase != "" {
		pairs = append(pairs, "passphrase="+url.QueryEscape(passphrase))
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

// MapPaymentStatus converts the gateway payment_status into an order status.
// Unknown values map to pending, which callers treat as a no-op.
func MapPaymentStatus(status string) enums.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusComplete:
		return enums.OrderStatusPaid
	case StatusFailed:
		return enums.OrderStatusPaymentFailed
	case StatusPending:
		return enums.OrderStatusPaymentPending
	case StatusCancelled:
		return enums.OrderStatusCancelled
	default:
		return enums.OrderStatusPending
	}
}

func truncate(value string, max int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
