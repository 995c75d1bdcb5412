package webhooks

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-backend/api/responses"
	payfastwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payfast"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxNotificationBytes = 64 << 10

type PayFastWebhookService interface {
	Reconcile(ctx context.Context, params url.Values) (*payfastwebhook.Outcome, error)
}

type notificationAck struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Changed   bool   `json:"changed"`
	Duplicate bool   `json:"duplicate"`
}

// PayFastWebhook accepts PayFast payment notifications. The body is a form-encoded ITN;
// any non-2xx response makes PayFast retry, so duplicates and no-op updates answer 200.
func PayFastWebhook(svc PayFastWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBytes)
		if err := r.ParseForm(); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
			return
		}
		if len(r.PostForm) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "notification body is empty"))
			return
		}

		outcome, err := svc.Reconcile(ctx, r.PostForm)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(logg.WithOrderID(ctx, outcome.OrderID.String()), map[string]any{
				"payment_status": outcome.Status.String(),
				"changed":        outcome.Changed,
				"duplicate":      outcome.Duplicate,
			})
			logg.Info(logCtx, "payfast notification processed")
		}
		responses.WriteSuccess(w, notificationAck{
			OrderID:   outcome.OrderID.String(),
			Status:    outcome.Status.String(),
			Changed:   outcome.Changed,
			Duplicate: outcome.Duplicate,
		})
	}
}
