package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Checkout turns the caller's cart into a pending order and returns the payment handoff.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type applyDiscountRequest struct {
	Code             string     `json:"code" validate:"required,max=64,discount_code"`
	ShippingMethodID *uuid.UUID `json:"shipping_method_id,omitempty"`
}

// DiscountApply prices the cart with a discount code without redeeming it.
func DiscountApply(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), userID, checkoutsvc.QuoteInput{
			ShippingMethodID: payload.ShippingMethodID,
			DiscountCode:     payload.Code,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}

type createLaybyPlanRequest struct {
	Frequency        string    `json:"frequency" validate:"required,layby_frequency"`
	DepositCents     int       `json:"deposit_cents,omitempty" validate:"gte=0"`
	ShippingMethodID uuid.UUID `json:"shipping_method_id" validate:"required"`
	DiscountCode     string    `json:"discount_code,omitempty" validate:"omitempty,max=64,discount_code"`
}

type laybyPlanResponse struct {
	*layby.PlanDTO
	Quote *checkoutsvc.Quote `json:"quote"`
}

// LaybyCreatePlan prices the cart as it would be charged and stores an unlinked layby plan for it.
func LaybyCreatePlan(quotes checkoutsvc.Service, plans layby.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if quotes == nil || plans == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "layby service unavailable"))
			return
		}

		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createLaybyPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		frequency, err := enums.ParseLaybyFrequency(payload.Frequency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frequency"))
			return
		}

		shippingID := payload.ShippingMethodID
		quote, err := quotes.Quote(r.Context(), userID, checkoutsvc.QuoteInput{
			ShippingMethodID: &shippingID,
			DiscountCode:     payload.DiscountCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := plans.CreatePlan(r.Context(), userID, quote.Totals.TotalCents, frequency, payload.DepositCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, laybyPlanResponse{PlanDTO: plan, Quote: quote})
	}
}
