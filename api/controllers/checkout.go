package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/api/responses"
	"github.com/rsainju/pasalmart/api/validators"
	cartsvc "github.com/rsainju/pasalmart/internal/cart"
	checkoutsvc "github.com/rsainju/pasalmart/internal/checkout"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// CheckoutService drives checkout attempts and callback verification.
type CheckoutService interface {
	Initiate(ctx context.Context) (*checkoutsvc.InitiateResult, error)
	BuyNow(ctx context.Context, line cartsvc.Line) (*checkoutsvc.InitiateResult, error)
	HandleReturn(ctx context.Context, reference string) (*checkoutsvc.ReturnResult, error)
	History(ctx context.Context) ([]checkoutsvc.Purchase, error)
}

type buyNowRequest struct {
	IdentityKey string          `json:"id"`
	DisplayName string          `json:"name" validate:"required"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"qty" validate:"min=1"`
	ImageRef    string          `json:"image"`
}

// CheckoutStart initiates a cart checkout and returns the gateway redirect
// target.
func CheckoutStart(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		result, err := svc.Initiate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BuyNow initiates a direct single-item purchase.
func BuyNow(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var payload buyNowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BuyNow(r.Context(), cartsvc.Line{
			IdentityKey: payload.IdentityKey,
			DisplayName: payload.DisplayName,
			UnitPrice:   payload.UnitPrice,
			Quantity:    payload.Quantity,
			ImageRef:    payload.ImageRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentReturn is the gateway redirect landing. The reference arrives as
// the pidx query parameter; reloading the page replays verification, which
// is idempotent on the backend.
func PaymentReturn(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		reference := r.URL.Query().Get("pidx")
		if reference == "" {
			reference = r.URL.Query().Get("reference")
		}

		result, err := svc.HandleReturn(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PurchaseHistory proxies the authenticated purchase history.
func PurchaseHistory(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		purchases, err := svc.History(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchases)
	}
}
