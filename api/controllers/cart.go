package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/api/responses"
	"github.com/rsainju/pasalmart/api/validators"
	cartsvc "github.com/rsainju/pasalmart/internal/cart"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// CartService is the aggregator surface the cart endpoints need.
type CartService interface {
	Add(ctx context.Context, candidate cartsvc.Line) ([]cartsvc.Line, error)
	SetQuantity(ctx context.Context, identityKey string, quantity int) error
	Remove(ctx context.Context, identityKey string) error
	Clear(ctx context.Context) error
	Lines() []cartsvc.Line
	Total() decimal.Decimal
}

type addLineRequest struct {
	IdentityKey string          `json:"id" validate:"required"`
	DisplayName string          `json:"name" validate:"required"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"qty"`
	ImageRef    string          `json:"image"`
}

type setQuantityRequest struct {
	Quantity int `json:"qty"`
}

type cartSnapshot struct {
	Lines []cartsvc.Line  `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func snapshot(svc CartService) cartSnapshot {
	return cartSnapshot{Lines: svc.Lines(), Total: svc.Total()}
}

// CartView returns the current lines and the recomputed total.
func CartView(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		responses.WriteSuccess(w, snapshot(svc))
	}
}

// CartAdd merges a line into the cart.
func CartAdd(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.Add(r.Context(), cartsvc.Line{
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
		responses.WriteSuccess(w, cartSnapshot{Lines: lines, Total: svc.Total()})
	}
}

// CartSetQuantity commits a quantity edit for one line.
func CartSetQuantity(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		key := chi.URLParam(r, "key")
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetQuantity(r.Context(), key, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot(svc))
	}
}

// CartRemove drops a line; removing an absent key succeeds.
func CartRemove(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}

		key := chi.URLParam(r, "key")
		if err := svc.Remove(r.Context(), key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot(svc))
	}
}

// CartClear empties the cart.
func CartClear(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		if err := svc.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot(svc))
	}
}
