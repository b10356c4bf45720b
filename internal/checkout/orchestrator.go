package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/internal/cart"
	"github.com/rsainju/pasalmart/internal/storage"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
	"github.com/rsainju/pasalmart/pkg/metrics"
)

const (
	initiatePath = "/payment/initiate"
	verifyPath   = "/payment/verify"
	historyPath  = "/payment/history"
)

type cartAccess interface {
	Lines() []cart.Line
	Total() decimal.Decimal
	Clear(ctx context.Context) error
	IsEmpty() bool
}

type sessionGate interface {
	IsAuthenticated() bool
}

type backendClient interface {
	PostJSON(ctx context.Context, path string, body, out any) error
	GetJSON(ctx context.Context, path string, out any) error
}

// Orchestrator drives the checkout state machine. No attempt state is held
// in memory across the gateway redirect; HandleReturn re-derives everything
// it needs from the callback and the current cart.
type Orchestrator struct {
	cart     cartAccess
	session  sessionGate
	backend  backendClient
	scratch  storage.KV
	loginURL string
	retries  uint64
	backoff  time.Duration
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// Params wires the orchestrator dependencies.
type Params struct {
	Cart          cartAccess
	Session       sessionGate
	Backend       backendClient
	Scratch       storage.KV
	LoginURL      string
	VerifyRetries uint64
	VerifyBackoff time.Duration
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
}

// NewOrchestrator validates and assembles the checkout engine.
func NewOrchestrator(p Params) (*Orchestrator, error) {
	if p.Cart == nil {
		return nil, fmt.Errorf("cart aggregator required")
	}
	if p.Session == nil {
		return nil, fmt.Errorf("session store required")
	}
	if p.Backend == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if p.Scratch == nil {
		return nil, fmt.Errorf("durable store required")
	}
	if strings.TrimSpace(p.LoginURL) == "" {
		return nil, fmt.Errorf("login url required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.VerifyBackoff <= 0 {
		p.VerifyBackoff = 200 * time.Millisecond
	}
	return &Orchestrator{
		cart:     p.Cart,
		session:  p.Session,
		backend:  p.Backend,
		scratch:  p.Scratch,
		loginURL: p.LoginURL,
		retries:  p.VerifyRetries,
		backoff:  p.VerifyBackoff,
		metrics:  p.Metrics,
		logg:     p.Logger,
	}, nil
}

// Initiate starts a checkout attempt for the whole cart. It aborts before
// any network call when the cart is empty or the shopper is not
// authenticated.
func (o *Orchestrator) Initiate(ctx context.Context) (*InitiateResult, error) {
	if o.cart.IsEmpty() {
		o.metrics.IncInitiated("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := o.requireAuth(); err != nil {
		return nil, err
	}

	intent := OrderIntent{
		Amount:      o.cart.Total(),
		OrderID:     uuid.NewString(),
		Description: "Order",
		LineItems:   itemsFromLines(o.cart.Lines()),
	}
	return o.initiate(ctx, intent)
}

// BuyNow starts a checkout attempt for a single explicit item without
// touching the cart.
func (o *Orchestrator) BuyNow(ctx context.Context, line cart.Line) (*InitiateResult, error) {
	if line.Quantity < 1 {
		o.metrics.IncInitiated("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if strings.TrimSpace(line.DisplayName) == "" {
		o.metrics.IncInitiated("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if err := o.requireAuth(); err != nil {
		return nil, err
	}

	orderID := line.IdentityKey
	if strings.TrimSpace(orderID) == "" {
		orderID = uuid.NewString()
	}
	qty := decimal.NewFromInt(int64(line.Quantity))
	intent := OrderIntent{
		Amount:      line.UnitPrice.Mul(qty),
		OrderID:     orderID,
		Description: fmt.Sprintf("%s x %d", line.DisplayName, line.Quantity),
		LineItems: []OrderItem{{
			Name:     line.DisplayName,
			Quantity: line.Quantity,
			Price:    line.UnitPrice,
		}},
	}
	return o.initiate(ctx, intent)
}

func (o *Orchestrator) requireAuth() error {
	if o.session.IsAuthenticated() {
		return nil
	}
	o.metrics.IncInitiated("auth_required")
	return pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required before checkout").
		WithDetails(map[string]any{"loginUrl": o.loginURL})
}

func (o *Orchestrator) initiate(ctx context.Context, intent OrderIntent) (*InitiateResult, error) {
	ctx = o.logg.WithOrderID(ctx, intent.OrderID)

	o.stashPendingPurchase(ctx, intent)

	var resp initiateResponse
	req := initiateRequest{
		Amount:    intent.Amount,
		OrderID:   intent.OrderID,
		OrderName: intent.Description,
		Items:     intent.LineItems,
	}
	if err := o.backend.PostJSON(ctx, initiatePath, req, &resp); err != nil {
		o.metrics.IncInitiated("error")
		o.metrics.IncTerminal(string(StateErrored))
		return nil, err
	}
	if strings.TrimSpace(resp.PaymentURL) == "" {
		o.metrics.IncInitiated("error")
		o.metrics.IncTerminal(string(StateErrored))
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "backend returned no payment url")
	}

	o.metrics.IncInitiated("ok")
	o.logg.Info(ctx, "checkout handed off to payment gateway")
	return &InitiateResult{
		State:      StateAwaitingGateway,
		OrderID:    intent.OrderID,
		PaymentURL: resp.PaymentURL,
		Amount:     intent.Amount,
	}, nil
}

// HandleReturn consumes the gateway redirect callback. The current cart is
// re-read and re-serialized at verification time rather than reused from
// initiation, tolerating edits and reloads in between. Verify is idempotent
// for a given reference, so duplicate callbacks are safe.
func (o *Orchestrator) HandleReturn(ctx context.Context, reference string) (*ReturnResult, error) {
	if strings.TrimSpace(reference) == "" {
		o.metrics.IncTerminal(string(StateErrored))
		return nil, pkgerrors.New(pkgerrors.CodeVerification, "payment reference missing from callback")
	}
	ctx = o.logg.WithPaymentReference(ctx, reference)

	req := verifyRequest{
		Reference: reference,
		Items:     itemsFromLines(o.cart.Lines()),
	}

	var resp verifyResponse
	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(o.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp = verifyResponse{}
		if callErr := o.backend.PostJSON(ctx, verifyPath, req, &resp); callErr != nil {
			if pkgerrors.CodeOf(callErr) == pkgerrors.CodeUnauthorized {
				return callErr
			}
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		o.metrics.IncTerminal(string(StateErrored))
		if pkgerrors.CodeOf(err) == pkgerrors.CodeUnauthorized {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeVerification, err, "verify payment")
	}

	status := strings.TrimSpace(resp.Status)
	if status == "" {
		o.metrics.IncTerminal(string(StateErrored))
		return nil, pkgerrors.New(pkgerrors.CodeVerification, "backend returned no payment status")
	}

	if status != statusCompleted {
		o.metrics.IncTerminal(string(StateFailed))
		o.logg.Warn(ctx, "payment not completed, cart preserved for retry")
		return &ReturnResult{State: StateFailed, Reference: reference, Amount: resp.TotalAmount}, nil
	}

	if err := o.cart.Clear(ctx); err != nil {
		// The backend has settled; record the terminal state even though
		// the local cart could not be cleared.
		o.metrics.IncTerminal(string(StateSettled))
		o.logg.Error(ctx, "payment settled but cart clear failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment settled but cart could not be cleared")
	}
	if err := o.scratch.Delete(ctx, storage.KeyPendingPurchase); err != nil {
		o.logg.Error(ctx, "failed to drop pending purchase scratch", err)
	}

	o.metrics.IncTerminal(string(StateSettled))
	o.logg.Info(ctx, "payment settled")
	return &ReturnResult{State: StateSettled, Reference: reference, Amount: resp.TotalAmount}, nil
}

// History lists the shopper's settled purchases from the backend.
func (o *Orchestrator) History(ctx context.Context) ([]Purchase, error) {
	var purchases []Purchase
	if err := o.backend.GetJSON(ctx, historyPath, &purchases); err != nil {
		return nil, err
	}
	for _, purchase := range purchases {
		if strings.TrimSpace(purchase.Status) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeVerification, "purchase history entry missing status")
		}
	}
	return purchases, nil
}

// stashPendingPurchase keeps a scratch copy of the intent for the landing
// page. Best effort: the attempt proceeds even if the write fails.
func (o *Orchestrator) stashPendingPurchase(ctx context.Context, intent OrderIntent) {
	encoded, err := json.Marshal(intent.LineItems)
	if err != nil {
		return
	}
	if err := o.scratch.Set(ctx, storage.KeyPendingPurchase, string(encoded)); err != nil {
		o.logg.Warn(ctx, "failed to stash pending purchase scratch")
	}
}
