package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/internal/cart"
)

// State names one step of a checkout attempt. Control leaves the process at
// AwaitingGateway; everything after is reconstructed from the callback.
type State string

const (
	StateIdle            State = "Idle"
	StateInitiating      State = "Initiating"
	StateAwaitingGateway State = "AwaitingGateway"
	StateVerifying       State = "Verifying"
	StateSettled         State = "Settled"
	StateFailed          State = "Failed"
	StateErrored         State = "Errored"
)

const statusCompleted = "Completed"

// OrderItem is the line-item shape shared by the initiate and verify bodies.
// The backend recomputes the authoritative amount from these.
type OrderItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderIntent is built per checkout attempt and never persisted. The amount
// is advisory; the backend re-derives it from the items.
type OrderIntent struct {
	Amount      decimal.Decimal
	OrderID     string
	Description string
	LineItems   []OrderItem
}

type initiateRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	OrderID   string          `json:"orderId"`
	OrderName string          `json:"orderName"`
	Items     []OrderItem     `json:"items"`
}

type initiateResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

type verifyRequest struct {
	Reference string      `json:"reference"`
	Items     []OrderItem `json:"items"`
}

type verifyResponse struct {
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Purchase is one settled order from the backend history endpoint.
type Purchase struct {
	ID              int64           `json:"id"`
	PurchaseOrderID string          `json:"purchaseOrderId"`
	PurchaseDate    string          `json:"purchaseDate"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	Items           []OrderItem     `json:"items"`
}

// InitiateResult reports a successful hand-off to the external gateway.
type InitiateResult struct {
	State      State           `json:"state"`
	OrderID    string          `json:"orderId"`
	PaymentURL string          `json:"paymentUrl"`
	Amount     decimal.Decimal `json:"amount"`
}

// ReturnResult reports the terminal state of a verified attempt.
type ReturnResult struct {
	State     State           `json:"state"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

func itemsFromLines(lines []cart.Line) []OrderItem {
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderItem{
			Name:     line.DisplayName,
			Quantity: line.Quantity,
			Price:    line.UnitPrice,
		})
	}
	return items
}
