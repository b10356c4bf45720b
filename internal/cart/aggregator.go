package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/internal/storage"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// Line is one product entry in the cart. At most one line exists per
// identity key; merging adds quantities.
type Line struct {
	IdentityKey string          `json:"id"`
	DisplayName string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"qty"`
	ImageRef    string          `json:"image,omitempty"`
}

// Aggregator holds the ordered collection of cart lines. Every mutation is a
// single read-modify-write under the lock, persisted before returning; when
// the write fails the in-memory lines revert to the persisted snapshot.
type Aggregator struct {
	mu    sync.Mutex
	kv    storage.KV
	logg  *logger.Logger
	lines []Line
}

// NewAggregator builds a cart over the durable KV.
func NewAggregator(kv storage.KV, logg *logger.Logger) (*Aggregator, error) {
	if kv == nil {
		return nil, fmt.Errorf("durable store required")
	}
	return &Aggregator{kv: kv, logg: logg}, nil
}

// Load restores the cart from durable storage at startup. A malformed stored
// cart starts empty; only storage failures are reported.
func (a *Aggregator) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, ok, err := a.kv.Get(ctx, storage.KeyCart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !ok {
		a.lines = nil
		return nil
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		if a.logg != nil {
			a.logg.Warn(ctx, "discarding malformed stored cart")
		}
		a.lines = nil
		_ = a.kv.Delete(ctx, storage.KeyCart)
		return nil
	}
	for i := range lines {
		if lines[i].Quantity < 1 {
			lines[i].Quantity = 1
		}
	}
	a.lines = lines
	return nil
}

// Add merges the candidate into the cart by identity key and returns the
// updated snapshot. Adding the same item twice yields one line with the
// summed quantity.
func (a *Aggregator) Add(ctx context.Context, candidate Line) ([]Line, error) {
	if strings.TrimSpace(candidate.IdentityKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart line identity key is required")
	}
	if candidate.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if candidate.Quantity < 1 {
		candidate.Quantity = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prior := a.snapshotLocked()
	merged := false
	for i := range a.lines {
		if a.lines[i].IdentityKey == candidate.IdentityKey {
			a.lines[i].Quantity += candidate.Quantity
			merged = true
			break
		}
	}
	if !merged {
		a.lines = append(a.lines, candidate)
	}

	if err := a.persistLocked(ctx); err != nil {
		a.lines = prior
		return nil, err
	}
	return a.snapshotLocked(), nil
}

// SetQuantity commits a quantity edit for the line; invalid values revert
// to 1, never zero or negative. Editing an absent key is a no-op.
func (a *Aggregator) SetQuantity(ctx context.Context, identityKey string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.lines {
		if a.lines[i].IdentityKey == identityKey {
			prior := a.lines[i].Quantity
			a.lines[i].Quantity = quantity
			if err := a.persistLocked(ctx); err != nil {
				a.lines[i].Quantity = prior
				return err
			}
			return nil
		}
	}
	return nil
}

// Remove drops the matching line. Absent keys are a no-op, not an error.
func (a *Aggregator) Remove(ctx context.Context, identityKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.lines {
		if a.lines[i].IdentityKey == identityKey {
			prior := a.snapshotLocked()
			a.lines = append(a.lines[:i], a.lines[i+1:]...)
			if err := a.persistLocked(ctx); err != nil {
				a.lines = prior
				return err
			}
			return nil
		}
	}
	return nil
}

// Clear empties the cart and persists immediately. Clearing an empty cart is
// a no-op so a duplicate settlement callback cannot double-clear.
func (a *Aggregator) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.lines) == 0 {
		return nil
	}
	prior := a.lines
	a.lines = nil
	if err := a.kv.Delete(ctx, storage.KeyCart); err != nil {
		a.lines = prior
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Lines returns a copy of the current lines in insertion order.
func (a *Aggregator) Lines() []Line {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Total recomputes the cart total from the current lines. It is never stored
// so it cannot drift from the line items.
func (a *Aggregator) Total() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := decimal.Zero
	for _, line := range a.lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (a *Aggregator) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lines) == 0
}

func (a *Aggregator) snapshotLocked() []Line {
	out := make([]Line, len(a.lines))
	copy(out, a.lines)
	return out
}

func (a *Aggregator) persistLocked(ctx context.Context) error {
	encoded, err := json.Marshal(a.lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := a.kv.Set(ctx, storage.KeyCart, string(encoded)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}
