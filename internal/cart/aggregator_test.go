package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rsainju/pasalmart/internal/storage"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
)

type stubKV struct {
	entries map[string]string
	setErr  error
	getErr  error
	delErr  error
	sets    int
	deletes int
}

func newStubKV() *stubKV {
	return &stubKV{entries: map[string]string{}}
}

func (s *stubKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *stubKV) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.entries[key] = value
	return nil
}

func (s *stubKV) Delete(ctx context.Context, keys ...string) error {
	if s.delErr != nil {
		return s.delErr
	}
	s.deletes++
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func mustAggregator(t *testing.T, kv storage.KV) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(kv, nil)
	if err != nil {
		t.Fatalf("construct aggregator: %v", err)
	}
	return agg
}

func TestAddMergesByIdentityKey(t *testing.T) {
	kv := newStubKV()
	agg := mustAggregator(t, kv)
	ctx := context.Background()

	line := Line{IdentityKey: "sku-1", DisplayName: "Apple", UnitPrice: decimal.NewFromInt(100), Quantity: 1}
	if _, err := agg.Add(ctx, line); err != nil {
		t.Fatalf("first add: %v", err)
	}
	lines, err := agg.Add(ctx, line)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(lines) != 1 {
		t.Fatalf("expected one merged line got %d", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2 got %d", lines[0].Quantity)
	}
	if got := agg.Total(); !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total 200 got %s", got)
	}
}

func TestAddClampsQuantityToOne(t *testing.T) {
	agg := mustAggregator(t, newStubKV())

	lines, err := agg.Add(context.Background(), Line{IdentityKey: "sku-1", DisplayName: "Apple", Quantity: -3})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if lines[0].Quantity != 1 {
		t.Fatalf("expected clamped quantity 1 got %d", lines[0].Quantity)
	}
}

func TestAddRejectsMissingKeyAndNegativePrice(t *testing.T) {
	agg := mustAggregator(t, newStubKV())
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{DisplayName: "No key"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1", UnitPrice: decimal.NewFromInt(-5)}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestSetQuantityClampsAndIgnoresAbsentKey(t *testing.T) {
	kv := newStubKV()
	agg := mustAggregator(t, kv)
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1", Quantity: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := agg.SetQuantity(ctx, "sku-1", 0); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if got := agg.Lines()[0].Quantity; got != 1 {
		t.Fatalf("expected quantity clamped to 1 got %d", got)
	}

	setsBefore := kv.sets
	if err := agg.SetQuantity(ctx, "missing", 5); err != nil {
		t.Fatalf("set quantity on absent key: %v", err)
	}
	if kv.sets != setsBefore {
		t.Fatalf("absent key edit should not persist")
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	agg := mustAggregator(t, newStubKV())
	if err := agg.Remove(context.Background(), "missing"); err != nil {
		t.Fatalf("remove absent key: %v", err)
	}
}

func TestRemoveDropsLine(t *testing.T) {
	agg := mustAggregator(t, newStubKV())
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-2"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := agg.Remove(ctx, "sku-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	lines := agg.Lines()
	if len(lines) != 1 || lines[0].IdentityKey != "sku-2" {
		t.Fatalf("unexpected lines after remove: %+v", lines)
	}
}

func TestClearEmptyCartIsNoop(t *testing.T) {
	kv := newStubKV()
	agg := mustAggregator(t, kv)
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := agg.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	deletesAfterFirst := kv.deletes

	if err := agg.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if kv.deletes != deletesAfterFirst {
		t.Fatalf("clearing an empty cart must not touch storage")
	}
	if !agg.IsEmpty() {
		t.Fatalf("expected empty cart")
	}
}

func TestLoadDiscardsMalformedStoredCart(t *testing.T) {
	kv := newStubKV()
	kv.entries[storage.KeyCart] = "{not json"
	agg := mustAggregator(t, kv)

	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !agg.IsEmpty() {
		t.Fatalf("expected empty cart after malformed load")
	}
	if _, ok := kv.entries[storage.KeyCart]; ok {
		t.Fatalf("malformed entry should be deleted")
	}
}

func TestLoadClampsStoredQuantities(t *testing.T) {
	kv := newStubKV()
	kv.entries[storage.KeyCart] = `[{"id":"sku-1","name":"Apple","price":"100","qty":0}]`
	agg := mustAggregator(t, kv)

	if err := agg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := agg.Lines()[0].Quantity; got != 1 {
		t.Fatalf("expected stored quantity clamped to 1 got %d", got)
	}
}

func TestMutationsSurfaceStorageFailures(t *testing.T) {
	kv := newStubKV()
	agg := mustAggregator(t, kv)
	ctx := context.Background()

	kv.setErr = errors.New("disk full")
	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1"}); pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
}

func TestFailedPersistRevertsInMemoryLines(t *testing.T) {
	kv := newStubKV()
	agg := mustAggregator(t, kv)
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1", UnitPrice: decimal.NewFromInt(100), Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	kv.setErr = errors.New("disk full")
	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-2", Quantity: 1}); err == nil {
		t.Fatalf("expected persist failure")
	}
	if lines := agg.Lines(); len(lines) != 1 || lines[0].IdentityKey != "sku-1" {
		t.Fatalf("unpersisted add must not be served, got %+v", lines)
	}

	if err := agg.SetQuantity(ctx, "sku-1", 5); err == nil {
		t.Fatalf("expected persist failure")
	}
	if got := agg.Lines()[0].Quantity; got != 2 {
		t.Fatalf("unpersisted edit must not be served, got quantity %d", got)
	}

	if err := agg.Remove(ctx, "sku-1"); err == nil {
		t.Fatalf("expected persist failure")
	}
	if agg.IsEmpty() {
		t.Fatalf("unpersisted removal must not be served")
	}

	kv.delErr = errors.New("disk full")
	if err := agg.Clear(ctx); err == nil {
		t.Fatalf("expected clear failure")
	}
	if agg.IsEmpty() {
		t.Fatalf("unpersisted clear must not be served")
	}
	if !agg.Total().Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total must still reflect the persisted snapshot, got %s", agg.Total())
	}
}

func TestTotalRecomputedFromLines(t *testing.T) {
	agg := mustAggregator(t, newStubKV())
	ctx := context.Background()

	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-1", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := agg.Add(ctx, Line{IdentityKey: "sku-2", UnitPrice: decimal.RequireFromString("5.50"), Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := agg.Total(); !got.Equal(decimal.RequireFromString("45.48")) {
		t.Fatalf("expected total 45.48 got %s", got)
	}

	if err := agg.SetQuantity(ctx, "sku-1", 1); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if got := agg.Total(); !got.Equal(decimal.RequireFromString("25.49")) {
		t.Fatalf("expected total 25.49 got %s", got)
	}
}
