package storage

import "context"

// Conceptual keys for the shopper's durable local state. All session-derived
// entries are cleared together on logout.
const (
	KeyCart            = "cart"
	KeyCredential      = "auth_credential"
	KeyIdentity        = "auth_identity"
	KeyPendingPurchase = "pending_purchase"
)

// KV is the durable local store behind the session and cart. Implementations
// must write through before returning so state survives process restarts.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
