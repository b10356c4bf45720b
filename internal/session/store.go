package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/rsainju/pasalmart/internal/storage"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// Identity carries the claims issued alongside the bearer credential.
type Identity struct {
	SubjectID   string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	PictureRef  string `json:"picture"`
}

type cartClearer interface {
	Clear(ctx context.Context) error
}

// Store owns the authenticated identity and bearer credential. It is the
// only component that persists the credential; every mutation writes through
// to durable storage before returning.
type Store struct {
	mu   sync.RWMutex
	kv   storage.KV
	logg *logger.Logger
	cart cartClearer

	credential string
	identity   *Identity
}

// NewStore builds a session store over the durable KV.
func NewStore(kv storage.KV, logg *logger.Logger) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("durable store required")
	}
	return &Store{kv: kv, logg: logg}, nil
}

// BindCart registers the cart cleared on explicit logout. Wired at boot;
// the cart package stays unaware of sessions.
func (s *Store) BindCart(cart cartClearer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart
}

// Load restores the session from durable storage at startup. A malformed
// stored identity is discarded and the store stays unauthenticated; only
// storage failures are reported.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, hasCredential, err := s.kv.Get(ctx, storage.KeyCredential)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credential")
	}
	rawIdentity, hasIdentity, err := s.kv.Get(ctx, storage.KeyIdentity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load identity")
	}

	if !hasCredential || !hasIdentity {
		return nil
	}

	var identity Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "discarding malformed stored identity")
		}
		// The credential goes with it; a bearer token without identity
		// claims must not linger in durable storage.
		_ = s.kv.Delete(ctx, storage.KeyCredential, storage.KeyIdentity)
		return nil
	}

	s.credential = credential
	s.identity = &identity
	return nil
}

// Login persists the credential and identity together. Both writes must
// succeed; on failure the prior durable state is restored and the in-memory
// session is left untouched.
func (s *Store) Login(ctx context.Context, credential string, identity Identity) error {
	if strings.TrimSpace(credential) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "credential is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(identity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode identity")
	}

	priorCredential, hadCredential, err := s.kv.Get(ctx, storage.KeyCredential)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read prior credential")
	}

	if err := s.kv.Set(ctx, storage.KeyCredential, credential); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist credential")
	}
	if err := s.kv.Set(ctx, storage.KeyIdentity, string(encoded)); err != nil {
		if hadCredential {
			_ = s.kv.Set(ctx, storage.KeyCredential, priorCredential)
		} else {
			_ = s.kv.Delete(ctx, storage.KeyCredential)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist identity")
	}

	s.credential = credential
	ident := identity
	s.identity = &ident
	return nil
}

// Logout clears the in-memory session and removes every session-derived
// durable entry, including the cart and pending-purchase scratch state.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.credential = ""
	s.identity = nil
	cart := s.cart
	s.mu.Unlock()

	var errs error
	if err := s.kv.Delete(ctx, storage.KeyCredential, storage.KeyIdentity, storage.KeyPendingPurchase); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete session entries: %w", err))
	}
	if cart != nil {
		if err := cart.Clear(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clear cart: %w", err))
		}
	} else if err := s.kv.Delete(ctx, storage.KeyCart); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete cart entry: %w", err))
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "logout")
	}
	return nil
}

// ExpireCredential destroys the credential and identity after the backend
// rejects the bearer token. The in-flight cart is preserved so the shopper
// can retry after re-authenticating.
func (s *Store) ExpireCredential(ctx context.Context) error {
	s.mu.Lock()
	s.credential = ""
	s.identity = nil
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, storage.KeyCredential, storage.KeyIdentity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire credential")
	}
	return nil
}

// IsAuthenticated reports whether a non-empty credential is held. It never
// touches the network and is safe to use as a synchronous gate.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential != ""
}

// Credential returns the bearer credential, empty when unauthenticated.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Identity returns the stored identity claims.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}
