package authcallback

import (
	"context"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rsainju/pasalmart/internal/session"
	"github.com/rsainju/pasalmart/pkg/logger"
)

type stubLoginStore struct {
	logins     int
	credential string
	identity   session.Identity
	err        error
}

func (s *stubLoginStore) Login(ctx context.Context, credential string, identity session.Identity) error {
	if s.err != nil {
		return s.err
	}
	s.logins++
	s.credential = credential
	s.identity = identity
	return nil
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestResolveTokenOnlyTransport(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub":     "u-1",
		"email":   "shopper@example.com",
		"name":    "Shopper",
		"picture": "https://cdn.example.com/p.png",
	})

	delta, ok := Resolve(url.Values{"token": {token}})
	if !ok {
		t.Fatalf("expected usable delta")
	}
	if delta.Credential != token {
		t.Fatalf("credential should be the raw token")
	}
	if delta.Identity.SubjectID != "u-1" || delta.Identity.Email != "shopper@example.com" {
		t.Fatalf("unexpected identity %+v", delta.Identity)
	}
	if delta.Identity.PictureRef != "https://cdn.example.com/p.png" {
		t.Fatalf("unexpected picture %q", delta.Identity.PictureRef)
	}
}

func TestResolveFieldTransport(t *testing.T) {
	values := url.Values{
		"token":   {"opaque-credential"},
		"subject": {"u-2"},
		"email":   {"other@example.com"},
		"name":    {"Other"},
	}

	delta, ok := Resolve(values)
	if !ok {
		t.Fatalf("expected usable delta")
	}
	if delta.Identity.SubjectID != "u-2" || delta.Identity.DisplayName != "Other" {
		t.Fatalf("unexpected identity %+v", delta.Identity)
	}
}

func TestResolveFieldsWinOverEmbeddedClaims(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "embedded", "email": "embedded@example.com"})
	values := url.Values{
		"token": {token},
		"email": {"explicit@example.com"},
	}

	delta, ok := Resolve(values)
	if !ok {
		t.Fatalf("expected usable delta")
	}
	if delta.Identity.Email != "explicit@example.com" {
		t.Fatalf("individual fields must win, got %q", delta.Identity.Email)
	}
	if delta.Identity.SubjectID != "" {
		t.Fatalf("embedded claims must not be mixed in, got %q", delta.Identity.SubjectID)
	}
}

func TestResolveMissingToken(t *testing.T) {
	if _, ok := Resolve(url.Values{}); ok {
		t.Fatalf("missing token must not produce a delta")
	}
	if _, ok := Resolve(url.Values{"token": {"   "}}); ok {
		t.Fatalf("blank token must not produce a delta")
	}
}

func TestResolveUndecodableTokenWithoutFields(t *testing.T) {
	if _, ok := Resolve(url.Values{"token": {"not-a-jwt"}}); ok {
		t.Fatalf("undecodable token with no fields must not produce a delta")
	}
}

func TestHandleLoginExactlyOnce(t *testing.T) {
	store := &stubLoginStore{}
	receiver, err := NewReceiver(store, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("construct receiver: %v", err)
	}

	values := url.Values{"token": {"opaque"}, "subject": {"u-1"}}
	applied, err := receiver.Handle(context.Background(), values)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !applied || store.logins != 1 {
		t.Fatalf("expected exactly one login got %d", store.logins)
	}
	if store.credential != "opaque" {
		t.Fatalf("unexpected credential %q", store.credential)
	}
}

func TestHandleMissingTokenTakesNoAction(t *testing.T) {
	store := &stubLoginStore{}
	receiver, err := NewReceiver(store, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("construct receiver: %v", err)
	}

	applied, err := receiver.Handle(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if applied || store.logins != 0 {
		t.Fatalf("missing token must not touch the session")
	}
}
