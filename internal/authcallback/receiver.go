package authcallback

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rsainju/pasalmart/internal/session"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// Delta is the session change derived from an inbound login redirect.
type Delta struct {
	Credential string
	Identity   session.Identity
}

type loginStore interface {
	Login(ctx context.Context, credential string, identity session.Identity) error
}

// Resolve derives the session delta from the callback parameters. It is a
// pure function: control genuinely left the process before the redirect, so
// no in-memory state from the prior step may be assumed.
//
// Two transports are accepted: a single opaque credential whose identity
// claims are embedded (decoded without verification, the issuing backend
// already verified it), or the credential plus individually issued identity
// fields. The backend contract never settled which is authoritative; when
// both are present the individual fields win.
func Resolve(values url.Values) (Delta, bool) {
	token := strings.TrimSpace(values.Get("token"))
	if token == "" {
		return Delta{}, false
	}

	identity := session.Identity{
		SubjectID:   strings.TrimSpace(values.Get("subject")),
		Email:       strings.TrimSpace(values.Get("email")),
		DisplayName: strings.TrimSpace(values.Get("name")),
	}
	if identity.SubjectID != "" || identity.Email != "" || identity.DisplayName != "" {
		return Delta{Credential: token, Identity: identity}, true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Delta{}, false
	}
	return Delta{
		Credential: token,
		Identity: session.Identity{
			SubjectID:   claimString(claims, "sub"),
			Email:       claimString(claims, "email"),
			DisplayName: claimString(claims, "name"),
			PictureRef:  claimString(claims, "picture"),
		},
	}, true
}

func claimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// Receiver applies callback deltas to the session store.
type Receiver struct {
	store loginStore
	logg  *logger.Logger
}

// NewReceiver builds the callback receiver.
func NewReceiver(store loginStore, logg *logger.Logger) (*Receiver, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Receiver{store: store, logg: logg}, nil
}

// Handle processes the inbound redirect. On a missing or undecodable
// credential no session action is taken; on success Login is called exactly
// once. Either way the caller returns the shopper to the default view.
func (r *Receiver) Handle(ctx context.Context, values url.Values) (bool, error) {
	delta, ok := Resolve(values)
	if !ok {
		r.logg.Warn(ctx, "login callback carried no usable credential")
		return false, nil
	}
	if err := r.store.Login(ctx, delta.Credential, delta.Identity); err != nil {
		return false, err
	}
	ctx = r.logg.WithSubject(ctx, delta.Identity.SubjectID)
	r.logg.Info(ctx, "session established from login callback")
	return true, nil
}
