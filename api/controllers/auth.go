package controllers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rsainju/pasalmart/api/responses"
	"github.com/rsainju/pasalmart/internal/session"
	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

const defaultViewPath = "/"

// CallbackReceiver consumes the inbound login redirect.
type CallbackReceiver interface {
	Handle(ctx context.Context, values url.Values) (bool, error)
}

// SessionReader exposes the read surface for the session endpoint.
type SessionReader interface {
	IsAuthenticated() bool
	Identity() (session.Identity, bool)
}

// SessionEnder tears the session down on explicit logout.
type SessionEnder interface {
	Logout(ctx context.Context) error
}

// AuthCallback processes the login redirect and always returns the shopper
// to the default view, whatever the outcome.
func AuthCallback(receiver CallbackReceiver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if receiver != nil {
			if _, err := receiver.Handle(r.Context(), r.URL.Query()); err != nil && logg != nil {
				logg.Error(r.Context(), "failed to apply login callback", err)
			}
		}
		http.Redirect(w, r, defaultViewPath, http.StatusFound)
	}
}

// AuthLogout destroys the session and every session-derived durable entry.
func AuthLogout(store SessionEnder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		if err := store.Logout(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"loggedOut": true})
	}
}

type sessionInfo struct {
	Authenticated bool              `json:"authenticated"`
	Identity      *session.Identity `json:"identity,omitempty"`
}

// SessionInfo reports the authenticated flag and identity claims.
func SessionInfo(store SessionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		info := sessionInfo{Authenticated: store.IsAuthenticated()}
		if identity, ok := store.Identity(); ok {
			info.Identity = &identity
		}
		responses.WriteSuccess(w, info)
	}
}
