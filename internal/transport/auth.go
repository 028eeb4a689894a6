package transport

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/model"
)

// HeaderOriginalPath tells the console which view the browser was on when
// it made the request. It decides where a rejected session is sent back to
// after signing in again.
const HeaderOriginalPath = "X-Original-Path"

type sessionIDKey struct{}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// requireSession resolves the session cookie to a live session record. The
// identity, with role permissions expanded, and the backend cookies of the
// session are stored in the request context.
func (a *api) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.Config.Session.CookieName)
		if err != nil || c.Value == "" {
			a.writeUnauthorized(w, r, model.NewUnauthorizedError("Sign in to continue"))
			return
		}

		id, err := a.Tokens.Parse(c.Value)
		if err != nil {
			a.writeUnauthorized(w, r, model.NewUnauthorizedError("Your session is not valid"))
			return
		}

		rec, err := a.Sessions.Get(r.Context(), id)
		if errors.Is(err, session.ErrNotFound) {
			a.recordSessionEvent("expired")
			a.writeUnauthorized(w, r, model.NewUnauthorizedError("Your session has expired"))
			return
		}
		if err != nil {
			a.logger(r).Error("session lookup failed", zap.Error(err))
			WriteError(w, r, model.NewInternalError())
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey{}, rec.ID)
		ctx = model.WithIdentity(ctx, a.resolve(&rec.Identity))
		ctx = backend.WithCredentials(ctx, rec.HTTPCookies())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve expands the roles of id into permissions under the local policy.
func (a *api) resolve(id *model.Identity) *model.Identity {
	if a.Resolver == nil {
		return id.Clone()
	}
	return a.Resolver.Resolve(id)
}

// writeFailure reports err. A backend that rejected the session ends the
// console session too.
func (a *api) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if model.IsUnauthorized(err) {
		a.recordSessionEvent("rejected")
		a.writeUnauthorized(w, r, err)
		return
	}
	WriteError(w, r, err)
}

// writeUnauthorized clears any session the request carried and answers 401
// with the sign-in location the browser moves to after redirectAfterMs.
// Requests made from the sign-in view get a plain 401 and keep their session.
func (a *api) writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody(r, err)
	body.StatusCode = http.StatusUnauthorized
	body.Code = model.ErrUnauthorized

	original := r.Header.Get(HeaderOriginalPath)
	signIn := a.Config.Session.SignInPath
	if session.ShouldRedirect(original, signIn, false) {
		a.endSession(w, r)
		body.Redirect = session.SignInURL(signIn, original)
		body.RedirectAfterMs = a.Config.Session.RedirectDelay.Milliseconds()
	}
	WriteJSON(w, http.StatusUnauthorized, body)
}

// endSession deletes the server-side session of the request, if any, and
// expires the cookie.
func (a *api) endSession(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFrom(r.Context())
	if id == "" {
		if c, err := r.Cookie(a.Config.Session.CookieName); err == nil && c.Value != "" {
			id, _ = a.Tokens.Parse(c.Value)
		} else {
			return
		}
	}
	if id != "" {
		if err := a.Sessions.Clear(r.Context(), id); err != nil {
			a.logger(r).Warn("clearing session failed", zap.Error(err))
		}
	}
	http.SetCookie(w, a.expiredCookie())
}

func (a *api) sessionCookie(token string, rec session.Record) *http.Cookie {
	return &http.Cookie{
		Name:     a.Config.Session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		Secure:   a.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *api) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.Config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *api) recordSessionEvent(event string) {
	if a.Metrics != nil {
		a.Metrics.RecordSessionEvent(event)
	}
}

func (a *api) logger(r *http.Request) *zap.Logger {
	return observability.RequestLogger(r.Context(), a.Logger)
}
