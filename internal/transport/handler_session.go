package transport

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/model"
)

const maxLoginBody = 16 << 10

// handleLogin signs in against the backend and starts a console session.
// A rejected login is a plain 401: the browser is already on the sign-in
// view.
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds backend.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&creds); err != nil {
		WriteError(w, r, model.NewBadRequestError("Invalid sign-in request"))
		return
	}

	identity, cookies, err := a.Auth.Login(r.Context(), creds)
	if err != nil {
		if model.IsUnauthorized(err) {
			a.recordSessionEvent("sign_in_failed")
		}
		WriteError(w, r, err)
		return
	}

	rec, err := a.Sessions.Create(r.Context(), identity, session.CookiesFrom(cookies))
	if err != nil {
		a.logger(r).Error("creating session failed", zap.Error(err))
		WriteError(w, r, model.NewInternalError())
		return
	}
	token, err := a.Tokens.Issue(rec)
	if err != nil {
		a.logger(r).Error("issuing session token failed", zap.Error(err))
		_ = a.Sessions.Clear(r.Context(), rec.ID)
		WriteError(w, r, model.NewInternalError())
		return
	}

	http.SetCookie(w, a.sessionCookie(token, rec))
	a.recordSessionEvent("sign_in")
	a.logger(r).Info("signed in", zap.String("username", identity.Username))
	WriteData(w, http.StatusOK, a.resolve(&identity))
}

// handleGetSession returns the signed-in identity.
func (a *api) handleGetSession(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, model.IdentityFrom(r.Context()))
}

// handleLogout ends the backend session and the console session.
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Auth.Logout(r.Context()); err != nil {
		a.logger(r).Warn("backend logout failed", zap.Error(err))
	}
	a.endSession(w, r)
	a.recordSessionEvent("sign_out")
	a.logger(r).Info("signed out")
	WriteData[any](w, http.StatusOK, nil)
}

// handleRefreshSession re-reads the identity from the backend so that role
// or permission changes take effect without signing in again.
func (a *api) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	identity, err := a.Auth.Me(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	rec, err := a.Sessions.Refresh(r.Context(), sessionIDFrom(r.Context()), identity)
	if err != nil {
		a.logger(r).Error("refreshing session failed", zap.Error(err))
		WriteError(w, r, model.NewInternalError())
		return
	}
	a.recordSessionEvent("refresh")
	WriteData(w, http.StatusOK, a.resolve(&rec.Identity))
}
