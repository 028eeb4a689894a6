package transport

import (
	"net/http"
)

func (a *api) handleNavigation(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, a.Menu.Build(identityOf(r)))
}

func (a *api) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := a.Dashboard.Load(r.Context(), identityOf(r))
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, view)
}
