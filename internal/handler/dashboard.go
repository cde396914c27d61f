package handler

import (
	"net/http"

	"github.com/mmoldabe-dev/subtrack/internal/result"
)

// getDashboard godoc
// @Summary      Dashboard snapshot
// @Description  cards is null when the KPIs could not be computed.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /dashboard [get]
func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(snap))
}

// getKPIs godoc
// @Summary      Spend KPIs of active subscriptions
// @Tags         subscriptions
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /subscriptions/kpi [get]
func (h *Handler) getKPIs(w http.ResponseWriter, r *http.Request) {
	k, err := h.dashboard.KPIs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(k.Cards()))
}

// getTopByPrice godoc
// @Summary      Five most expensive active subscriptions
// @Tags         subscriptions
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /subscriptions/top [get]
func (h *Handler) getTopByPrice(w http.ResponseWriter, r *http.Request) {
	top, err := h.dashboard.TopByPrice(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(top))
}

// getUpcomingRenewals godoc
// @Summary      Upcoming renewals
// @Tags         subscriptions
// @Produce      json
// @Param        days  query  int  false  "window in days, default 30"
// @Success      200  {object}  map[string]any
// @Router       /subscriptions/upcoming [get]
func (h *Handler) getUpcomingRenewals(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query(), "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.dashboard.UpcomingRenewals(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(items))
}

// getSpendByDepartment godoc
// @Summary      Active spend per department
// @Tags         departments
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /departments/spend [get]
func (h *Handler) getSpendByDepartment(w http.ResponseWriter, r *http.Request) {
	spend, err := h.dashboard.SpendByDepartment(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(spend))
}
