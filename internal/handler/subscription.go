package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/result"
)

// listSubscriptions godoc
// @Summary      List subscriptions
// @Tags         subscriptions
// @Produce      json
// @Param        status         query  string  false  "ACTIVE, EXPIRED, RENEWAL_PENDING or CANCELLED"
// @Param        service_id     query  string  false  "service id"
// @Param        responsible_id query  string  false  "responsible user id"
// @Param        department_id  query  int     false  "department id"
// @Param        search         query  string  false  "plan substring, case-insensitive"
// @Param        page           query  int     false  "page, 1-based"
// @Param        limit          query  int     false  "page size, max 100"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Router       /subscriptions [get]
func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	filter, err := subscriptionFilterFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	views, meta, err := h.subs.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.Page(views, meta))
}

func subscriptionFilterFrom(r *http.Request) (domain.SubscriptionFilter, error) {
	q := r.URL.Query()
	var (
		f   domain.SubscriptionFilter
		err error
	)

	if s := q.Get("status"); s != "" {
		status := domain.SubscriptionStatus(strings.ToUpper(s))
		if !status.Valid() {
			return f, domain.Validation("invalid status filter")
		}
		f.Status = &status
	}
	if f.ServiceID, err = queryUUID(q, "service_id"); err != nil {
		return f, err
	}
	if f.ResponsibleID, err = queryUUID(q, "responsible_id"); err != nil {
		return f, err
	}
	if s := q.Get("department_id"); s != "" {
		id, err := parseID(s)
		if err != nil {
			return f, domain.Validation("department_id must be a positive integer")
		}
		f.DepartmentID = &id
	}
	f.Search = q.Get("search")
	if f.Page, err = queryInt(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

// getSubscription godoc
// @Summary      Subscription detail
// @Tags         subscriptions
// @Produce      json
// @Param        id   path  string  true  "subscription id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /subscriptions/{id} [get]
func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.subs.GetDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(view))
}

// createSubscription godoc
// @Summary      Create a subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        input  body  domain.CreateSubscriptionInput  true  "subscription"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /subscriptions [post]
func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateSubscriptionInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.subs.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusCreated, result.OK(view))
}

// updateSubscription godoc
// @Summary      Update a subscription
// @Description  Partial update guarded by the version token. A stale version yields 409.
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        id     path  string                          true  "subscription id"
// @Param        input  body  domain.UpdateSubscriptionInput  true  "fields to change and the expected version"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /subscriptions/{id} [patch]
func (h *Handler) updateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var input domain.UpdateSubscriptionInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.subs.Update(r.Context(), id, input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(view))
}

// deleteSubscription godoc
// @Summary      Soft delete a subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id   path  string  true  "subscription id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /subscriptions/{id} [delete]
func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.subs.SoftDelete(r.Context(), id, actorID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK[any](nil))
}
