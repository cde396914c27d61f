package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/result"
)

// listDepartments godoc
// @Summary      List departments
// @Tags         departments
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /departments [get]
func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.departments.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(deps))
}

// createDepartment godoc
// @Summary      Create a department
// @Tags         departments
// @Accept       json
// @Produce      json
// @Param        input  body  domain.DepartmentInput  true  "department"
// @Success      201  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /departments [post]
func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var input domain.DepartmentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	dep, err := h.departments.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusCreated, result.OK(dep))
}

// updateDepartment godoc
// @Summary      Rename a department
// @Tags         departments
// @Accept       json
// @Produce      json
// @Param        id     path  int                     true  "department id"
// @Param        input  body  domain.DepartmentInput  true  "department"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /departments/{id} [patch]
func (h *Handler) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var input domain.DepartmentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	dep, err := h.departments.Update(r.Context(), id, input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(dep))
}

// deleteDepartment godoc
// @Summary      Soft delete a department
// @Description  Refused with 409 while active subscriptions reference it.
// @Tags         departments
// @Produce      json
// @Param        id   path  int  true  "department id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /departments/{id} [delete]
func (h *Handler) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.departments.Delete(r.Context(), id, actorID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK[any](nil))
}

// listServices godoc
// @Summary      List services
// @Tags         services
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /services [get]
func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(services))
}

// createService godoc
// @Summary      Create a service
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        input  body  domain.ServiceInput  true  "service"
// @Success      201  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /services [post]
func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var input domain.ServiceInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	svc, err := h.catalog.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusCreated, result.OK(svc))
}

// updateService godoc
// @Summary      Update a service
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        id     path  string               true  "service id"
// @Param        input  body  domain.ServiceInput  true  "service"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /services/{id} [patch]
func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var input domain.ServiceInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	svc, err := h.catalog.Update(r.Context(), id, input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(svc))
}

// deleteService godoc
// @Summary      Soft delete a service
// @Description  Refused with 409 while active subscriptions reference it.
// @Tags         services
// @Produce      json
// @Param        id   path  string  true  "service id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /services/{id} [delete]
func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.catalog.Delete(r.Context(), id, actorID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK[any](nil))
}
