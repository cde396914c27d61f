package handler

import (
	"net/http"
	"strings"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/result"
)

// listLogs godoc
// @Summary      Audit log
// @Tags         logs
// @Produce      json
// @Param        page     query  int     false  "page, 1-based"
// @Param        limit    query  int     false  "page size, max 100"
// @Param        order    query  string  false  "asc or desc (default)"
// @Param        action   query  string  false  "CREATE, UPDATE or DELETE"
// @Param        entity   query  string  false  "SUBSCRIPTION, SERVICE, DEPARTMENT or USER"
// @Param        user_id  query  string  false  "actor id"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      403  {object}  map[string]any
// @Router       /logs [get]
func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries, meta, err := h.auditLog.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.Page(entries, meta))
}

func auditFilterFrom(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	var (
		f   domain.AuditFilter
		err error
	)

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, domain.Validation("order must be asc or desc")
	}
	if s := q.Get("action"); s != "" {
		action := domain.AuditAction(strings.ToUpper(s))
		if !action.Valid() {
			return f, domain.Validation("invalid action filter")
		}
		f.Action = &action
	}
	if s := q.Get("entity"); s != "" {
		entity := domain.EntityType(strings.ToUpper(s))
		if !entity.Valid() {
			return f, domain.Validation("invalid entity filter")
		}
		f.Entity = &entity
	}
	if f.UserID, err = queryUUID(q, "user_id"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}
