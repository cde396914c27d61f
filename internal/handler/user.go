package handler

import (
	"net/http"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/result"
)

// createUser godoc
// @Summary      Create a user account
// @Description  ADMIN only. The new account must change its password on first login.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input  body  domain.UserInput  true  "user"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      403  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /users [post]
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var input domain.UserInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.users.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusCreated, result.OK(u))
}
