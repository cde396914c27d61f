package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/middleware"
)

const maxBodyBytes = 1 << 20

func parseID(idStr string) (int64, error) {
	if idStr == "" || strings.ContainsAny(idStr, "/.\\-+") {
		return 0, domain.Validation("invalid id format")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("id must be positive integer")
	}

	return id, nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.Validation(field + " must be a valid UUID")
	}
	return id, nil
}

// decodeJSON reads a single JSON document into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("request body is required")
		}
		return domain.Validation(fmt.Sprintf("invalid request body: %s", err.Error()))
	}
	return nil
}

func queryInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, domain.Validation(key + " must be a non-negative integer")
	}
	return v, nil
}

func queryUUID(q url.Values, key string) (*uuid.UUID, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	id, err := parseUUID(s, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// actorID is the authenticated user; routes using it sit behind the
// authenticator, so a missing principal is a wiring bug.
func actorID(r *http.Request) uuid.UUID {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p.UserID
}
