// Package result defines the response envelope shared by every endpoint:
// {ok:true, data, meta?} on success and {ok:false, error:{message},
// statusCode} on failure.
package result

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
)

type ErrorBody struct {
	Message string `json:"message"`
}

// Result is the success envelope. Data is always present, so zero counts
// and empty lists still reach the caller.
type Result[T any] struct {
	OK   bool             `json:"ok"`
	Data T                `json:"data"`
	Meta *domain.PageMeta `json:"meta,omitempty"`
}

// Failure is the error envelope.
type Failure struct {
	OK         bool      `json:"ok"`
	Error      ErrorBody `json:"error"`
	StatusCode int       `json:"statusCode"`
}

func OK[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

func Page[T any](data T, meta domain.PageMeta) Result[T] {
	return Result[T]{OK: true, Data: data, Meta: &meta}
}

// Fail builds a failure envelope. Internal errors never expose their cause.
func Fail(err error) Failure {
	return Failure{
		Error:      ErrorBody{Message: domain.PublicMessage(err)},
		StatusCode: domain.KindOf(err).StatusCode(),
	}
}

// Write encodes r with status.
func Write[T any](w http.ResponseWriter, status int, r Result[T]) {
	writeJSON(w, status, r)
}

// WriteError writes the failure envelope for err, using the status hinted
// by its kind.
func WriteError(w http.ResponseWriter, err error) {
	f := Fail(err)
	writeJSON(w, f.StatusCode, f)
}

// WriteStatus writes a failure envelope for transport-level rejections
// such as 401 and 403 that have no domain kind.
func WriteStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Failure{Error: ErrorBody{Message: message}, StatusCode: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}
