package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ChristosG/finsmart-client/api"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the backend's error shape: {"detail": "..."}.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorBody{Detail: detail})
}

func writeValidationError(w http.ResponseWriter, fields ...api.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, api.ErrorBody{Detail: fields})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeValidationError(w, api.FieldError{Loc: []any{"body"}, Msg: fmt.Sprintf("invalid JSON: %v", err)})
		return false
	}
	return true
}

// pathID parses the {id} wildcard, answering 422 when it is not numeric.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeValidationError(w, api.FieldError{Loc: []any{"path", "id"}, Msg: "value is not a valid integer"})
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}
