package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Message    string // resolved from the body, may be empty
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API Error: %d - %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well-known statuses onto the shared sentinels.
func (e *Error) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode >= http.StatusInternalServerError:
		return apperrors.ErrInternal
	}
	return nil
}

func IsUnauthorized(err error) bool {
	var apiErr *Error
	return apperrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// MessageOr returns the backend's message for err, or fallback when the
// error carries none.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if apperrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func newError(status int, body []byte) *Error {
	return &Error{StatusCode: status, Message: resolveMessage(status, body)}
}

// resolveMessage picks the human readable text out of an error body. A 422
// validation list is flattened to "loc.path: msg, ...".
func resolveMessage(status int, body []byte) string {
	var eb ErrorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return ""
	}

	switch detail := eb.Detail.(type) {
	case string:
		if detail != "" {
			return detail
		}
	case []any:
		if status == http.StatusUnprocessableEntity {
			if msg := joinFieldErrors(detail); msg != "" {
				return msg
			}
		}
	}
	return eb.Message
}

func joinFieldErrors(detail []any) string {
	raw, err := json.Marshal(detail)
	if err != nil {
		return ""
	}
	var fields []FieldError
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		loc := make([]string, 0, len(f.Loc))
		for _, l := range f.Loc {
			loc = append(loc, fmt.Sprint(l))
		}
		parts = append(parts, strings.Join(loc, ".")+": "+f.Msg)
	}
	return strings.Join(parts, ", ")
}
