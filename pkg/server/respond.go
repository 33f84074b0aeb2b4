package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// apiError is an error with an HTTP status and a stable machine code. It is
// rendered as {"error": {"status", "code", "message"}}.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(format string, args ...any) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: what + " not found"}
}

func unsupportedMediaType() *apiError {
	return &apiError{
		Status:  http.StatusUnsupportedMediaType,
		Code:    "UNSUPPORTED_MEDIA_TYPE",
		Message: "Use Content-Type: application/json",
	}
}

func unauthorized(msg string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: msg}
}

func forbidden(msg string) *apiError {
	return &apiError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: msg}
}

func badGateway(msg string) *apiError {
	return &apiError{Status: http.StatusBadGateway, Code: "BAD_GATEWAY", Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apiError)
	if !ok {
		apiErr = &apiError{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: "Internal Server Error",
		}
	}
	writeJSON(w, apiErr.Status, map[string]any{"error": apiErr})
}

// toMap round-trips a response struct through JSON so extra keys can be
// merged in next to its fields.
func toMap(v any) map[string]any {
	b, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// readJSON enforces a JSON content type and decodes the body into a map, so
// handlers can distinguish absent fields from explicit nulls.
func readJSON(r *http.Request) (map[string]any, error) {
	ctype := r.Header.Get("Content-Type")
	if !strings.Contains(ctype, "application/json") {
		return nil, unsupportedMediaType()
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return nil, badRequest("Invalid or missing JSON body")
	}
	if data == nil {
		return nil, badRequest("JSON body must be an object")
	}
	return data, nil
}
