// Package httpx carries the response conventions shared by the API
// handlers: RFC7807 problem documents and strict JSON decoding.
package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// problemTypeBase prefixes the problem type URI for this service.
const problemTypeBase = "https://backstage.evergreen.media/problems/"

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response. The type URI is
// derived from the title so clients can switch on it without parsing
// prose.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   problemTypeBase + slugify(title),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

// DecodeJSON decodes a JSON request body into the target struct. Unknown
// fields are rejected so payload drift surfaces at the boundary instead
// of being silently dropped.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
