package httpapi

import (
	"net/http"
	"sort"
	"strings"
)

// writeJSON is the 200 OK shorthand the handlers use for their happy path.
func writeJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

// methodMux dispatches on the request method and rejects everything else
// with the API error envelope and an Allow header.
func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		w.Header().Set("Allow", allow)
		WriteError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed,
			r.Method+" not supported, allowed: "+allow)
	}
}
