package httpapi

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes. Clients branch on these, so renaming
// one is a breaking API change.
const (
	codeBadID             = "bad_id"
	codeBadJSON           = "bad_json"
	codeBadPath           = "bad_path"
	codeBadStatus         = "bad_status"
	codeDBError           = "db_error"
	codeInternal          = "internal_error"
	codeKeyring           = "keyring_error"
	codeMethodNotAllowed  = "method_not_allowed"
	codeNoAccount         = "no_account"
	codeNotFound          = "not_found"
	codeStreamUnsupported = "stream_unsupported"
)

// APIError is the envelope every non-2xx response carries. The request id
// echoes X-Request-ID so a client-reported failure can be matched against
// the access log.
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the APIError envelope. code should be one of the
// constants above.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}
