package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/store"
)

type ListingsHandler struct {
	DB *store.DB
}

func (h ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ListingFilter{
		Source:     q.Get("source"),
		AlertLevel: q.Get("alert_level"),
		Status:     q.Get("status"),
		Search:     q.Get("q"),
		Sort:       q.Get("sort"),
		Desc:       q.Get("order") != "asc",
	}
	f.MinScore, _ = strconv.Atoi(q.Get("min_score"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	listings, err := h.DB.ListListings(r.Context(), f)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, codeDBError, err.Error())
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	writeJSON(w, listings)
}

// GetByPath serves /listings/{id} and /listings/{id}/notifications.
func (h ListingsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/listings/")
	id64, sub, ok := splitIDPath(rest)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, codeBadID, "invalid listing id")
		return
	}

	switch sub {
	case "":
		l, err := h.DB.GetListing(r.Context(), id64)
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, r, http.StatusNotFound, codeNotFound, "listing not found")
			return
		}
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, codeDBError, err.Error())
			return
		}
		writeJSON(w, l)
	case "notifications":
		recs, err := h.DB.ListNotifications(r.Context(), id64, 100)
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, codeDBError, err.Error())
			return
		}
		if recs == nil {
			recs = []*domain.NotificationRecord{}
		}
		writeJSON(w, recs)
	default:
		WriteError(w, r, http.StatusNotFound, codeNotFound, "unknown resource")
	}
}

// SetStatusByPath serves PATCH /listings/{id}/status.
func (h ListingsHandler) SetStatusByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/listings/")
	id64, sub, ok := splitIDPath(rest)
	if !ok || sub != "status" {
		WriteError(w, r, http.StatusBadRequest, codeBadPath, "expected /listings/{id}/status")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, codeBadJSON, err.Error())
		return
	}
	switch domain.Status(body.Status) {
	case domain.StatusNew, domain.StatusContacted, domain.StatusExpired, domain.StatusIgnored:
	default:
		WriteError(w, r, http.StatusBadRequest, codeBadStatus, "unknown status "+body.Status)
		return
	}

	err := h.DB.SetListingStatus(r.Context(), id64, domain.Status(body.Status))
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, http.StatusNotFound, codeNotFound, "listing not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, codeDBError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// splitIDPath parses "123" or "123/sub" into its parts.
func splitIDPath(rest string) (id int64, sub string, ok bool) {
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	if len(parts) == 2 {
		sub = parts[1]
	}
	return id, sub, true
}
