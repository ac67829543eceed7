package httpapi

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/store"
)

type ScanHandler struct {
	DB           *store.DB
	ScanStatus   *atomic.Value // httpapi.ScanStatus
	RunCycle     func()
	CycleRunning func() bool
}

func (h ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.ScanStatus.Load().(ScanStatus)
	st.Running = h.CycleRunning()
	writeJSON(w, st)
}

func (h ScanHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.CycleRunning() {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	st := h.ScanStatus.Load().(ScanStatus)
	h.ScanStatus.Store(ScanStatus{
		LastRunAt: time.Now().Format(time.RFC3339),
		Running:   true,
		LastOkAt:  st.LastOkAt,
	})

	go func() {
		h.RunCycle()

		now := time.Now().Format(time.RFC3339)
		next := h.ScanStatus.Load().(ScanStatus)
		next.Running = false
		next.LastRunAt = now
		next.LastOkAt = now
		h.ScanStatus.Store(next)
	}()

	writeJSON(w, map[string]any{"ok": true})
}

func (h ScanHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.DB.ListScans(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, codeDBError, err.Error())
		return
	}
	if recs == nil {
		recs = []*domain.ScanRecord{}
	}
	writeJSON(w, recs)
}
