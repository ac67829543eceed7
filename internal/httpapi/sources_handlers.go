package httpapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/health"
)

type SourcesHandler struct {
	Tracker *health.Tracker
	CfgVal  *atomic.Value // config.Config
}

type sourceView struct {
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	LastFailureAt string `json:"last_failure_at,omitempty"`
	NextRetryAt   string `json:"next_retry_at,omitempty"`
	BackoffSec    int    `json:"backoff_seconds"`
}

// List reports each tracked source's breaker state; detail trackers show up
// under their "<source>#detail" key.
func (h SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)

	var out []sourceView
	for _, st := range h.Tracker.States() {
		v := sourceView{
			Name:       st.Name,
			Enabled:    cfg.Sources[st.Name].Enabled,
			State:      string(st.State),
			Failures:   st.Failures,
			BackoffSec: int(st.Backoff / time.Second),
		}
		if !st.LastFailureAt.IsZero() {
			v.LastFailureAt = st.LastFailureAt.Format(time.RFC3339)
		}
		if !st.NextRetryAt.IsZero() {
			v.NextRetryAt = st.NextRetryAt.Format(time.RFC3339)
		}
		out = append(out, v)
	}
	if out == nil {
		out = []sourceView{}
	}
	writeJSON(w, out)
}
