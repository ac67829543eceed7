// Package notify fans a scored listing out to its configured channels.
// Delivery failures are recorded, never retried; the next cycle does not
// renotify because the fingerprint is already known.
package notify

import (
	"context"
	"log"
	"time"

	"dealscan-engine/internal/domain"
)

// Channel is one delivery backend (Discord webhook, NATS subject, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, l *domain.Listing) error
}

// Result is one channel's delivery outcome for one listing.
type Result struct {
	Channel string
	Status  domain.NotificationStatus
	Err     error
}

// Router picks channels by alert level and dispatches to them in order.
type Router struct {
	routes   map[domain.AlertLevel][]string
	channels map[string]Channel
}

func NewRouter(routes map[domain.AlertLevel][]string) *Router {
	return &Router{
		routes:   routes,
		channels: make(map[string]Channel),
	}
}

func (r *Router) Register(c Channel) {
	r.channels[c.Name()] = c
}

// ChannelsFor returns the channel names routed for a level. An empty slice
// means the level is stored but never pushed.
func (r *Router) ChannelsFor(level domain.AlertLevel) []string {
	return r.routes[level]
}

// Notify delivers the listing on every channel routed for its alert level
// and returns one Result per attempt. A missing channel (configured in a
// route but never registered) is reported as failed.
func (r *Router) Notify(ctx context.Context, l *domain.Listing) []Result {
	names := r.routes[l.AlertLevel]
	if len(names) == 0 {
		return nil
	}

	out := make([]Result, 0, len(names))
	for _, name := range names {
		ch, ok := r.channels[name]
		if !ok {
			out = append(out, Result{Channel: name, Status: domain.NotifyFailed, Err: errUnknownChannel(name)})
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := ch.Send(sendCtx, l)
		cancel()
		if err != nil {
			log.Printf("[notify] %s delivery failed for listing %d: %v", name, l.ID, err)
			out = append(out, Result{Channel: name, Status: domain.NotifyFailed, Err: err})
			continue
		}
		out = append(out, Result{Channel: name, Status: domain.NotifySent})
	}
	return out
}

type errUnknownChannel string

func (e errUnknownChannel) Error() string { return "unknown channel " + string(e) }
