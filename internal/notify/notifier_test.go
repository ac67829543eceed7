package notify

import (
	"context"
	"errors"
	"testing"

	"dealscan-engine/internal/domain"
)

type stubChannel struct {
	name  string
	err   error
	calls int
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(_ context.Context, _ *domain.Listing) error {
	c.calls++
	return c.err
}

func testRoutes() map[domain.AlertLevel][]string {
	return map[domain.AlertLevel][]string{
		domain.AlertUrgent:      {"discord", "nats"},
		domain.AlertInteresting: {"discord"},
	}
}

func TestNotifyRoutesByLevel(t *testing.T) {
	r := NewRouter(testRoutes())
	discord := &stubChannel{name: "discord"}
	nats := &stubChannel{name: "nats"}
	r.Register(discord)
	r.Register(nats)

	l := &domain.Listing{ID: 1, AlertLevel: domain.AlertInteresting}
	results := r.Notify(context.Background(), l)

	if len(results) != 1 || results[0].Channel != "discord" || results[0].Status != domain.NotifySent {
		t.Fatalf("interesting listing: %+v", results)
	}
	if nats.calls != 0 {
		t.Error("nats invoked for a level it is not routed for")
	}

	l.AlertLevel = domain.AlertUrgent
	results = r.Notify(context.Background(), l)
	if len(results) != 2 {
		t.Fatalf("urgent listing: got %d results, want 2", len(results))
	}
	if nats.calls != 1 {
		t.Errorf("nats calls = %d, want 1", nats.calls)
	}
}

func TestNotifyUnroutedLevelSilent(t *testing.T) {
	r := NewRouter(testRoutes())
	ch := &stubChannel{name: "discord"}
	r.Register(ch)

	l := &domain.Listing{AlertLevel: domain.AlertWatch}
	if results := r.Notify(context.Background(), l); results != nil {
		t.Fatalf("watch listing produced results: %+v", results)
	}
	if ch.calls != 0 {
		t.Error("channel invoked for an unrouted level")
	}
}

func TestNotifyUnknownChannelFails(t *testing.T) {
	// "nats" is routed for urgent but never registered.
	r := NewRouter(testRoutes())
	r.Register(&stubChannel{name: "discord"})

	l := &domain.Listing{AlertLevel: domain.AlertUrgent}
	results := r.Notify(context.Background(), l)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	var failed *Result
	for i := range results {
		if results[i].Channel == "nats" {
			failed = &results[i]
		}
	}
	if failed == nil || failed.Status != domain.NotifyFailed || failed.Err == nil {
		t.Errorf("unregistered channel: %+v", failed)
	}
}

func TestNotifyFailureDoesNotBlockOtherChannels(t *testing.T) {
	r := NewRouter(testRoutes())
	r.Register(&stubChannel{name: "discord", err: errors.New("status 500")})
	nats := &stubChannel{name: "nats"}
	r.Register(nats)

	l := &domain.Listing{AlertLevel: domain.AlertUrgent}
	results := r.Notify(context.Background(), l)

	if results[0].Status != domain.NotifyFailed || results[0].Err == nil {
		t.Errorf("discord result: %+v", results[0])
	}
	if results[1].Status != domain.NotifySent {
		t.Errorf("nats result: %+v", results[1])
	}
}

func TestChannelsFor(t *testing.T) {
	r := NewRouter(testRoutes())
	if got := r.ChannelsFor(domain.AlertUrgent); len(got) != 2 {
		t.Errorf("urgent channels = %v", got)
	}
	if got := r.ChannelsFor(domain.AlertArchive); len(got) != 0 {
		t.Errorf("archive channels = %v", got)
	}
}
