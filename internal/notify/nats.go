package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"dealscan-engine/internal/domain"
)

// NATS publishes the full scored listing as JSON on one subject, so other
// consumers (dashboards, bots) can react without touching the database.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("dealscan-engine"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if subject == "" {
		subject = "dealscan.alerts"
	}
	return &NATS{conn: conn, subject: subject}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Send(_ context.Context, l *domain.Listing) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	if err := n.conn.Publish(n.subject, body); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Drain() //nolint:errcheck
	}
}
