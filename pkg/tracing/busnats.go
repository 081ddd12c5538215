package tracing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/negentropy-ai/engine/pkg/models"
)

const spanSubject = "negentropy.traces.spans"

// NATSSink publishes span batches onto a NATS subject, decoupling in-process
// collection from the pod that runs the database flush in multi-pod
// deployments. Publishes are fire-and-forget, matching the "losses are
// acceptable" telemetry posture.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url and publishes under the default subject.
func NewNATSSink(url string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("negentropy-span-exporter"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: spanSubject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Export(_ context.Context, spans []*models.Span) error {
	body, err := json.Marshal(spans)
	if err != nil {
		return fmt.Errorf("marshal span batch: %w", err)
	}
	return s.conn.Publish(s.subject, body)
}

// Close drains pending publishes and closes the connection.
func (s *NATSSink) Close() {
	_ = s.conn.Drain()
}

// SubscribeSpans attaches a consumer for batches published by NATSSink,
// used by the pod that owns the database flush.
func SubscribeSpans(conn *nats.Conn, handle func(spans []*models.Span)) (*nats.Subscription, error) {
	return conn.Subscribe(spanSubject, func(msg *nats.Msg) {
		var spans []*models.Span
		if err := json.Unmarshal(msg.Data, &spans); err != nil {
			return
		}
		handle(spans)
	})
}
