// Package events publishes domain events about reviews and locations.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Event subjects, relative to the publisher's prefix.
const (
	SubjectReviewCreated   = "reviews.created"
	SubjectReviewUpdated   = "reviews.updated"
	SubjectLocationsMerged = "locations.merged"
)

// Publisher delivers domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// Envelope wraps every published payload.
type Envelope struct {
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ReviewEvent is the payload for review created/updated events.
type ReviewEvent struct {
	ReviewID   int64   `json:"review_id"`
	LocationID int64   `json:"location_id"`
	Rating     float64 `json:"rating"`
	Heat       *int    `json:"heat,omitempty"`
}

// MergeEvent is the payload for locations.merged.
type MergeEvent struct {
	FromID       int64 `json:"from_id"`
	IntoID       int64 `json:"into_id"`
	ReviewsMoved int64 `json:"reviews_moved"`
}

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON envelopes to NATS subjects under a prefix.
type NATSPublisher struct {
	nc     conn
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL            string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// ConnectNATS dials NATS and returns a publisher over the connection.
func ConnectNATS(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	options := []nats.Option{
		nats.Name("ratewings-api"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}
	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(nc conn, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the fully qualified subject for a relative one.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

// Publish marshals payload into an Envelope and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", subject, err)
	}
	full := p.Subject(subject)
	msg, err := json.Marshal(Envelope{Subject: full, OccurredAt: p.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", subject, err)
	}

	if err := p.nc.Publish(full, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", full, err)
	}
	p.logger.DebugContext(ctx, "event published", slog.String("subject", full))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("failed to drain nats connection", slog.String("error", err.Error()))
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Close does nothing.
func (NopPublisher) Close() {}

// Recorder keeps published events in memory. Used in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	// Err, when set, is returned from every Publish call.
	Err error
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Subject string
	Payload any
}

// Publish records the event.
func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{Subject: subject, Payload: payload})
	return nil
}

// Close does nothing.
func (r *Recorder) Close() {}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}
