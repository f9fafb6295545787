// Package telemetry provides the supplemental observability surface
// SPEC_FULL.md §4.9 adds on top of spec.md's audit/metric rows: a
// best-effort NATS event fan-out and Prometheus metrics export.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/research-platform/imagedesc-core/internal/logger"
)

// RewardSelectedEvent is published to "rewards.selected" whenever the
// reward service records a winner, for downstream payout tooling that
// shouldn't have to poll reward_winners.
type RewardSelectedEvent struct {
	ParticipantID string    `json:"participant_id"`
	RewardAmount  int64     `json:"reward_amount"`
	SelectedAt    time.Time `json:"selected_at"`
}

// Publisher is the best-effort event fan-out spec.md's audit events already
// cover at the storage layer; this is an additional, non-authoritative
// notification channel. A nil *Publisher is a valid no-op, matching the
// teacher's events stub pattern for deployments without a message bus.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials a NATS server. An empty url disables the publisher
// entirely; callers get a non-nil *Publisher whose Publish calls are no-ops.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	conn, err := nats.Connect(url, nats.Name("imagedesc-core"), nats.MaxReconnects(5))
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// Close closes the underlying connection, if any, without draining it.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

// PublishRewardSelected best-effort publishes a reward-selected event.
// Failures are logged, never returned, consistent with spec.md §4.9's
// treatment of application-emitted events as non-authoritative.
func (p *Publisher) PublishRewardSelected(event RewardSelectedEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Telemetry().Warn().Err(err).Msg("failed to marshal reward.selected event")
		return
	}
	if err := p.conn.Publish("rewards.selected", data); err != nil {
		logger.Telemetry().Warn().Err(err).Msg("failed to publish rewards.selected event")
	}
}
