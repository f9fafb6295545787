package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectEmptyURLIsNoOp(t *testing.T) {
	p, err := Connect("")
	require.NoError(t, err)
	require.NotNil(t, p)

	// A disconnected publisher never panics and never blocks.
	p.PublishRewardSelected(RewardSelectedEvent{
		ParticipantID: "participant-1",
		RewardAmount:  10,
		SelectedAt:    time.Now(),
	})
	p.Close()
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.PublishRewardSelected(RewardSelectedEvent{ParticipantID: "x"})
		p.Close()
	})
}
