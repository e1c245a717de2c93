package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseStateMessage(t *testing.T) {
	payload := []byte(`{
		"status": "RUNNING",
		"metadata": {"arena": "A", "zone": 2, "mode": "COMP", "game_timeout": 150}
	}`)

	meta, err := parseStateMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "A", meta.Arena)
	assert.Equal(t, 2, meta.Zone)
	assert.Equal(t, ModeComp, meta.Mode)
	require.NotNil(t, meta.GameTimeout)
	assert.Equal(t, 150, *meta.GameTimeout)
}

func TestParseStateMessageRejectsBadPayloads(t *testing.T) {
	_, err := parseStateMessage([]byte(`not json`))
	require.Error(t, err)

	_, err = parseStateMessage([]byte(`{"status": "STOPPED"}`))
	require.Error(t, err, "a state message without metadata is rejected")
}

func TestMetadataNotReady(t *testing.T) {
	c := &Client{logger: zap.NewNop(), startCh: make(chan struct{}, 1)}

	_, err := c.Metadata()
	require.ErrorIs(t, err, ErrMetadataNotReady)
}

func TestWaitStart(t *testing.T) {
	c := &Client{logger: zap.NewNop(), startCh: make(chan struct{}, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.WaitStart(ctx), "no signal means the context deadline wins")

	c.signalStart()
	require.NoError(t, c.WaitStart(context.Background()))
}
