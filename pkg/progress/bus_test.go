package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestBusLast(t *testing.T) {
	bus := NewBus()
	assert.Nil(t, bus.Last())

	bus.Publish(models.ProgressEvent{RunID: "r1", Phase: models.ProgressPhaseLoad})
	bus.Publish(models.ProgressEvent{RunID: "r1", Phase: models.ProgressPhaseScan, Percent: 40})

	last := bus.Last()
	require.NotNil(t, last)
	assert.Equal(t, models.ProgressPhaseScan, last.Phase)
	assert.Equal(t, 40, last.Percent)

	// Last hands out a copy, not the retained event.
	last.Percent = 99
	assert.Equal(t, 40, bus.Last().Percent)
}

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()

	first, cancelFirst := bus.Subscribe(1)
	second, cancelSecond := bus.Subscribe(1)
	defer cancelSecond()

	bus.Publish(models.ProgressEvent{RunID: "r1", Percent: 10})

	assert.Equal(t, 10, (<-first).Percent)
	assert.Equal(t, 10, (<-second).Percent)

	cancelFirst()
	_, open := <-first
	assert.False(t, open)

	// The remaining subscriber keeps receiving.
	bus.Publish(models.ProgressEvent{RunID: "r1", Percent: 20})
	assert.Equal(t, 20, (<-second).Percent)
}

func TestBusSlowSubscriberMissesEvents(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// The buffer holds one event; the second publish must not block.
	bus.Publish(models.ProgressEvent{Percent: 1})
	bus.Publish(models.ProgressEvent{Percent: 2})

	assert.Equal(t, 1, (<-ch).Percent)
	assert.Equal(t, 2, bus.Last().Percent)
	assert.Empty(t, ch)
}
