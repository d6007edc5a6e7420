package manager

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/events"
	"github.com/tecu23/chess-clock/pkg/repository"
)

func newTestManager(t *testing.T) (*Manager, *clock.ManualTicks, *events.Publisher) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	publisher := events.NewPublisher()
	ticks := clock.NewManualTicks()

	m := NewManager(
		repository.NewInMemoryRepository(logger),
		Options{TickSource: ticks, TickPeriod: time.Second, Sound: true},
		logger,
		publisher,
	)
	t.Cleanup(m.Shutdown)

	return m, ticks, publisher
}

func TestCreateAndGetGame(t *testing.T) {
	m, _, publisher := newTestManager(t)

	var created []string
	publisher.Subscribe(events.EventGameCreated, func(e events.Event) {
		created = append(created, e.GameID)
	})

	g, err := m.CreateGame(clock.Preset{Name: "5 min", Minutes: 5})
	require.NoError(t, err)

	got, err := m.GetGame(g.ID)
	require.NoError(t, err)
	assert.Same(t, g, got)
	assert.Equal(t, []string{g.ID.String()}, created)
	assert.Len(t, m.Games(), 1)

	_, err = m.GetGame(uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = m.CreateGame(clock.Preset{Minutes: -1})
	assert.Error(t, err)
}

func TestFinishedGamesAreArchived(t *testing.T) {
	m, ticks, _ := newTestManager(t)

	g, err := m.CreateGame(clock.Preset{Name: "1 min", Minutes: 1})
	require.NoError(t, err)

	require.NoError(t, g.Press(clock.Player2, ""))
	ticks.Advance(60)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, g.ID, history[0].GameID)
	assert.Equal(t, clock.Player1, history[0].Winner)
	assert.Equal(t, "time", history[0].Reason)
}

func TestUnwatchPausesOrphanedGames(t *testing.T) {
	m, _, publisher := newTestManager(t)

	watched, err := m.CreateGame(clock.Preset{Minutes: 5})
	require.NoError(t, err)
	shared, err := m.CreateGame(clock.Preset{Minutes: 5})
	require.NoError(t, err)

	require.NoError(t, m.Watch(watched.ID, "conn-a"))
	require.NoError(t, m.Watch(shared.ID, "conn-a"))
	require.NoError(t, m.Watch(shared.ID, "conn-b"))
	assert.ErrorIs(t, m.Watch(uuid.New(), "conn-a"), ErrGameNotFound)

	require.NoError(t, watched.Press(clock.Player1, ""))
	require.NoError(t, shared.Press(clock.Player1, ""))

	publisher.Publish(events.Event{
		Type:    events.EventConnectionClosed,
		Payload: map[string]string{"connection_id": "conn-a"},
	})

	assert.Equal(t, clock.PhasePaused, watched.Clock.Phase())
	assert.Equal(t, clock.PhaseRunning, shared.Clock.Phase())

	m.Unwatch("conn-b")
	assert.Equal(t, clock.PhasePaused, shared.Clock.Phase())
}

func TestRemoveGame(t *testing.T) {
	m, ticks, _ := newTestManager(t)

	g, err := m.CreateGame(clock.Preset{Minutes: 5})
	require.NoError(t, err)
	require.NoError(t, g.Press(clock.Player1, ""))

	require.NoError(t, m.RemoveGame(g.ID))
	assert.Equal(t, 0, ticks.Active())
	assert.ErrorIs(t, m.RemoveGame(g.ID), ErrGameNotFound)
	assert.Empty(t, m.Games())
}
