// Package manager keeps track of the hosted games and archives them when
// they finish.
package manager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/events"
	"github.com/tecu23/chess-clock/pkg/game"
	"github.com/tecu23/chess-clock/pkg/repository"
)

// ErrGameNotFound is returned when no hosted game has the requested ID
var ErrGameNotFound = errors.New("game not found")

// archiveTimeout bounds a single archive write
const archiveTimeout = 5 * time.Second

// Options are the clock settings applied to every created game
type Options struct {
	TickSource    clock.TickSource
	TickPeriod    time.Duration
	PauseFeedback clock.Player
	Sound         bool
}

type Manager struct {
	games map[uuid.UUID]*game.Game
	// watchers counts the connections following each game
	watchers map[uuid.UUID]map[string]bool
	mu       sync.RWMutex

	options    Options
	repository repository.GameRepository
	publisher  *events.Publisher
	logger     *zap.Logger
}

// NewManager creates a new manager archiving finished games into repo
func NewManager(
	repo repository.GameRepository,
	options Options,
	logger *zap.Logger,
	publisher *events.Publisher,
) *Manager {
	manager := &Manager{
		games:      make(map[uuid.UUID]*game.Game),
		watchers:   make(map[uuid.UUID]map[string]bool),
		options:    options,
		repository: repo,
		logger:     logger,
		publisher:  publisher,
	}

	// Set up event handlers
	manager.setupEventHandlers()

	return manager
}

// setupEventHandlers sets up event handlers for the game manager
func (m *Manager) setupEventHandlers() {
	// Handle connection closed events
	m.publisher.Subscribe(events.EventConnectionClosed, func(event events.Event) {
		payload, ok := event.Payload.(map[string]string)
		if !ok {
			m.logger.Error("Invalid connection closed payload type")
			return
		}

		m.Unwatch(payload["connection_id"])
	})

	// Archive finished games
	m.publisher.Subscribe(events.EventGameOver, func(event events.Event) {
		outcome, ok := event.Payload.(game.Outcome)
		if !ok {
			m.logger.Error("Invalid game over payload type")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := m.repository.SaveGame(ctx, outcome.Record); err != nil {
			m.logger.Error("failed to archive game",
				zap.String("game_id", event.GameID),
				zap.Error(err),
			)
			return
		}

		m.logger.Info("archived game",
			zap.String("game_id", event.GameID),
			zap.Stringer("winner", outcome.Winner),
			zap.String("reason", outcome.Reason),
		)
	})
}

// CreateGame creates a new hosted game with the given preset and registers it.
func (m *Manager) CreateGame(preset clock.Preset) (*game.Game, error) {
	g, err := game.CreateGame(game.CreateGameParams{
		GameID:        uuid.New(),
		Preset:        preset,
		TickSource:    m.options.TickSource,
		TickPeriod:    m.options.TickPeriod,
		PauseFeedback: m.options.PauseFeedback,
		Sound:         m.options.Sound,
	}, m.publisher, m.logger)
	if err != nil {
		m.logger.Error("failed to create game", zap.Error(err))
		return nil, err
	}

	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()

	m.logger.Info("created new game",
		zap.String("game_id", g.ID.String()),
		zap.Stringer("preset", preset),
	)

	m.publisher.Publish(events.Event{
		Type:    events.EventGameCreated,
		GameID:  g.ID.String(),
		Payload: g.State(),
	})

	return g, nil
}

// GetGame returns a game by ID
func (m *Manager) GetGame(id uuid.UUID) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// Games returns every hosted game
func (m *Manager) Games() []*game.Game {
	m.mu.RLock()
	games := make([]*game.Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.RUnlock()

	sort.Slice(games, func(i, j int) bool {
		return games[i].ID.String() < games[j].ID.String()
	})

	return games
}

// Watch records that a connection follows a game
func (m *Manager) Watch(id uuid.UUID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[id]; !ok {
		return ErrGameNotFound
	}
	if m.watchers[id] == nil {
		m.watchers[id] = make(map[string]bool)
	}
	m.watchers[id][connectionID] = true

	return nil
}

// Unwatch drops a connection from every game it follows. Running games left
// without watchers are paused, the same way a clock app pauses when it goes
// to the background.
func (m *Manager) Unwatch(connectionID string) {
	var orphaned []*game.Game

	m.mu.Lock()
	for id, conns := range m.watchers {
		if !conns[connectionID] {
			continue
		}
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(m.watchers, id)
			if g, ok := m.games[id]; ok {
				orphaned = append(orphaned, g)
			}
		}
	}
	m.mu.Unlock()

	for _, g := range orphaned {
		if g.Clock.Phase() != clock.PhaseRunning {
			continue
		}
		if err := g.Pause(); err != nil {
			m.logger.Debug("pause on disconnect skipped",
				zap.String("game_id", g.ID.String()),
				zap.Error(err),
			)
			continue
		}
		m.logger.Info("paused game without watchers", zap.String("game_id", g.ID.String()))
	}
}

// History returns the most recently finished games
func (m *Manager) History(ctx context.Context, limit int) ([]repository.GameRecord, error) {
	return m.repository.ListGames(ctx, limit)
}

// RemoveGame stops a game and forgets it
func (m *Manager) RemoveGame(id uuid.UUID) error {
	m.mu.Lock()
	g, ok := m.games[id]
	delete(m.games, id)
	delete(m.watchers, id)
	m.mu.Unlock()

	if !ok {
		return ErrGameNotFound
	}

	g.Terminate()
	m.logger.Info("removed game", zap.String("game_id", id.String()))

	return nil
}

// Shutdown stops every hosted game
func (m *Manager) Shutdown() {
	for _, g := range m.Games() {
		_ = m.RemoveGame(g.ID)
	}
}
