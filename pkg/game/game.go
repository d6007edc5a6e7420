// Package game hosts one chess clock together with its scoresheet and
// publishes its state on the event bus.
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/events"
	"github.com/tecu23/chess-clock/pkg/messages"
	"github.com/tecu23/chess-clock/pkg/repository"
)

var (
	// ErrGameDecided is returned for clock commands after a checkmate
	ErrGameDecided = errors.New("game already decided")
	// ErrNoMoveToRecord is returned when a move comes with the press that starts the clock
	ErrNoMoveToRecord = errors.New("no move can be recorded before the clock starts")
	// ErrMoveOutOfTurn is returned when the pressing side is not the side to move on the board
	ErrMoveOutOfTurn = errors.New("move played out of turn")
)

// CreateGameParams configures a hosted game
type CreateGameParams struct {
	GameID        uuid.UUID
	Preset        clock.Preset
	TickSource    clock.TickSource
	TickPeriod    time.Duration
	PauseFeedback clock.Player
	Sound         bool
}

// Outcome is published with EventGameOver
type Outcome struct {
	Winner clock.Player
	Reason string
	Record repository.GameRecord
}

// Game is a hosted clock
type Game struct {
	ID    uuid.UUID
	Clock *clock.Engine
	Sheet *Scoresheet

	// white is the player whose clock was started first
	white   clock.Player
	decided bool
	mu      sync.Mutex

	// guards published ordering of snapshots
	publishMu   sync.Mutex
	lastVersion uint64
	lastPhase   clock.Phase

	Publisher *events.Publisher
	Logger    *zap.Logger
}

// CreateGame builds the engine for a new hosted game
func CreateGame(
	params CreateGameParams,
	publisher *events.Publisher,
	logger *zap.Logger,
) (*Game, error) {
	if params.GameID == uuid.Nil {
		params.GameID = uuid.New()
	}

	g := &Game{
		ID:        params.GameID,
		Sheet:     NewScoresheet(),
		Publisher: publisher,
		Logger:    logger.With(zap.String("game_id", params.GameID.String())),
	}

	opts := []clock.Option{
		clock.WithFeedback(clock.FeedbackFunc(g.onFeedback)),
		clock.WithObserver(g.onSnapshot),
		clock.WithPauseFeedback(params.PauseFeedback),
		clock.WithSound(params.Sound),
		clock.WithLogger(g.Logger),
	}
	if params.TickSource != nil {
		opts = append(opts, clock.WithTickSource(params.TickSource))
	}
	if params.TickPeriod > 0 {
		opts = append(opts, clock.WithTickPeriod(params.TickPeriod))
	}

	engine, err := clock.NewEngine(params.Preset, opts...)
	if err != nil {
		return nil, fmt.Errorf("create clock: %w", err)
	}
	g.Clock = engine

	return g, nil
}

// Press starts the clock of player to. A non-empty move is recorded for the
// player whose turn just ended and must be legal.
func (g *Game) Press(to clock.Player, move string) error {
	mover, mated, err := g.press(to, move)
	if err != nil {
		return err
	}

	if mated {
		g.Logger.Info("checkmate", zap.Stringer("winner", mover), zap.String("move", move))
		g.publishOutcome(g.Clock.Snapshot(), mover, messages.ReasonCheckmate)
	}

	return nil
}

func (g *Game) press(to clock.Player, move string) (clock.Player, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided {
		return clock.NoPlayer, false, ErrGameDecided
	}

	snap := g.Clock.Snapshot()

	if move == "" {
		if err := g.Clock.SwitchTurn(to); err != nil {
			return clock.NoPlayer, false, err
		}
		if snap.Phase == clock.PhaseNotStarted {
			g.white = to
		}
		return clock.NoPlayer, false, nil
	}

	if snap.Phase == clock.PhaseNotStarted {
		return clock.NoPlayer, false, ErrNoMoveToRecord
	}
	if err := pressRejection(snap, to); err != nil {
		return clock.NoPlayer, false, err
	}

	mover := snap.Active
	if (mover == g.white) != g.Sheet.WhiteToMove() {
		return clock.NoPlayer, false, ErrMoveOutOfTurn
	}
	if err := g.Sheet.Record(move); err != nil {
		return clock.NoPlayer, false, err
	}

	if g.Sheet.Checkmate() {
		// the mated side's clock never starts
		if err := g.Clock.Pause(); err != nil {
			// the flag fell before the mate was recorded
			g.Sheet.Undo()
			return clock.NoPlayer, false, err
		}
		g.decided = true
		return mover, true, nil
	}

	if err := g.Clock.SwitchTurn(to); err != nil {
		g.Sheet.Undo()
		return clock.NoPlayer, false, err
	}

	g.Logger.Debug("recorded move", zap.String("move", move), zap.Stringer("next", to))

	return clock.NoPlayer, false, nil
}

// pressRejection mirrors the engine's guard so a move is never recorded for a
// press the clock would refuse.
func pressRejection(snap clock.Snapshot, to clock.Player) error {
	var reason clock.Reason
	switch {
	case !to.Valid():
		reason = clock.ReasonInvalidPlayer
	case snap.Phase == clock.PhaseGameOver:
		reason = clock.ReasonGameAlreadyOver
	case snap.Phase == clock.PhasePaused:
		reason = clock.ReasonPaused
	case snap.Active == to:
		reason = clock.ReasonAlreadyActive
	default:
		return nil
	}

	return &clock.RejectedError{Command: "switch_turn", Reason: reason}
}

// Pause stops the running clock
func (g *Game) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.Clock.Pause()
}

// Resume restarts the clock paused last
func (g *Game) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided {
		return ErrGameDecided
	}

	return g.Clock.Resume()
}

// Reset starts over with full time and an empty scoresheet. A nil preset
// keeps the current one.
func (g *Game) Reset(preset *clock.Preset) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Clock.Reset(preset); err != nil {
		return err
	}

	g.Sheet.Clear()
	g.white = clock.NoPlayer
	g.decided = false

	g.Logger.Info("game reset", zap.Stringer("preset", g.Clock.Preset()))

	return nil
}

// SelectPreset changes the time control of a game that has not started
func (g *Game) SelectPreset(preset clock.Preset) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.Clock.SelectPreset(preset)
}

// SetSound mutes or unmutes the feedback cues
func (g *Game) SetSound(enabled bool) {
	g.Clock.SetSoundEnabled(enabled)
}

// State returns the current clock state in wire form
func (g *Game) State() messages.ClockStatePayload {
	return messages.NewClockStatePayload(g.ID.String(), g.Clock.Snapshot())
}

// Terminate stops the clock for good
func (g *Game) Terminate() {
	g.Clock.Close()

	g.Publisher.Publish(events.Event{
		Type:   events.EventGameRemoved,
		GameID: g.ID.String(),
		Payload: map[string]string{
			"game_id": g.ID.String(),
		},
	})
}

func (g *Game) onFeedback(player clock.Player) {
	g.Publisher.Publish(events.Event{
		Type:   events.EventFeedback,
		GameID: g.ID.String(),
		Payload: messages.FeedbackPayload{
			GameID: g.ID.String(),
			Player: player,
		},
	})
}

func (g *Game) onSnapshot(snap clock.Snapshot) {
	g.publishMu.Lock()
	if snap.Version <= g.lastVersion {
		g.publishMu.Unlock()
		return
	}
	flagged := snap.Phase == clock.PhaseGameOver && g.lastPhase != clock.PhaseGameOver
	g.lastVersion = snap.Version
	g.lastPhase = snap.Phase

	g.Publisher.Publish(events.Event{
		Type:    events.EventClockUpdated,
		GameID:  g.ID.String(),
		Payload: messages.NewClockStatePayload(g.ID.String(), snap),
	})
	g.publishMu.Unlock()

	if flagged {
		g.publishOutcome(snap, snap.Winner, messages.ReasonTimeForfeit)
	}
}

// publishOutcome archives the game as of snap. A mating move never starts the
// opponent's clock, so it is counted here.
func (g *Game) publishOutcome(snap clock.Snapshot, winner clock.Player, reason string) {
	if reason == messages.ReasonCheckmate {
		switch winner {
		case clock.Player1:
			snap.Player1.Moves++
		case clock.Player2:
			snap.Player2.Moves++
		}
	}

	outcome := Outcome{
		Winner: winner,
		Reason: reason,
		Record: repository.GameRecord{
			ID:               uuid.New(),
			GameID:           g.ID,
			Preset:           snap.Preset,
			Winner:           winner,
			Reason:           reason,
			Player1Remaining: snap.Player1.Remaining,
			Player2Remaining: snap.Player2.Remaining,
			Player1Moves:     snap.Player1.Moves,
			Player2Moves:     snap.Player2.Moves,
			MoveList:         g.Sheet.Moves(),
			FinishedAt:       time.Now().UTC(),
		},
	}

	g.Publisher.Publish(events.Event{
		Type:    events.EventGameOver,
		GameID:  g.ID.String(),
		Payload: outcome,
	})
}
