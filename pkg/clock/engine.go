// Package clock implements a two player chess clock: countdown, turn
// alternation, per-move increments, time forfeit and move counting.
package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is the lifecycle state of an Engine
type Phase int

// All the phases an engine moves through
const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhasePaused
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NOT_STARTED"
	case PhaseRunning:
		return "RUNNING"
	case PhasePaused:
		return "PAUSED"
	case PhaseGameOver:
		return "GAME_OVER"
	}
	return "UNKNOWN"
}

// FeedbackSink receives the audio/haptic cue for a player. It is called on the
// goroutine that issued the command and must not block.
type FeedbackSink interface {
	OnFeedback(player Player)
}

// FeedbackFunc adapts a plain function to FeedbackSink
type FeedbackFunc func(player Player)

// OnFeedback calls f(player)
func (f FeedbackFunc) OnFeedback(player Player) {
	f(player)
}

// Observer is called with a fresh snapshot after every state change
type Observer func(Snapshot)

// PlayerSnapshot is the published state of one player
type PlayerSnapshot struct {
	Remaining time.Duration
	Moves     int
}

// Snapshot is a read-only copy of the engine state. Version increases with
// every change so observers can drop out-of-order deliveries.
type Snapshot struct {
	Version    uint64
	Player1    PlayerSnapshot
	Player2    PlayerSnapshot
	Active     Player
	LastActive Player
	Phase      Phase
	Winner     Player
	Preset     Preset
	InProgress bool
}

// Player returns the state of p
func (s Snapshot) Player(p Player) PlayerSnapshot {
	if p == Player2 {
		return s.Player2
	}
	return s.Player1
}

type playerState struct {
	remaining time.Duration
	moves     int
}

// Engine is the clock state machine. All methods are safe for concurrent use;
// commands and tick callbacks are serialised by a single mutex.
type Engine struct {
	mu sync.Mutex

	preset  Preset
	players [2]playerState

	active     Player
	lastActive Player
	winner     Player
	phase      Phase

	ticks  TickSource
	period time.Duration
	ticker Ticker
	// generation tags the live tick subscription; callbacks from older ones are ignored
	generation uint64
	version    uint64

	feedback      FeedbackSink
	observer      Observer
	pauseFeedback Player
	soundEnabled  bool

	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithTickSource sets where ticks come from. Defaults to SystemTicks.
func WithTickSource(ts TickSource) Option {
	return func(e *Engine) { e.ticks = ts }
}

// WithTickPeriod sets how much time one tick removes from the running clock
func WithTickPeriod(d time.Duration) Option {
	return func(e *Engine) { e.period = d }
}

// WithFeedback sets the sink for player feedback cues
func WithFeedback(sink FeedbackSink) Option {
	return func(e *Engine) { e.feedback = sink }
}

// WithObserver sets the snapshot observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithPauseFeedback fixes the feedback channel used on pause. NoPlayer, the
// default, sends it to the player whose clock was paused.
func WithPauseFeedback(p Player) Option {
	return func(e *Engine) { e.pauseFeedback = p }
}

// WithSound enables or mutes feedback cues
func WithSound(enabled bool) Option {
	return func(e *Engine) { e.soundEnabled = enabled }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine with full time on both clocks
func NewEngine(preset Preset, opts ...Option) (*Engine, error) {
	if err := preset.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		preset:       preset,
		ticks:        SystemTicks{},
		period:       DefaultTickPeriod,
		soundEnabled: true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.period <= 0 {
		e.period = DefaultTickPeriod
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	e.resetLocked()

	return e, nil
}

// SwitchTurn hands the move to player to. If another player was running they
// are credited the increment and one move.
func (e *Engine) SwitchTurn(to Player) error {
	return e.apply("switch_turn", func() (Player, error) {
		if !to.Valid() {
			return NoPlayer, reject("switch_turn", ReasonInvalidPlayer)
		}

		switch e.phase {
		case PhaseGameOver:
			return NoPlayer, reject("switch_turn", ReasonGameAlreadyOver)
		case PhasePaused:
			return NoPlayer, reject("switch_turn", ReasonPaused)
		case PhaseRunning:
			if e.active == to {
				return NoPlayer, reject("switch_turn", ReasonAlreadyActive)
			}
		}

		if prev := e.active; prev.Valid() {
			ps := &e.players[prev.index()]
			ps.remaining += e.preset.Increment()
			ps.moves++
		}

		e.activateLocked(to)

		return to, nil
	})
}

// Resume restarts the clock of the player who was running before the pause.
// No increment is credited.
func (e *Engine) Resume() error {
	return e.apply("resume", func() (Player, error) {
		switch e.phase {
		case PhaseGameOver:
			return NoPlayer, reject("resume", ReasonGameAlreadyOver)
		case PhaseRunning:
			return NoPlayer, reject("resume", ReasonAlreadyActive)
		}
		if e.phase != PhasePaused || !e.lastActive.Valid() {
			return NoPlayer, reject("resume", ReasonNoPriorPlayer)
		}

		e.activateLocked(e.lastActive)

		return e.lastActive, nil
	})
}

// Pause stops the running clock. This is also the hook hosts call when they
// go to the background.
func (e *Engine) Pause() error {
	return e.apply("pause", func() (Player, error) {
		switch e.phase {
		case PhaseGameOver:
			return NoPlayer, reject("pause", ReasonGameAlreadyOver)
		case PhaseNotStarted, PhasePaused:
			return NoPlayer, reject("pause", ReasonNotRunning)
		}

		paused := e.active
		e.lastActive = paused
		e.stopTickingLocked()
		e.active = NoPlayer
		e.phase = PhasePaused

		if e.pauseFeedback.Valid() {
			return e.pauseFeedback, nil
		}
		return paused, nil
	})
}

// Reset returns the engine to NotStarted with full time. A nil preset keeps
// the current one.
func (e *Engine) Reset(preset *Preset) error {
	return e.apply("reset", func() (Player, error) {
		if preset != nil {
			if err := preset.Validate(); err != nil {
				return NoPlayer, reject("reset", ReasonInvalidPreset)
			}
			e.preset = *preset
		}

		e.resetLocked()

		return NoPlayer, nil
	})
}

// SelectPreset changes the time control before the game starts. Once the game
// is under way the host has to confirm with the user and call Reset instead.
func (e *Engine) SelectPreset(preset Preset) error {
	return e.apply("select_preset", func() (Player, error) {
		if err := preset.Validate(); err != nil {
			return NoPlayer, reject("select_preset", ReasonInvalidPreset)
		}
		if e.phase != PhaseNotStarted {
			return NoPlayer, reject("select_preset", ReasonGameInProgress)
		}

		e.preset = preset
		e.resetLocked()

		return NoPlayer, nil
	})
}

// SetSoundEnabled mutes or unmutes feedback cues
func (e *Engine) SetSoundEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.soundEnabled = enabled
}

// Close releases the tick subscription. A running clock is left paused.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseRunning {
		e.lastActive = e.active
		e.active = NoPlayer
		e.phase = PhasePaused
		e.version++
	}
	e.stopTickingLocked()
}

// Snapshot returns the current state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshotLocked()
}

// Phase returns the current phase
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.phase
}

// Preset returns the selected time control
func (e *Engine) Preset() Preset {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.preset
}

// IsGameInProgress reports whether either clock differs from the preset's
// initial time.
func (e *Engine) IsGameInProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.inProgressLocked()
}

// apply runs a command under the lock, then fires feedback and the observer
// once the lock is released.
func (e *Engine) apply(command string, fn func() (Player, error)) error {
	e.mu.Lock()
	cue, err := fn()
	if err != nil {
		phase := e.phase
		e.mu.Unlock()
		e.logger.Debug("command rejected",
			zap.String("command", command),
			zap.Stringer("phase", phase),
			zap.Error(err),
		)
		return err
	}

	if !e.soundEnabled {
		cue = NoPlayer
	}
	e.version++
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Debug("command applied",
		zap.String("command", command),
		zap.Stringer("phase", snap.Phase),
		zap.Stringer("active", snap.Active),
		zap.Duration("player1", snap.Player1.Remaining),
		zap.Duration("player2", snap.Player2.Remaining),
	)

	e.emit(cue, snap)

	return nil
}

func (e *Engine) emit(cue Player, snap Snapshot) {
	if cue.Valid() && e.feedback != nil {
		e.feedback.OnFeedback(cue)
	}
	if e.observer != nil {
		e.observer(snap)
	}
}

func (e *Engine) tick(generation uint64) {
	e.mu.Lock()
	if generation != e.generation || e.phase != PhaseRunning {
		e.mu.Unlock()
		return
	}

	flagged := e.active
	ps := &e.players[flagged.index()]
	ps.remaining -= e.period

	over := ps.remaining <= 0
	if over {
		ps.remaining = 0
		e.stopTickingLocked()
		e.winner = flagged.Opp()
		e.active = NoPlayer
		e.phase = PhaseGameOver
	}

	e.version++
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if over {
		e.logger.Info("flag fell",
			zap.Stringer("player", flagged),
			zap.Stringer("winner", snap.Winner),
		)
	}

	e.emit(NoPlayer, snap)
}

func (e *Engine) activateLocked(p Player) {
	e.active = p
	e.lastActive = p
	e.phase = PhaseRunning

	e.stopTickingLocked()
	generation := e.generation
	e.ticker = e.ticks.Start(e.period, func() { e.tick(generation) })
}

func (e *Engine) stopTickingLocked() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.generation++
}

func (e *Engine) resetLocked() {
	e.stopTickingLocked()

	initial := e.preset.Initial()
	for i := range e.players {
		e.players[i] = playerState{remaining: initial}
	}

	e.active = NoPlayer
	e.lastActive = NoPlayer
	e.winner = NoPlayer
	e.phase = PhaseNotStarted
}

func (e *Engine) inProgressLocked() bool {
	initial := e.preset.Initial()
	return e.players[0].remaining != initial || e.players[1].remaining != initial
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Version: e.version,
		Player1: PlayerSnapshot{
			Remaining: e.players[0].remaining,
			Moves:     e.players[0].moves,
		},
		Player2: PlayerSnapshot{
			Remaining: e.players[1].remaining,
			Moves:     e.players[1].moves,
		},
		Active:     e.active,
		LastActive: e.lastActive,
		Phase:      e.phase,
		Winner:     e.winner,
		Preset:     e.preset,
		InProgress: e.inProgressLocked(),
	}
}
