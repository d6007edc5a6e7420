package messages

import (
	"time"

	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/repository"
)

// Outbound event names
const (
	EventConnected   = "CONNECTED"
	EventPresets     = "PRESETS"
	EventGameCreated = "GAME_CREATED"
	EventClockState  = "CLOCK_STATE"
	EventFeedback    = "FEEDBACK"
	EventGameOver    = "GAME_OVER"
	EventHistory     = "HISTORY"
	EventError       = "ERROR"
)

// OutboundMessage is how we wrap responses before sending
// them to the client
type OutboundMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

type PresetsPayload struct {
	Presets []clock.Preset `json:"presets"`
	Default string         `json:"default"`
}

// GameCreatedPayload represents the payload after a create game event
type GameCreatedPayload struct {
	GameID string            `json:"game_id"`
	State  ClockStatePayload `json:"state"`
}

// PlayerClockPayload is one side of the clock
type PlayerClockPayload struct {
	RemainingMs int64  `json:"remaining_ms"`
	Display     string `json:"display"`
	Moves       int    `json:"moves"`
}

// ClockStatePayload contains the full state of a clock
type ClockStatePayload struct {
	GameID           string             `json:"game_id"`
	Version          uint64             `json:"version"`
	Player1          PlayerClockPayload `json:"player1"`
	Player2          PlayerClockPayload `json:"player2"`
	ActivePlayer     clock.Player       `json:"active_player"`
	LastActivePlayer clock.Player       `json:"last_active_player"`
	Phase            string             `json:"phase"`
	Winner           clock.Player       `json:"winner"`
	Preset           clock.Preset       `json:"preset"`
	InProgress       bool               `json:"in_progress"`
}

// NewClockStatePayload converts an engine snapshot to its wire form
func NewClockStatePayload(gameID string, s clock.Snapshot) ClockStatePayload {
	return ClockStatePayload{
		GameID:           gameID,
		Version:          s.Version,
		Player1:          newPlayerClock(s.Player1),
		Player2:          newPlayerClock(s.Player2),
		ActivePlayer:     s.Active,
		LastActivePlayer: s.LastActive,
		Phase:            s.Phase.String(),
		Winner:           s.Winner,
		Preset:           s.Preset,
		InProgress:       s.InProgress,
	}
}

func newPlayerClock(p clock.PlayerSnapshot) PlayerClockPayload {
	return PlayerClockPayload{
		RemainingMs: p.Remaining.Milliseconds(),
		Display:     clock.FormatClockTime(p.Remaining),
		Moves:       p.Moves,
	}
}

// FeedbackPayload asks the UI to play the cue of a player
type FeedbackPayload struct {
	GameID string       `json:"game_id"`
	Player clock.Player `json:"player"`
}

// Game over reasons
const (
	ReasonTimeForfeit = "time"
	ReasonCheckmate   = "checkmate"
)

type GameOverPayload struct {
	GameID string       `json:"game_id"`
	Winner clock.Player `json:"winner"`
	Reason string       `json:"reason"`
}

// GameRecordPayload is one finished game in the history
type GameRecordPayload struct {
	ID          string       `json:"id"`
	GameID      string       `json:"game_id"`
	Preset      clock.Preset `json:"preset"`
	Winner      clock.Player `json:"winner"`
	Reason      string       `json:"reason"`
	Player1Ms   int64        `json:"player1_ms"`
	Player2Ms   int64        `json:"player2_ms"`
	Player1Move int          `json:"player1_moves"`
	Player2Move int          `json:"player2_moves"`
	MoveList    []string     `json:"move_list,omitempty"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// NewGameRecordPayload converts an archived game to its wire form
func NewGameRecordPayload(r repository.GameRecord) GameRecordPayload {
	return GameRecordPayload{
		ID:          r.ID.String(),
		GameID:      r.GameID.String(),
		Preset:      r.Preset,
		Winner:      r.Winner,
		Reason:      r.Reason,
		Player1Ms:   r.Player1Remaining.Milliseconds(),
		Player2Ms:   r.Player2Remaining.Milliseconds(),
		Player1Move: r.Player1Moves,
		Player2Move: r.Player2Moves,
		MoveList:    r.MoveList,
		FinishedAt:  r.FinishedAt,
	}
}

type HistoryPayload struct {
	Games []GameRecordPayload `json:"games"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}
