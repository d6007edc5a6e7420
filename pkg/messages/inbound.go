package messages

import (
	"encoding/json"

	"github.com/tecu23/chess-clock/pkg/clock"
)

// Inbound message types
const (
	TypeListPresets  = "LIST_PRESETS"
	TypeCreateGame   = "CREATE_GAME"
	TypeJoinGame     = "JOIN_GAME"
	TypeSwitchTurn   = "SWITCH_TURN"
	TypePause        = "PAUSE"
	TypeResume       = "RESUME"
	TypeReset        = "RESET"
	TypeSelectPreset = "SELECT_PRESET"
	TypeSetSound     = "SET_SOUND"
	TypeListHistory  = "LIST_HISTORY"
)

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PresetChoice picks a time control either by name from the configured list
// or inline
type PresetChoice struct {
	PresetName string        `json:"preset_name,omitempty"`
	Preset     *clock.Preset `json:"preset,omitempty"`
}

// Empty reports whether no preset was given
func (c PresetChoice) Empty() bool {
	return c.PresetName == "" && c.Preset == nil
}

// CreateGamePayload represents the payload for creating a new clock
type CreateGamePayload struct {
	PresetChoice
}

// GamePayload addresses an existing game (JOIN_GAME, PAUSE, RESUME)
type GamePayload struct {
	GameID string `json:"game_id"`
}

// SwitchTurnPayload represents a clock press. Player is the side whose clock
// starts; Move optionally records the move just played.
type SwitchTurnPayload struct {
	GameID string       `json:"game_id"`
	Player clock.Player `json:"player"`
	Move   string       `json:"move,omitempty"`
}

// ResetPayload resets a game, optionally to another preset
type ResetPayload struct {
	GameID string `json:"game_id"`
	PresetChoice
}

// SetSoundPayload toggles feedback cues for a game
type SetSoundPayload struct {
	GameID  string `json:"game_id"`
	Enabled bool   `json:"enabled"`
}

// ListHistoryPayload asks for the most recent finished games
type ListHistoryPayload struct {
	Limit int `json:"limit"`
}
