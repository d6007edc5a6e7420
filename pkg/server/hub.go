package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-clock/pkg/clock"
	"github.com/tecu23/chess-clock/pkg/events"
	"github.com/tecu23/chess-clock/pkg/game"
	"github.com/tecu23/chess-clock/pkg/manager"
	"github.com/tecu23/chess-clock/pkg/messages"
)

const historyTimeout = 5 * time.Second

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection             // who sent it
	Message messages.InboundMessage // decoded envelope
}

// Hub keeps track of all active connections and the games each one follows.
// Inbound commands are handled one at a time on the Run goroutine; clock
// events are fanned out to followers as they are published.
type Hub struct {
	mu          sync.RWMutex                       // Mutex to protect the connection maps.
	connections map[*Connection]bool               // Registered connections
	followers   map[uuid.UUID]map[*Connection]bool // Connections following each game

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Channel of inbound messages that the hub routes
	quit       chan struct{}
	quitOnce   sync.Once

	gameManager   *manager.Manager
	presets       []clock.Preset
	defaultPreset clock.Preset

	logger *zap.Logger
}

// NewHub creates a new hub
func NewHub(
	gm *manager.Manager,
	presets []clock.Preset,
	defaultPreset clock.Preset,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Hub {
	h := &Hub{
		connections:   make(map[*Connection]bool),
		followers:     make(map[uuid.UUID]map[*Connection]bool),
		register:      make(chan *Connection),
		unregister:    make(chan *Connection),
		inbound:       make(chan InboundHubMessage),
		quit:          make(chan struct{}),
		gameManager:   gm,
		presets:       presets,
		defaultPreset: defaultPreset,
		logger:        logger,
	}

	publisher.Subscribe(events.EventClockUpdated, func(e events.Event) {
		h.broadcast(e.GameID, messages.EventClockState, e.Payload)
	})
	publisher.Subscribe(events.EventFeedback, func(e events.Event) {
		h.broadcast(e.GameID, messages.EventFeedback, e.Payload)
	})
	publisher.Subscribe(events.EventGameOver, func(e events.Event) {
		outcome, ok := e.Payload.(game.Outcome)
		if !ok {
			h.logger.Error("Invalid game over payload type")
			return
		}
		h.broadcast(e.GameID, messages.EventGameOver, messages.GameOverPayload{
			GameID: e.GameID,
			Winner: outcome.Winner,
			Reason: outcome.Reason,
		})
	})
	publisher.Subscribe(events.EventGameRemoved, func(e events.Event) {
		id, err := uuid.Parse(e.GameID)
		if err != nil {
			return
		}
		h.mu.Lock()
		delete(h.followers, id)
		h.mu.Unlock()
	})

	return h
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.handleInbound(msg)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Register adds a connection to the hub
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.quit:
	}
}

// Unregister removes a connection from the hub
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Dispatch queues an inbound message; false means the hub has shut down
func (h *Hub) Dispatch(msg InboundHubMessage) bool {
	select {
	case <-h.quit:
		return false
	default:
	}

	select {
	case h.inbound <- msg:
		return true
	case <-h.quit:
		return false
	}
}

// Connections returns the number of registered connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

// Shutdown stops Run and closes every connection
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn] = true
	count := len(h.connections)
	h.mu.Unlock()

	h.logger.Debug("New connection registered", zap.Int("connections", count))

	h.sendMessage(conn, messages.EventConnected, messages.ConnectedPayload{
		ConnectionID: conn.ID.String(),
	})
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn]; !ok {
		return
	}

	delete(h.connections, conn)
	for id, conns := range h.followers {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.followers, id)
		}
	}
	conn.close()

	h.logger.Debug("Connection unregistered", zap.Int("connections", len(h.connections)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.close()
	}
	h.connections = make(map[*Connection]bool)
	h.followers = make(map[uuid.UUID]map[*Connection]bool)
}

// handleInbound is where you decode or route the message from a client.
func (h *Hub) handleInbound(msg InboundHubMessage) {
	var err error

	switch msg.Message.Type {
	case messages.TypeListPresets:
		h.sendMessage(msg.Conn, messages.EventPresets, messages.PresetsPayload{
			Presets: h.presets,
			Default: h.defaultPreset.Name,
		})

	case messages.TypeCreateGame:
		err = h.handleCreateGame(msg)

	case messages.TypeJoinGame:
		var payload messages.GamePayload
		var g *game.Game
		if g, err = h.decodeGame(msg, &payload, &payload.GameID); err == nil {
			h.sendMessage(msg.Conn, messages.EventClockState, g.State())
		}

	case messages.TypeSwitchTurn:
		var payload messages.SwitchTurnPayload
		var g *game.Game
		if g, err = h.decodeGame(msg, &payload, &payload.GameID); err == nil {
			err = g.Press(payload.Player, payload.Move)
		}

	case messages.TypePause:
		var payload messages.GamePayload
		var g *game.Game
		if g, err = h.decodeGame(msg, &payload, &payload.GameID); err == nil {
			err = g.Pause()
		}

	case messages.TypeResume:
		var payload messages.GamePayload
		var g *game.Game
		if g, err = h.decodeGame(msg, &payload, &payload.GameID); err == nil {
			err = g.Resume()
		}

	case messages.TypeReset:
		err = h.handleReset(msg)

	case messages.TypeSelectPreset:
		err = h.handleSelectPreset(msg)

	case messages.TypeSetSound:
		var payload messages.SetSoundPayload
		var g *game.Game
		if g, err = h.decodeGame(msg, &payload, &payload.GameID); err == nil {
			g.SetSound(payload.Enabled)
		}

	case messages.TypeListHistory:
		err = h.handleListHistory(msg)

	default:
		err = fmt.Errorf("unknown message type %q", msg.Message.Type)
	}

	if err != nil {
		h.logger.Debug("inbound message failed",
			zap.String("type", msg.Message.Type),
			zap.String("connection_id", msg.Conn.ID.String()),
			zap.Error(err),
		)
		h.sendError(msg.Conn, err)
	}
}

func (h *Hub) handleCreateGame(msg InboundHubMessage) error {
	var payload messages.CreateGamePayload
	if err := decodePayload(msg.Message, &payload); err != nil {
		return err
	}

	preset := h.defaultPreset
	if !payload.Empty() {
		p, err := h.resolvePreset(payload.PresetChoice)
		if err != nil {
			return err
		}
		preset = p
	}

	g, err := h.gameManager.CreateGame(preset)
	if err != nil {
		return err
	}
	if err := h.follow(msg.Conn, g); err != nil {
		return err
	}

	h.sendMessage(msg.Conn, messages.EventGameCreated, messages.GameCreatedPayload{
		GameID: g.ID.String(),
		State:  g.State(),
	})

	return nil
}

func (h *Hub) handleReset(msg InboundHubMessage) error {
	var payload messages.ResetPayload
	g, err := h.decodeGame(msg, &payload, &payload.GameID)
	if err != nil {
		return err
	}

	var preset *clock.Preset
	if !payload.Empty() {
		p, err := h.resolvePreset(payload.PresetChoice)
		if err != nil {
			return err
		}
		preset = &p
	}

	return g.Reset(preset)
}

func (h *Hub) handleSelectPreset(msg InboundHubMessage) error {
	var payload messages.ResetPayload
	g, err := h.decodeGame(msg, &payload, &payload.GameID)
	if err != nil {
		return err
	}
	if payload.Empty() {
		return errors.New("a preset is required")
	}

	preset, err := h.resolvePreset(payload.PresetChoice)
	if err != nil {
		return err
	}

	return g.SelectPreset(preset)
}

func (h *Hub) handleListHistory(msg InboundHubMessage) error {
	var payload messages.ListHistoryPayload
	if err := decodePayload(msg.Message, &payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	records, err := h.gameManager.History(ctx, payload.Limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	games := make([]messages.GameRecordPayload, 0, len(records))
	for _, r := range records {
		games = append(games, messages.NewGameRecordPayload(r))
	}

	h.sendMessage(msg.Conn, messages.EventHistory, messages.HistoryPayload{Games: games})

	return nil
}

// decodeGame parses the payload into v, looks the addressed game up and makes
// the sender follow it.
func (h *Hub) decodeGame(msg InboundHubMessage, v interface{}, gameID *string) (*game.Game, error) {
	if err := decodePayload(msg.Message, v); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(*gameID)
	if err != nil {
		return nil, fmt.Errorf("invalid game id %q: %w", *gameID, err)
	}

	g, err := h.gameManager.GetGame(id)
	if err != nil {
		return nil, err
	}

	if err := h.follow(msg.Conn, g); err != nil {
		return nil, err
	}

	return g, nil
}

func (h *Hub) follow(conn *Connection, g *game.Game) error {
	if err := h.gameManager.Watch(g.ID, conn.ID.String()); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.followers[g.ID] == nil {
		h.followers[g.ID] = make(map[*Connection]bool)
	}
	h.followers[g.ID][conn] = true

	return nil
}

func (h *Hub) resolvePreset(choice messages.PresetChoice) (clock.Preset, error) {
	if choice.Preset != nil {
		p := *choice.Preset
		if err := p.Validate(); err != nil {
			return clock.Preset{}, err
		}
		if p.Name == "" {
			p.Name = p.String()
		}
		return p, nil
	}

	p, ok := clock.FindPreset(h.presets, choice.PresetName)
	if !ok {
		return clock.Preset{}, fmt.Errorf("unknown preset %q", choice.PresetName)
	}
	return p, nil
}

func (h *Hub) broadcast(gameID string, event string, payload interface{}) {
	id, err := uuid.Parse(gameID)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.followers[id]))
	for conn := range h.followers[id] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg := messages.OutboundMessage{Event: event, Payload: payload}
	for _, conn := range conns {
		conn.SendJSON(msg)
	}
}

func (h *Hub) sendError(conn *Connection, err error) {
	h.sendMessage(conn, messages.EventError, messages.ErrorPayload{
		Message: err.Error(),
		Reason:  errorReason(err),
	})
}

func (h *Hub) sendMessage(conn *Connection, event string, payload interface{}) {
	conn.SendJSON(messages.OutboundMessage{
		Event:   event,
		Payload: payload,
	})
}

func decodePayload(msg messages.InboundMessage, v interface{}) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}

// errorReason maps an error to the code sent to clients
func errorReason(err error) string {
	if reason, ok := clock.ReasonOf(err); ok {
		return string(reason)
	}

	switch {
	case errors.Is(err, game.ErrIllegalMove):
		return "ILLEGAL_MOVE"
	case errors.Is(err, game.ErrGameDecided):
		return "GAME_DECIDED"
	case errors.Is(err, game.ErrNoMoveToRecord):
		return "NO_MOVE_TO_RECORD"
	case errors.Is(err, game.ErrMoveOutOfTurn):
		return "OUT_OF_TURN"
	case errors.Is(err, manager.ErrGameNotFound):
		return "GAME_NOT_FOUND"
	}

	return ""
}
