// Package repository archives finished games.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tecu23/chess-clock/pkg/clock"
)

// ErrGameNotFound is returned when no archived game has the requested ID
var ErrGameNotFound = errors.New("game not found")

// DefaultListLimit bounds ListGames when no limit is given
const DefaultListLimit = 20

// GameRecord is the outcome of one finished game
type GameRecord struct {
	ID               uuid.UUID
	GameID           uuid.UUID
	Preset           clock.Preset
	Winner           clock.Player
	Reason           string
	Player1Remaining time.Duration
	Player2Remaining time.Duration
	Player1Moves     int
	Player2Moves     int
	MoveList         []string
	FinishedAt       time.Time
}

// GameRepository stores finished games
type GameRepository interface {
	SaveGame(ctx context.Context, record GameRecord) error
	GetGame(ctx context.Context, id uuid.UUID) (GameRecord, error)
	// ListGames returns the most recently finished games first
	ListGames(ctx context.Context, limit int) ([]GameRecord, error)
	Close() error
}

func validateRecord(record GameRecord) error {
	if record.ID == uuid.Nil {
		return errors.New("record id is required")
	}
	if !record.Winner.Valid() {
		return errors.New("record winner is required")
	}
	if err := record.Preset.Validate(); err != nil {
		return err
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
