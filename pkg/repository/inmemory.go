package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InMemoryGameRepository in an in-memory implementation of GameRepository
type InMemoryGameRepository struct {
	games  map[uuid.UUID]GameRecord
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemoryGameRepository {
	return &InMemoryGameRepository{
		games:  make(map[uuid.UUID]GameRecord),
		logger: logger,
	}
}

// SaveGame saves a game to the repository
func (r *InMemoryGameRepository) SaveGame(ctx context.Context, record GameRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	record.MoveList = append([]string(nil), record.MoveList...)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.games[record.ID] = record
	r.logger.Debug("archived game", zap.String("record_id", record.ID.String()))

	return nil
}

// GetGame retrieves a game by ID
func (r *InMemoryGameRepository) GetGame(ctx context.Context, id uuid.UUID) (GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return GameRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.games[id]
	if !ok {
		return GameRecord{}, ErrGameNotFound
	}

	return record, nil
}

// ListGames returns the most recently finished games
func (r *InMemoryGameRepository) ListGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	records := make([]GameRecord, 0, len(r.games))
	for _, g := range r.games {
		records = append(records, g)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].FinishedAt.Equal(records[j].FinishedAt) {
			return records[i].ID.String() < records[j].ID.String()
		}
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})

	if limit = normalizeLimit(limit); len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Close is a no-op
func (r *InMemoryGameRepository) Close() error {
	return nil
}
