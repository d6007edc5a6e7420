package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/chess-clock/pkg/clock"
)

func repositories(t *testing.T) map[string]GameRepository {
	t.Helper()

	logger := zaptest.NewLogger(t)

	sqliteRepo, err := OpenSQLite(filepath.Join(t.TempDir(), "archive", "games.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]GameRepository{
		"memory": NewInMemoryRepository(logger),
		"sqlite": sqliteRepo,
	}
}

func sampleRecord(finishedAt time.Time) GameRecord {
	return GameRecord{
		ID:               uuid.New(),
		GameID:           uuid.New(),
		Preset:           clock.Preset{Name: "3 min | 2 sec", Minutes: 3, IncrementSeconds: 2},
		Winner:           clock.Player2,
		Reason:           "time",
		Player1Remaining: 0,
		Player2Remaining: 42*time.Second + 300*time.Millisecond,
		Player1Moves:     31,
		Player2Moves:     30,
		MoveList:         []string{"e4", "e5", "Nf3"},
		FinishedAt:       finishedAt,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	finished := time.Date(2026, time.March, 3, 18, 30, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			record := sampleRecord(finished)
			require.NoError(t, repo.SaveGame(ctx, record))

			got, err := repo.GetGame(ctx, record.ID)
			require.NoError(t, err)
			assert.Equal(t, record, got)
		})
	}
}

func TestGetMissingGame(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetGame(context.Background(), uuid.New())
			assert.ErrorIs(t, err, ErrGameNotFound)
		})
	}
}

func TestSaveRejectsIncompleteRecords(t *testing.T) {
	finished := time.Date(2026, time.March, 3, 18, 30, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			noID := sampleRecord(finished)
			noID.ID = uuid.Nil
			assert.Error(t, repo.SaveGame(context.Background(), noID))

			noWinner := sampleRecord(finished)
			noWinner.Winner = clock.NoPlayer
			assert.Error(t, repo.SaveGame(context.Background(), noWinner))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.ErrorIs(t, repo.SaveGame(ctx, sampleRecord(finished)), context.Canceled)
		})
	}
}

func TestListGamesNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			var ids []uuid.UUID
			for i := 0; i < 3; i++ {
				record := sampleRecord(base.Add(time.Duration(i) * time.Hour))
				record.MoveList = nil
				require.NoError(t, repo.SaveGame(ctx, record))
				ids = append(ids, record.ID)
			}

			games, err := repo.ListGames(ctx, 2)
			require.NoError(t, err)
			require.Len(t, games, 2)
			assert.Equal(t, ids[2], games[0].ID)
			assert.Equal(t, ids[1], games[1].ID)
			assert.Nil(t, games[0].MoveList)

			games, err = repo.ListGames(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, games, 3)
		})
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(" ", zaptest.NewLogger(t))
	assert.Error(t, err)
}
