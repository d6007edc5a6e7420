package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/tecu23/chess-clock/pkg/clock"
)

var schemas = []string{
	`CREATE TABLE IF NOT EXISTS game_records (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		preset_name TEXT NOT NULL,
		preset_minutes INTEGER NOT NULL,
		preset_increment INTEGER NOT NULL,
		winner INTEGER NOT NULL,
		reason TEXT NOT NULL,
		player1_remaining_ms INTEGER NOT NULL,
		player2_remaining_ms INTEGER NOT NULL,
		player1_moves INTEGER NOT NULL,
		player2_moves INTEGER NOT NULL,
		move_list TEXT NOT NULL DEFAULT '[]',
		finished_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);`,
}

// SQLiteGameRepository persists finished games in SQLite
type SQLiteGameRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the archive database at path
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteGameRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logger.Info("game archive opened", zap.String("path", cleanPath))

	return &SQLiteGameRepository{db: db, logger: logger}, nil
}

// Close closes the SQLite handle
func (r *SQLiteGameRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveGame inserts one finished game
func (r *SQLiteGameRepository) SaveGame(ctx context.Context, record GameRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	moves := record.MoveList
	if moves == nil {
		moves = []string{}
	}
	moveJSON, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal move list: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO game_records (
			id, game_id, preset_name, preset_minutes, preset_increment, winner, reason,
			player1_remaining_ms, player2_remaining_ms, player1_moves, player2_moves,
			move_list, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		record.GameID.String(),
		record.Preset.Name,
		record.Preset.Minutes,
		record.Preset.IncrementSeconds,
		int(record.Winner),
		record.Reason,
		record.Player1Remaining.Milliseconds(),
		record.Player2Remaining.Milliseconds(),
		record.Player1Moves,
		record.Player2Moves,
		string(moveJSON),
		toMillis(record.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}

	r.logger.Debug("archived game", zap.String("record_id", record.ID.String()))

	return nil
}

const selectColumns = `
	SELECT id, game_id, preset_name, preset_minutes, preset_increment, winner, reason,
		player1_remaining_ms, player2_remaining_ms, player1_moves, player2_moves,
		move_list, finished_at
	FROM game_records`

// GetGame retrieves a game by ID
func (r *SQLiteGameRepository) GetGame(ctx context.Context, id uuid.UUID) (GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return GameRecord{}, err
	}

	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GameRecord{}, ErrGameNotFound
	}
	if err != nil {
		return GameRecord{}, fmt.Errorf("get game record: %w", err)
	}

	return record, nil
}

// ListGames returns the most recently finished games
func (r *SQLiteGameRepository) ListGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		selectColumns+` ORDER BY finished_at DESC, id ASC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list game records: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game records: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (GameRecord, error) {
	var (
		record             GameRecord
		id, gameID         string
		winner             int
		p1Ms, p2Ms         int64
		moveJSON           string
		finishedAt         int64
		presetName         string
		minutes, increment int
	)

	err := s.Scan(
		&id, &gameID, &presetName, &minutes, &increment, &winner, &record.Reason,
		&p1Ms, &p2Ms, &record.Player1Moves, &record.Player2Moves,
		&moveJSON, &finishedAt,
	)
	if err != nil {
		return GameRecord{}, err
	}

	if record.ID, err = uuid.Parse(id); err != nil {
		return GameRecord{}, fmt.Errorf("parse record id: %w", err)
	}
	if record.GameID, err = uuid.Parse(gameID); err != nil {
		return GameRecord{}, fmt.Errorf("parse game id: %w", err)
	}
	if err := json.Unmarshal([]byte(moveJSON), &record.MoveList); err != nil {
		return GameRecord{}, fmt.Errorf("unmarshal move list: %w", err)
	}
	if len(record.MoveList) == 0 {
		record.MoveList = nil
	}

	record.Preset = clock.Preset{Name: presetName, Minutes: minutes, IncrementSeconds: increment}
	record.Winner = clock.Player(winner)
	record.Player1Remaining = time.Duration(p1Ms) * time.Millisecond
	record.Player2Remaining = time.Duration(p2Ms) * time.Millisecond
	record.FinishedAt = fromMillis(finishedAt)

	return record, nil
}
