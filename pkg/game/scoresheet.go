package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/corentings/chess/v2"
)

// ErrIllegalMove is returned when a recorded move is not legal in the current position
var ErrIllegalMove = errors.New("illegal move")

// Scoresheet records the moves played alongside the clock and keeps the
// board position so presses can carry a move.
type Scoresheet struct {
	mu    sync.Mutex
	board *chess.Game
	moves []string
}

// NewScoresheet starts from the standard initial position
func NewScoresheet() *Scoresheet {
	return &Scoresheet{board: chess.NewGame()}
}

// Record plays move (algebraic notation) for the side to move
func (s *Scoresheet) Record(move string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.PushMove(move, nil); err != nil {
		return fmt.Errorf("%w %q: %v", ErrIllegalMove, move, err)
	}
	s.moves = append(s.moves, move)

	return nil
}

// Undo takes back the last recorded move
func (s *Scoresheet) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.moves) == 0 {
		return
	}

	s.moves = s.moves[:len(s.moves)-1]
	s.board = chess.NewGame()
	for _, m := range s.moves {
		// replaying moves that were already accepted cannot fail
		_ = s.board.PushMove(m, nil)
	}
}

// Clear returns to the initial position with no moves
func (s *Scoresheet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.board = chess.NewGame()
	s.moves = nil
}

// WhiteToMove reports whether white is the side to move
func (s *Scoresheet) WhiteToMove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Position().Turn() == chess.White
}

// Checkmate reports whether the last move delivered mate
func (s *Scoresheet) Checkmate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Method() == chess.Checkmate
}

// Moves returns a copy of the recorded moves
func (s *Scoresheet) Moves() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.moves...)
}

// FEN returns the current position
func (s *Scoresheet) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.FEN()
}
