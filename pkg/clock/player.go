package clock

import "strconv"

// Player identifies one side of the clock
type Player int

// The two players. NoPlayer marks the absence of an active player.
const (
	NoPlayer Player = iota
	Player1
	Player2
)

// Opp returns the opposite player for the given player.
func (p Player) Opp() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	}

	return NoPlayer
}

// Valid reports whether p names one of the two players
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

func (p Player) String() string {
	if !p.Valid() {
		return "none"
	}
	return "player" + strconv.Itoa(int(p))
}

func (p Player) index() int {
	return int(p) - 1
}
