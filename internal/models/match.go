package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const BoardSize = 8

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

type Cell int

const (
	CellEmpty Cell = iota
	CellManA
	CellManB
	CellKingA
	CellKingB
)

type Board [BoardSize][BoardSize]Cell

type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusFinished  MatchStatus = "finished"
	MatchStatusAbandoned MatchStatus = "abandoned"
)

type MatchPlayer struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Side        Side   `json:"side"`
}

type Emoji struct {
	Emoji    string    `json:"emoji"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

type MatchSession struct {
	ID        string          `json:"id"`
	Players   [2]MatchPlayer  `json:"players"`
	Board     Board           `json:"board"`
	Turn      Side            `json:"turn"`
	Status    MatchStatus     `json:"status"`
	Winner    Side            `json:"winner,omitempty"`
	Stake     decimal.Decimal `json:"stake"`
	Reward    decimal.Decimal `json:"reward"`
	LastEmoji *Emoji          `json:"last_emoji,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// NewBoard returns the opening position: side B men on the three top rows, side A men on the three bottom rows.
func NewBoard() Board {
	var b Board
	for row := 0; row < BoardSize; row++ {
		var piece Cell
		switch {
		case row <= 2:
			piece = CellManB
		case row >= 5:
			piece = CellManA
		default:
			continue
		}
		for col := 0; col < BoardSize; col++ {
			if (row+col)%2 == 1 {
				b[row][col] = piece
			}
		}
	}
	return b
}

func (b Board) Validate() error {
	for row := range b {
		for col, c := range b[row] {
			if c < CellEmpty || c > CellKingB {
				return fmt.Errorf("%w: cell (%d,%d) has value %d", ErrInvalidBoard, row, col, c)
			}
		}
	}
	return nil
}

// NewMatchSession pairs two players; the first entrant plays side A and moves first.
func NewMatchSession(id string, first, second MatchPlayer, stake, reward decimal.Decimal, now time.Time) *MatchSession {
	first.Side = SideA
	second.Side = SideB
	return &MatchSession{
		ID:        id,
		Players:   [2]MatchPlayer{first, second},
		Board:     NewBoard(),
		Turn:      SideA,
		Status:    MatchStatusActive,
		Stake:     stake,
		Reward:    reward,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *MatchSession) IsActive() bool {
	return m.Status == MatchStatusActive
}

func (m *MatchSession) Player(playerID string) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

func (m *MatchSession) PlayerBySide(side Side) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.Side == side {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

// ApplyMove stores the client supplied board. A winner ends the match.
func (m *MatchSession) ApplyMove(playerID string, board Board, nextTurn, winner Side, now time.Time) error {
	if !m.IsActive() {
		return ErrMatchNotActive
	}
	if _, ok := m.Player(playerID); !ok {
		return ErrNotParticipant
	}
	if err := board.Validate(); err != nil {
		return err
	}
	if winner != "" && !winner.Valid() {
		return fmt.Errorf("%w: winner %q", ErrInvalidBoard, winner)
	}
	if winner == "" && !nextTurn.Valid() {
		return fmt.Errorf("%w: next turn %q", ErrInvalidBoard, nextTurn)
	}

	m.Board = board
	m.UpdatedAt = now
	if nextTurn.Valid() {
		m.Turn = nextTurn
	}
	if winner != "" {
		m.Status = MatchStatusFinished
		m.Winner = winner
		m.EndedAt = &now
	}
	return nil
}

func (m *MatchSession) Abandon(now time.Time) error {
	if !m.IsActive() {
		return ErrMatchNotActive
	}
	m.Status = MatchStatusAbandoned
	m.UpdatedAt = now
	m.EndedAt = &now
	return nil
}

func (m *MatchSession) PostEmoji(playerID, emoji string, now time.Time) error {
	if _, ok := m.Player(playerID); !ok {
		return ErrNotParticipant
	}
	m.LastEmoji = &Emoji{Emoji: emoji, SenderID: playerID, SentAt: now}
	m.UpdatedAt = now
	return nil
}
