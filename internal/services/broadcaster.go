package services

import (
	"context"

	"lulacoin-miner-backend/internal/models"
)

// Broadcaster pushes state changes to connected clients.
type Broadcaster interface {
	BroadcastLedgerUpdate(ledger *models.Ledger)
	BroadcastMatchFound(match *models.MatchSession)
	BroadcastMatchUpdate(match *models.MatchSession)
}

type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastLedgerUpdate(*models.Ledger)      {}
func (NopBroadcaster) BroadcastMatchFound(*models.MatchSession)  {}
func (NopBroadcaster) BroadcastMatchUpdate(*models.MatchSession) {}

// MatchArchive keeps a durable record of matches that reached a terminal state.
type MatchArchive interface {
	ArchiveMatch(ctx context.Context, match *models.MatchSession) error
	PlayerStats(ctx context.Context, playerID string) (models.MatchStats, error)
	RecentMatches(ctx context.Context, playerID string, limit int) ([]*models.MatchSession, error)
}
