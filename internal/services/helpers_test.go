package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/services"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	mr          *miniredis.Miniredis
	clock       *clock.FakeClock
	store       *services.RedisService
	economy     config.EconomyConfig
	mining      *services.MiningService
	matches     *services.MatchService
	queue       *services.MatchmakingQueue
	archive     *recordingArchive
	broadcaster *recordingBroadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clk := clock.NewFakeClock(testStart)
	store := services.NewRedisServiceFromClient(client, clk)
	economy := config.DefaultEconomy()
	logger := zap.NewNop()
	archive := &recordingArchive{}
	broadcaster := &recordingBroadcaster{}

	mining := services.NewMiningService(store, models.DefaultCatalog(), economy, broadcaster, logger)
	matches := services.NewMatchService(store, archive, broadcaster, logger)
	queue := services.NewMatchmakingQueue(store, mining, matches, economy, clk, broadcaster, logger)

	return &testEnv{
		mr:          mr,
		clock:       clk,
		store:       store,
		economy:     economy,
		mining:      mining,
		matches:     matches,
		queue:       queue,
		archive:     archive,
		broadcaster: broadcaster,
	}
}

func player(id string) models.Player {
	return models.Player{ID: id, Username: "name-" + id}
}

// fund sets the player's balance without going through production.
func (e *testEnv) fund(t *testing.T, playerID string, amount int64) {
	t.Helper()
	_, err := e.store.UpdateLedger(context.Background(), playerID, func(_ *services.StateTx, l *models.Ledger) error {
		l.Balance = decimal.NewFromInt(amount)
		return nil
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, playerID string) decimal.Decimal {
	t.Helper()
	l, err := e.store.GetLedger(context.Background(), playerID)
	require.NoError(t, err)
	return l.Balance
}

type recordingArchive struct {
	mu       sync.Mutex
	archived []*models.MatchSession
}

func (a *recordingArchive) ArchiveMatch(_ context.Context, m *models.MatchSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, m)
	return nil
}

func (a *recordingArchive) PlayerStats(context.Context, string) (models.MatchStats, error) {
	return models.MatchStats{}, nil
}

func (a *recordingArchive) RecentMatches(_ context.Context, playerID string, limit int) ([]*models.MatchSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.MatchSession
	for i := len(a.archived) - 1; i >= 0 && len(out) < limit; i-- {
		if _, ok := a.archived[i].Player(playerID); ok {
			out = append(out, a.archived[i])
		}
	}
	return out, nil
}

func (a *recordingArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.archived)
}

type recordingBroadcaster struct {
	mu           sync.Mutex
	ledgerEvents int
	matchFound   []string
	matchUpdates []string
}

func (b *recordingBroadcaster) BroadcastLedgerUpdate(*models.Ledger) {
	b.mu.Lock()
	b.ledgerEvents++
	b.mu.Unlock()
}

func (b *recordingBroadcaster) BroadcastMatchFound(m *models.MatchSession) {
	b.mu.Lock()
	b.matchFound = append(b.matchFound, m.ID)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) BroadcastMatchUpdate(m *models.MatchSession) {
	b.mu.Lock()
	b.matchUpdates = append(b.matchUpdates, m.ID)
	b.mu.Unlock()
}
