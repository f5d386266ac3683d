package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/models"
)

type QueueEntry struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

type JoinStatus string

const (
	JoinStatusSearching     JoinStatus = "searching"
	JoinStatusAlreadyQueued JoinStatus = "already_queued"
	JoinStatusMatched       JoinStatus = "matched"
)

type JoinResult struct {
	Status   JoinStatus `json:"status"`
	MatchID  string     `json:"match_id,omitempty"`
	Position int        `json:"position,omitempty"`
}

type QueueStatus struct {
	MatchFound bool   `json:"match_found"`
	MatchID    string `json:"match_id,omitempty"`
	Queued     bool   `json:"queued"`
	Position   int    `json:"position,omitempty"`
}

// MatchmakingQueue pairs damas players in arrival order and escrows the stake of both.
// All queue state is guarded by one mutex held for the whole join.
type MatchmakingQueue struct {
	mu      sync.Mutex
	entries []QueueEntry

	store       *RedisService
	mining      *MiningService
	matches     *MatchService
	economy     config.EconomyConfig
	clock       clock.Clock
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewMatchmakingQueue(store *RedisService, mining *MiningService, matches *MatchService, economy config.EconomyConfig, clk clock.Clock, broadcaster Broadcaster, logger *zap.Logger) *MatchmakingQueue {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &MatchmakingQueue{
		store:       store,
		mining:      mining,
		matches:     matches,
		economy:     economy,
		clock:       clk,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (q *MatchmakingQueue) Join(ctx context.Context, player models.Player) (*JoinResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ledger, err := q.mining.Reconcile(ctx, player)
	if err != nil {
		return nil, err
	}
	if ledger.Balance.LessThan(q.economy.MatchStake) {
		return nil, fmt.Errorf("%w: have %s, need %s", models.ErrInsufficientStake,
			ledger.Balance.StringFixed(2), q.economy.MatchStake.StringFixed(2))
	}

	abandoned, err := q.matches.AbandonActiveFor(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	if abandoned > 0 {
		q.logger.Info("abandoned stale matches on queue join",
			zap.String("player_id", player.ID),
			zap.Int("count", abandoned),
		)
	}

	if pos := q.position(player.ID); pos >= 0 {
		return &JoinResult{Status: JoinStatusAlreadyQueued, Position: pos + 1}, nil
	}

	q.entries = append(q.entries, QueueEntry{
		PlayerID:    player.ID,
		DisplayName: player.Username,
		JoinedAt:    q.clock.Now(),
	})

	// Pairs that fail to form stay ahead of the rest, in arrival order, while
	// pairing continues with the entries behind them.
	var (
		joined *models.MatchSession
		held   []QueueEntry
	)
	for len(q.entries) >= 2 {
		first, second := q.entries[0], q.entries[1]
		q.entries = append([]QueueEntry(nil), q.entries[2:]...)

		m, err := q.formMatch(ctx, first, second)
		if err != nil {
			held = append(held, first, second)
			if !errors.Is(err, models.ErrMatchFormationFailed) {
				q.entries = append(held, q.entries...)
				return nil, err
			}
			q.logger.Warn("match formation failed, entrants requeued",
				zap.String("first", first.PlayerID),
				zap.String("second", second.PlayerID),
				zap.Error(err),
			)
			continue
		}

		q.logger.Info("match formed",
			zap.String("match_id", m.ID),
			zap.String("side_a", first.PlayerID),
			zap.String("side_b", second.PlayerID),
		)
		q.broadcaster.BroadcastMatchFound(m)
		if _, ok := m.Player(player.ID); ok {
			joined = m
		}
	}

	q.entries = append(held, q.entries...)

	if joined != nil {
		return &JoinResult{Status: JoinStatusMatched, MatchID: joined.ID}, nil
	}
	return &JoinResult{Status: JoinStatusSearching, Position: q.position(player.ID) + 1}, nil
}

// formMatch checks both balances, then debits the stake from both and creates the session,
// all in one transaction. Any shortfall leaves both ledgers untouched.
func (q *MatchmakingQueue) formMatch(ctx context.Context, first, second QueueEntry) (*models.MatchSession, error) {
	stake := q.economy.MatchStake
	var session *models.MatchSession

	err := q.store.Txn(ctx, []string{first.PlayerID, second.PlayerID}, nil, func(st *StateTx) error {
		ledgers := []*models.Ledger{st.Ledger(first.PlayerID), st.Ledger(second.PlayerID)}
		for _, l := range ledgers {
			if l.Balance.LessThan(stake) {
				return fmt.Errorf("%w: player %s below stake", models.ErrMatchFormationFailed, l.PlayerID)
			}
		}

		matchID := models.GenerateMatchID(st.Now())
		for _, l := range ledgers {
			before := l.Balance
			if err := l.Debit(stake); err != nil {
				return fmt.Errorf("%w: %v", models.ErrMatchFormationFailed, err)
			}
			tx := models.NewTransaction(l.PlayerID, models.TransactionTypeStake, before, l.Balance, "damas stake", st.Now())
			tx.MatchID = matchID
			st.Record(tx)
		}

		session = models.NewMatchSession(matchID,
			models.MatchPlayer{PlayerID: first.PlayerID, DisplayName: first.DisplayName},
			models.MatchPlayer{PlayerID: second.PlayerID, DisplayName: second.DisplayName},
			stake, q.economy.MatchReward, st.Now(),
		)
		st.AddMatch(session)
		return nil
	})
	if errors.Is(err, ErrTxContention) {
		return nil, fmt.Errorf("%w: %v", models.ErrMatchFormationFailed, err)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Status reports the player's active session, if any, and queue membership.
func (q *MatchmakingQueue) Status(ctx context.Context, playerID string) (*QueueStatus, error) {
	m, err := q.matches.ActiveFor(ctx, playerID)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	pos := q.position(playerID)
	q.mu.Unlock()

	status := &QueueStatus{Queued: pos >= 0}
	if pos >= 0 {
		status.Position = pos + 1
	}
	if m != nil {
		status.MatchFound = true
		status.MatchID = m.ID
	}
	return status, nil
}

// Leave removes the player from the queue and reports whether they were queued.
func (q *MatchmakingQueue) Leave(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := q.position(playerID)
	if pos < 0 {
		return false
	}
	q.entries = append(q.entries[:pos:pos], q.entries[pos+1:]...)
	return true
}

// ExpireOlderThan drops entries that joined before now-ttl and returns them.
func (q *MatchmakingQueue) ExpireOlderThan(now time.Time, ttl time.Duration) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := now.Add(-ttl)
	kept := q.entries[:0:0]
	var expired []QueueEntry
	for _, e := range q.entries {
		if e.JoinedAt.Before(cutoff) {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return expired
}

func (q *MatchmakingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the queue in arrival order.
func (q *MatchmakingQueue) Entries() []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueueEntry(nil), q.entries...)
}

func (q *MatchmakingQueue) position(playerID string) int {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			return i
		}
	}
	return -1
}
