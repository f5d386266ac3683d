package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/models"
)

const maxTxRetries = 16

var ErrTxContention = errors.New("too much contention on player state, try again")

type RedisService struct {
	client *redis.Client
	clock  clock.Clock
}

func NewRedisService(cfg *config.Config, clk clock.Clock) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisServiceFromClient(client, clk), nil
}

func NewRedisServiceFromClient(client *redis.Client, clk clock.Clock) *RedisService {
	return &RedisService{client: client, clock: clk}
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// StateTx is the working set of one optimistic transaction. Everything loaded or
// added is written back atomically when the callback returns nil.
type StateTx struct {
	ledgers    map[string]*models.Ledger
	matches    map[string]*models.MatchSession
	newMatches []*models.MatchSession
	txLog      []*models.Transaction
	now        time.Time
}

func (st *StateTx) Ledger(playerID string) *models.Ledger {
	return st.ledgers[playerID]
}

func (st *StateTx) Match(matchID string) *models.MatchSession {
	return st.matches[matchID]
}

func (st *StateTx) Now() time.Time {
	return st.now
}

func (st *StateTx) AddMatch(m *models.MatchSession) {
	st.newMatches = append(st.newMatches, m)
}

func (st *StateTx) Record(tx *models.Transaction) {
	st.txLog = append(st.txLog, tx)
}

// Txn loads the given ledgers and match sessions under WATCH, runs fn and commits all
// changes in one MULTI/EXEC. Missing ledgers are created with defaults; a missing match
// fails with ErrNotFound. Conflicting writers cause a retry with freshly loaded state.
func (s *RedisService) Txn(ctx context.Context, ledgerIDs, matchIDs []string, fn func(st *StateTx) error) error {
	keys := make([]string, 0, len(ledgerIDs)+len(matchIDs))
	for _, id := range ledgerIDs {
		keys = append(keys, fmt.Sprintf(KeyLedger, id))
	}
	for _, id := range matchIDs {
		keys = append(keys, fmt.Sprintf(KeyMatchSession, id))
	}

	txf := func(tx *redis.Tx) error {
		st := &StateTx{
			ledgers: make(map[string]*models.Ledger, len(ledgerIDs)),
			matches: make(map[string]*models.MatchSession, len(matchIDs)),
			now:     s.clock.Now(),
		}
		for _, id := range ledgerIDs {
			ledger, err := s.loadLedger(ctx, tx, id)
			if errors.Is(err, models.ErrNotFound) {
				ledger = models.NewLedger(id, "", st.now)
			} else if err != nil {
				return err
			}
			st.ledgers[id] = ledger
		}
		for _, id := range matchIDs {
			m, err := s.loadMatch(ctx, tx, id)
			if err != nil {
				return err
			}
			st.matches[id] = m
		}

		if err := fn(st); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeState(ctx, pipe, st)
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxContention
}

// UpdateLedger is Txn over a single ledger.
func (s *RedisService) UpdateLedger(ctx context.Context, playerID string, fn func(st *StateTx, ledger *models.Ledger) error) (*models.Ledger, error) {
	var out *models.Ledger
	err := s.Txn(ctx, []string{playerID}, nil, func(st *StateTx) error {
		ledger := st.Ledger(playerID)
		if err := fn(st, ledger); err != nil {
			return err
		}
		out = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisService) loadLedger(ctx context.Context, c getter, playerID string) (*models.Ledger, error) {
	data, err := c.Get(ctx, fmt.Sprintf(KeyLedger, playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("ledger %s: %w", playerID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	var ledger models.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	ledger.Normalize()
	return &ledger, nil
}

func (s *RedisService) loadMatch(ctx context.Context, c getter, matchID string) (*models.MatchSession, error) {
	data, err := c.Get(ctx, fmt.Sprintf(KeyMatchSession, matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match session: %w", err)
	}

	var m models.MatchSession
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match session: %w", err)
	}
	return &m, nil
}

func (s *RedisService) writeState(ctx context.Context, pipe redis.Pipeliner, st *StateTx) error {
	for id, ledger := range st.ledgers {
		data, err := json.Marshal(ledger)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger: %w", err)
		}
		pipe.Set(ctx, fmt.Sprintf(KeyLedger, id), data, 0)
		pipe.ZAdd(ctx, KeyRankingBalance, redis.Z{
			Score:  ledger.Balance.InexactFloat64(),
			Member: id,
		})
		if ledger.DisplayName != "" {
			pipe.HSet(ctx, KeyPlayerNames, id, ledger.DisplayName)
		}
	}

	for _, m := range st.matches {
		if err := writeMatch(ctx, pipe, m); err != nil {
			return err
		}
	}
	for _, m := range st.newMatches {
		if err := writeMatch(ctx, pipe, m); err != nil {
			return err
		}
	}

	for _, tx := range st.txLog {
		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		playerTxKey := fmt.Sprintf(KeyPlayerTransactions, tx.PlayerID)
		pipe.Set(ctx, fmt.Sprintf(KeyTransaction, tx.ID), data, TTLTransaction)
		pipe.ZAdd(ctx, playerTxKey, redis.Z{
			Score:  float64(tx.CreatedAt.UnixMilli()),
			Member: tx.ID,
		})
		// Keep only the last 100 transactions
		pipe.ZRemRangeByRank(ctx, playerTxKey, 0, -(historyLimit + 1))
	}
	return nil
}

func writeMatch(ctx context.Context, pipe redis.Pipeliner, m *models.MatchSession) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match session: %w", err)
	}
	pipe.Set(ctx, fmt.Sprintf(KeyMatchSession, m.ID), data, TTLMatchSession)

	if m.IsActive() {
		pipe.SAdd(ctx, KeyActiveMatches, m.ID)
		for _, p := range m.Players {
			key := fmt.Sprintf(KeyPlayerActiveMatches, p.PlayerID)
			pipe.SAdd(ctx, key, m.ID)
			pipe.Expire(ctx, key, TTLMatchSession)
		}
		return nil
	}

	ended := m.UpdatedAt
	if m.EndedAt != nil {
		ended = *m.EndedAt
	}
	pipe.SRem(ctx, KeyActiveMatches, m.ID)
	for _, p := range m.Players {
		pipe.SRem(ctx, fmt.Sprintf(KeyPlayerActiveMatches, p.PlayerID), m.ID)

		completedKey := fmt.Sprintf(KeyPlayerCompletedMatches, p.PlayerID)
		pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(ended.Unix()), Member: m.ID})
		pipe.ZRemRangeByRank(ctx, completedKey, 0, -(historyLimit + 1))
	}
	return nil
}

func (s *RedisService) GetLedger(ctx context.Context, playerID string) (*models.Ledger, error) {
	return s.loadLedger(ctx, s.client, playerID)
}

func (s *RedisService) GetMatchSession(ctx context.Context, matchID string) (*models.MatchSession, error) {
	return s.loadMatch(ctx, s.client, matchID)
}

func (s *RedisService) GetPlayerActiveMatches(ctx context.Context, playerID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, fmt.Sprintf(KeyPlayerActiveMatches, playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active matches: %w", err)
	}
	return ids, nil
}

func (s *RedisService) GetAllActiveMatches(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, KeyActiveMatches).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active matches: %w", err)
	}
	return ids, nil
}

// BulkGetMatchSessions fetches sessions in one round trip, skipping ids that no longer exist.
func (s *RedisService) BulkGetMatchSessions(ctx context.Context, matchIDs []string) ([]*models.MatchSession, error) {
	if len(matchIDs) == 0 {
		return []*models.MatchSession{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(matchIDs))
	for i, id := range matchIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyMatchSession, id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	sessions := make([]*models.MatchSession, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var m models.MatchSession
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		sessions = append(sessions, &m)
	}
	return sessions, nil
}

func (s *RedisService) GetMatchHistory(ctx context.Context, playerID string, limit int64) ([]*models.MatchSession, error) {
	if limit <= 0 || limit > historyLimit {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyPlayerCompletedMatches, playerID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get match ids: %w", err)
	}
	return s.BulkGetMatchSessions(ctx, ids)
}

func (s *RedisService) GetPlayerTransactions(ctx context.Context, playerID string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > historyLimit {
		limit = 50
	}

	txIDs, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyPlayerTransactions, playerID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction ids: %w", err)
	}
	if len(txIDs) == 0 {
		return []*models.Transaction{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(txIDs))
	for i, id := range txIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyTransaction, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

// GetTopBalances reads the balance leaderboard maintained on every ledger write.
func (s *RedisService) GetTopBalances(ctx context.Context, limit int64) ([]models.RankingEntry, error) {
	if limit <= 0 || limit > historyLimit {
		limit = 5
	}

	scores, err := s.client.ZRevRangeWithScores(ctx, KeyRankingBalance, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}
	if len(scores) == 0 {
		return []models.RankingEntry{}, nil
	}

	ids := make([]string, len(scores))
	for i, z := range scores {
		ids[i], _ = z.Member.(string)
	}
	names, err := s.client.HMGet(ctx, KeyPlayerNames, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read player names: %w", err)
	}

	entries := make([]models.RankingEntry, len(scores))
	for i, z := range scores {
		name, _ := names[i].(string)
		entries[i] = models.RankingEntry{
			Rank:        i + 1,
			PlayerID:    ids[i],
			DisplayName: name,
			Balance:     decimal.NewFromFloat(z.Score).Round(2),
		}
	}
	return entries, nil
}

// CheckRateLimit is a fixed window counter per player and action.
func (s *RedisService) CheckRateLimit(ctx context.Context, playerID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, playerID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}
