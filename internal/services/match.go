package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/models"
)

const maxEmojiRunes = 16

type MatchService struct {
	store       *RedisService
	archive     MatchArchive
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewMatchService(store *RedisService, archive MatchArchive, broadcaster Broadcaster, logger *zap.Logger) *MatchService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &MatchService{
		store:       store,
		archive:     archive,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Get returns a session visible to one of its participants.
func (s *MatchService) Get(ctx context.Context, matchID, playerID string) (*models.MatchSession, error) {
	m, err := s.store.GetMatchSession(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Player(playerID); !ok {
		return nil, models.ErrNotParticipant
	}
	return m, nil
}

type MoveRequest struct {
	Board    models.Board `json:"board"`
	NextTurn models.Side  `json:"next_turn"`
	Winner   models.Side  `json:"winner,omitempty"`
}

// ApplyMove stores the submitted board. When a winner is declared the session finishes and
// the reward is credited to the winner in the same transaction, so it is paid exactly once.
func (s *MatchService) ApplyMove(ctx context.Context, matchID, playerID string, req MoveRequest) (*models.MatchSession, error) {
	current, err := s.store.GetMatchSession(ctx, matchID)
	if err != nil {
		return nil, err
	}

	var ledgerIDs []string
	if req.Winner != "" {
		winner, ok := current.PlayerBySide(req.Winner)
		if !ok {
			return nil, fmt.Errorf("%w: winner %q", models.ErrInvalidBoard, req.Winner)
		}
		ledgerIDs = []string{winner.PlayerID}
	}

	var (
		updated      *models.MatchSession
		winnerLedger *models.Ledger
	)
	err = s.store.Txn(ctx, ledgerIDs, []string{matchID}, func(st *StateTx) error {
		m := st.Match(matchID)
		if err := m.ApplyMove(playerID, req.Board, req.NextTurn, req.Winner, st.Now()); err != nil {
			return err
		}
		if m.Status == models.MatchStatusFinished {
			winner, _ := m.PlayerBySide(m.Winner)
			l := st.Ledger(winner.PlayerID)
			before := l.Balance
			l.Credit(m.Reward)

			tx := models.NewTransaction(winner.PlayerID, models.TransactionTypeMatchPrize, before, l.Balance, "damas victory", st.Now())
			tx.MatchID = m.ID
			st.Record(tx)
			winnerLedger = l
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.MatchStatusFinished {
		s.logger.Info("match finished",
			zap.String("match_id", updated.ID),
			zap.String("winner", string(updated.Winner)),
			zap.String("reward", updated.Reward.String()),
		)
		s.archiveMatch(ctx, updated)
		if winnerLedger != nil {
			s.broadcaster.BroadcastLedgerUpdate(winnerLedger)
		}
	}
	s.broadcaster.BroadcastMatchUpdate(updated)
	return updated, nil
}

func (s *MatchService) PostEmoji(ctx context.Context, matchID, playerID, emoji string) (*models.MatchSession, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return nil, fmt.Errorf("%w: emoji must be 1-%d characters", models.ErrInvalidInput, maxEmojiRunes)
	}

	var updated *models.MatchSession
	err := s.store.Txn(ctx, nil, []string{matchID}, func(st *StateTx) error {
		m := st.Match(matchID)
		if err := m.PostEmoji(playerID, emoji, st.Now()); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastMatchUpdate(updated)
	return updated, nil
}

// Abandon ends an active session without payout. Sessions that already ended are left as they are.
func (s *MatchService) Abandon(ctx context.Context, matchID string, shouldAbandon func(m *models.MatchSession) bool) (bool, error) {
	var abandoned *models.MatchSession
	err := s.store.Txn(ctx, nil, []string{matchID}, func(st *StateTx) error {
		m := st.Match(matchID)
		if !m.IsActive() || (shouldAbandon != nil && !shouldAbandon(m)) {
			return errSkip
		}
		if err := m.Abandon(st.Now()); err != nil {
			return err
		}
		abandoned = m
		return nil
	})
	if errors.Is(err, errSkip) || errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("match abandoned", zap.String("match_id", matchID))
	s.archiveMatch(ctx, abandoned)
	s.broadcaster.BroadcastMatchUpdate(abandoned)
	return true, nil
}

var errSkip = errors.New("skip")

// AbandonActiveFor abandons every active session the player is part of.
func (s *MatchService) AbandonActiveFor(ctx context.Context, playerID string) (int, error) {
	ids, err := s.store.GetPlayerActiveMatches(ctx, playerID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		ok, err := s.Abandon(ctx, id, nil)
		if err != nil {
			return count, fmt.Errorf("failed to abandon match %s: %w", id, err)
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// AbandonIdle abandons active sessions without activity since before now-idle.
func (s *MatchService) AbandonIdle(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	ids, err := s.store.GetAllActiveMatches(ctx)
	if err != nil {
		return 0, err
	}
	sessions, err := s.store.BulkGetMatchSessions(ctx, ids)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-idle)
	isIdle := func(m *models.MatchSession) bool { return m.UpdatedAt.Before(cutoff) }

	count := 0
	for _, m := range sessions {
		if !m.IsActive() || !isIdle(m) {
			continue
		}
		ok, err := s.Abandon(ctx, m.ID, isIdle)
		if err != nil {
			s.logger.Error("failed to abandon idle match", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// ActiveFor returns the newest active session of the player, or nil.
func (s *MatchService) ActiveFor(ctx context.Context, playerID string) (*models.MatchSession, error) {
	ids, err := s.store.GetPlayerActiveMatches(ctx, playerID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.BulkGetMatchSessions(ctx, ids)
	if err != nil {
		return nil, err
	}

	var newest *models.MatchSession
	for _, m := range sessions {
		if !m.IsActive() {
			continue
		}
		if newest == nil || m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}
	return newest, nil
}

// History lists ended matches, newest first. Redis only keeps recent sessions, so the list
// is topped up from the archive when Redis returns fewer than limit.
func (s *MatchService) History(ctx context.Context, playerID string, limit int64) ([]*models.MatchSession, error) {
	if limit <= 0 || limit > historyLimit {
		limit = 50
	}
	recent, err := s.store.GetMatchHistory(ctx, playerID, limit)
	if err != nil {
		return nil, err
	}
	if s.archive == nil || int64(len(recent)) >= limit {
		return recent, nil
	}

	archived, err := s.archive.RecentMatches(ctx, playerID, int(limit))
	if err != nil {
		s.logger.Warn("failed to read match archive", zap.String("player_id", playerID), zap.Error(err))
		return recent, nil
	}

	seen := make(map[string]struct{}, len(recent))
	for _, m := range recent {
		seen[m.ID] = struct{}{}
	}
	for _, m := range archived {
		if int64(len(recent)) >= limit {
			break
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		recent = append(recent, m)
	}
	return recent, nil
}

func (s *MatchService) archiveMatch(ctx context.Context, m *models.MatchSession) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveMatch(ctx, m); err != nil {
		s.logger.Error("failed to archive match", zap.String("match_id", m.ID), zap.Error(err))
	}
}
