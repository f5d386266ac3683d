package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/models"
)

// MiningService owns every mutation of a player's ledger. Each operation settles idle
// production first so layout changes never earn retroactively.
type MiningService struct {
	store       *RedisService
	catalog     models.Catalog
	calc        *ProductionCalculator
	economy     config.EconomyConfig
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewMiningService(store *RedisService, catalog models.Catalog, economy config.EconomyConfig, broadcaster Broadcaster, logger *zap.Logger) *MiningService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &MiningService{
		store:       store,
		catalog:     catalog,
		calc:        NewProductionCalculator(catalog, economy.BaseRate),
		economy:     economy,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *MiningService) Catalog() models.Catalog {
	return s.catalog
}

type StateResult struct {
	Ledger     *models.Ledger `json:"ledger"`
	Reconciled bool           `json:"reconciled"`
	Accrual    Accrual        `json:"accrual"`
	TotalPower float64        `json:"total_power"`
}

// prepare fills identity and lazily defaulted fields, then settles production.
func (s *MiningService) prepare(st *StateTx, ledger *models.Ledger, player models.Player) (Accrual, bool) {
	if player.Username != "" {
		ledger.DisplayName = player.Username
	}
	if ledger.Farm.NextLandPrice.IsZero() {
		ledger.Farm.NextLandPrice = s.economy.LandBasePrice
	}
	return Reconcile(ledger, st.Now(), s.calc)
}

// State reconciles the ledger and persists it before returning.
func (s *MiningService) State(ctx context.Context, player models.Player) (*StateResult, error) {
	var (
		acc        Accrual
		reconciled bool
	)
	ledger, err := s.store.UpdateLedger(ctx, player.ID, func(st *StateTx, l *models.Ledger) error {
		acc, reconciled = s.prepare(st, l, player)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile ledger: %w", err)
	}

	if acc.CoinsEarned > 0 {
		s.logger.Debug("idle production settled",
			zap.String("player_id", player.ID),
			zap.Float64("coins", acc.CoinsEarned),
			zap.Float64("active_seconds", acc.ActiveSeconds),
			zap.Float64("energy", ledger.Energy),
		)
	}

	return &StateResult{
		Ledger:     ledger,
		Reconciled: reconciled,
		Accrual:    acc,
		TotalPower: ledger.TotalPower(s.catalog),
	}, nil
}

// Reconcile settles production and returns the persisted ledger.
func (s *MiningService) Reconcile(ctx context.Context, player models.Player) (*models.Ledger, error) {
	res, err := s.State(ctx, player)
	if err != nil {
		return nil, err
	}
	return res.Ledger, nil
}

// mutate settles production, applies fn and records a transaction when the balance moved.
// LastReconciledAt only moves inside Reconcile, so fn sees a ledger settled up to now.
func (s *MiningService) mutate(ctx context.Context, player models.Player, txType models.TransactionType, description string, fn func(l *models.Ledger) error) (*models.Ledger, error) {
	ledger, err := s.store.UpdateLedger(ctx, player.ID, func(st *StateTx, l *models.Ledger) error {
		s.prepare(st, l, player)
		before := l.Balance
		if err := fn(l); err != nil {
			return err
		}
		if !l.Balance.Equal(before) {
			st.Record(models.NewTransaction(l.PlayerID, txType, before, l.Balance, description, st.Now()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastLedgerUpdate(ledger)
	return ledger, nil
}

func (s *MiningService) BuyItem(ctx context.Context, player models.Player, category models.ItemCategory, itemID string, quantity int) (*models.Ledger, error) {
	if quantity <= 0 {
		quantity = 1
	}
	price, err := models.Price(s.catalog, category, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s", err, category, itemID)
	}
	total := price.Mul(decimal.NewFromInt(int64(quantity)))

	desc := fmt.Sprintf("bought %dx %s for %s", quantity, itemID, models.FormatCoins(total))
	ledger, err := s.mutate(ctx, player, models.TransactionTypePurchase, desc, func(l *models.Ledger) error {
		if err := l.Debit(total); err != nil {
			return err
		}
		l.AddToInventory(category, itemID, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item purchased",
		zap.String("player_id", player.ID),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
		zap.String("cost", total.String()),
	)
	return ledger, nil
}

func (s *MiningService) BuyRoom(ctx context.Context, player models.Player) (*models.Ledger, decimal.Decimal, error) {
	var cost decimal.Decimal
	ledger, err := s.mutate(ctx, player, models.TransactionTypeRoom, "bought room", func(l *models.Ledger) error {
		var err error
		cost, err = l.BuyRoom(s.economy.RoomUnitPrice, s.economy.MaxRooms)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return ledger, cost, nil
}

func (s *MiningService) PlaceRack(ctx context.Context, player models.Player, room, slot int, rackID string) (*models.Ledger, error) {
	return s.mutate(ctx, player, "", "", func(l *models.Ledger) error {
		return l.PlaceRack(room, slot, rackID, s.catalog)
	})
}

func (s *MiningService) RemoveRack(ctx context.Context, player models.Player, room, slot int) (*models.Ledger, error) {
	return s.mutate(ctx, player, "", "", func(l *models.Ledger) error {
		_, err := l.RemoveRack(room, slot)
		return err
	})
}

func (s *MiningService) PlaceUnit(ctx context.Context, player models.Player, ref models.SlotRef, unitID string) (*models.Ledger, error) {
	if _, ok := s.catalog.UnitPower(unitID); !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownItem, unitID)
	}
	return s.mutate(ctx, player, "", "", func(l *models.Ledger) error {
		return l.PlaceUnit(ref, unitID)
	})
}

func (s *MiningService) RemoveUnit(ctx context.Context, player models.Player, ref models.SlotRef) (*models.Ledger, error) {
	return s.mutate(ctx, player, "", "", func(l *models.Ledger) error {
		_, err := l.RemoveUnit(ref)
		return err
	})
}

// RechargeEnergy refills energy to the maximum, charging per missing point rounded up.
func (s *MiningService) RechargeEnergy(ctx context.Context, player models.Player) (*models.Ledger, error) {
	return s.mutate(ctx, player, models.TransactionTypeRecharge, "energy recharge", func(l *models.Ledger) error {
		missing := math.Ceil(models.MaxEnergy - l.Energy)
		if missing <= 0 {
			return nil
		}
		if err := l.Debit(s.economy.EnergyPricePerPoint.Mul(decimal.NewFromFloat(missing))); err != nil {
			return err
		}
		l.Energy = models.MaxEnergy
		return nil
	})
}

func (s *MiningService) BuyLand(ctx context.Context, player models.Player) (*models.Ledger, decimal.Decimal, error) {
	var paid decimal.Decimal
	ledger, err := s.mutate(ctx, player, models.TransactionTypeLand, "bought farm land", func(l *models.Ledger) error {
		var err error
		paid, err = l.BuyLand(s.economy.LandPriceStep)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return ledger, paid, nil
}

func (s *MiningService) Transactions(ctx context.Context, playerID string, limit int64) ([]*models.Transaction, error) {
	return s.store.GetPlayerTransactions(ctx, playerID, limit)
}

func (s *MiningService) Ranking(ctx context.Context, limit int64) ([]models.RankingEntry, error) {
	return s.store.GetTopBalances(ctx, limit)
}

// IsClientError reports whether err comes from a rejected request rather than an internal failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		models.ErrInsufficientFunds,
		models.ErrInsufficientStake,
		models.ErrSlotOccupied,
		models.ErrSlotEmpty,
		models.ErrInsufficientInventory,
		models.ErrInvalidSlot,
		models.ErrUnknownItem,
		models.ErrRoomLimit,
		models.ErrMatchNotActive,
		models.ErrNotParticipant,
		models.ErrInvalidBoard,
		models.ErrInvalidInput,
		models.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
