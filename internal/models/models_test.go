package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lulacoin-miner-backend/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewLedgerDefaults(t *testing.T) {
	l := models.NewLedger("p1", "alice", t0)

	assert.True(t, l.Balance.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 100.0, l.Energy)
	assert.Len(t, l.Rooms, 1)
	for _, slot := range l.Rooms[0].Racks {
		assert.Nil(t, slot)
	}
	assert.Equal(t, t0, l.LastReconciledAt)
}

func TestDebitGuard(t *testing.T) {
	l := models.NewLedger("p1", "alice", t0)

	err := l.Debit(decimal.NewFromInt(11))
	assert.True(t, errors.Is(err, models.ErrInsufficientFunds))
	assert.True(t, l.Balance.Equal(decimal.NewFromInt(10)))

	require.NoError(t, l.Debit(decimal.NewFromInt(10)))
	assert.True(t, l.Balance.IsZero())

	l.Credit(decimal.NewFromFloat(2.5))
	assert.Equal(t, "2.5", l.Balance.String())
}

func TestRackAndUnitPlacement(t *testing.T) {
	catalog := models.DefaultCatalog()
	l := models.NewLedger("p1", "alice", t0)

	err := l.PlaceRack(0, 0, "rack001", catalog)
	assert.ErrorIs(t, err, models.ErrInsufficientInventory)

	l.AddToInventory(models.CategoryRack, "rack001", 1)
	require.NoError(t, l.PlaceRack(0, 0, "rack001", catalog))
	assert.Equal(t, 0, l.Inventory.Racks["rack001"])
	require.NotNil(t, l.Rooms[0].Racks[0])
	assert.Len(t, l.Rooms[0].Racks[0].Units, 2)

	l.AddToInventory(models.CategoryRack, "rack001", 1)
	assert.ErrorIs(t, l.PlaceRack(0, 0, "rack001", catalog), models.ErrSlotOccupied)
	assert.ErrorIs(t, l.PlaceRack(0, 9, "rack001", catalog), models.ErrInvalidSlot)
	assert.ErrorIs(t, l.PlaceRack(0, 1, "rack999", catalog), models.ErrUnknownItem)

	ref := models.SlotRef{Room: 0, Rack: 0, Unit: 1}
	assert.ErrorIs(t, l.PlaceUnit(ref, "miner002"), models.ErrInsufficientInventory)

	l.AddToInventory(models.CategoryUnit, "miner002", 2)
	require.NoError(t, l.PlaceUnit(ref, "miner002"))
	assert.ErrorIs(t, l.PlaceUnit(ref, "miner002"), models.ErrSlotOccupied)
	assert.Equal(t, 1, l.Inventory.Units["miner002"])
	assert.Equal(t, 5.0, l.TotalPower(catalog))

	assert.ErrorIs(t, l.PlaceUnit(models.SlotRef{Room: 0, Rack: 0, Unit: 2}, "miner002"), models.ErrInvalidSlot)
	assert.ErrorIs(t, l.PlaceUnit(models.SlotRef{Room: 0, Rack: 1, Unit: 0}, "miner002"), models.ErrInvalidSlot)

	_, err = l.RemoveRack(0, 0)
	assert.ErrorIs(t, err, models.ErrSlotOccupied)

	unitID, err := l.RemoveUnit(ref)
	require.NoError(t, err)
	assert.Equal(t, "miner002", unitID)
	assert.Equal(t, 2, l.Inventory.Units["miner002"])

	_, err = l.RemoveUnit(ref)
	assert.ErrorIs(t, err, models.ErrSlotEmpty)

	rackID, err := l.RemoveRack(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "rack001", rackID)
	assert.Equal(t, 2, l.Inventory.Racks["rack001"])

	_, err = l.RemoveRack(0, 0)
	assert.ErrorIs(t, err, models.ErrSlotEmpty)
}

func TestTotalPowerZeroWithoutEnergy(t *testing.T) {
	catalog := models.DefaultCatalog()
	l := models.NewLedger("p1", "alice", t0)
	l.AddToInventory(models.CategoryRack, "rack003", 1)
	l.AddToInventory(models.CategoryUnit, "miner004", 1)
	require.NoError(t, l.PlaceRack(0, 2, "rack003", catalog))
	require.NoError(t, l.PlaceUnit(models.SlotRef{Room: 0, Rack: 2, Unit: 5}, "miner004"))

	assert.Equal(t, 100.0, l.TotalPower(catalog))
	l.Energy = 0
	assert.Zero(t, l.TotalPower(catalog))
	assert.Equal(t, 100.0, l.PlacedPower(catalog))
}

func TestBuyRoom(t *testing.T) {
	l := models.NewLedger("p1", "alice", t0)
	price := decimal.NewFromInt(100)

	_, err := l.BuyRoom(price, 10)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Len(t, l.Rooms, 1)

	l.Credit(decimal.NewFromInt(290))
	cost, err := l.BuyRoom(price, 10)
	require.NoError(t, err)
	assert.Equal(t, "100", cost.String())
	assert.Len(t, l.Rooms, 2)

	cost, err = l.BuyRoom(price, 10)
	require.NoError(t, err)
	assert.Equal(t, "200", cost.String())
	assert.Equal(t, "0", l.Balance.String())

	_, err = l.BuyRoom(price, 3)
	assert.ErrorIs(t, err, models.ErrRoomLimit)
}

func TestBuyLandRaisesPrice(t *testing.T) {
	l := models.NewLedger("p1", "alice", t0)
	l.Farm.NextLandPrice = decimal.NewFromInt(250)
	l.Credit(decimal.NewFromInt(1000))

	paid, err := l.BuyLand(decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.Equal(t, "250", paid.String())
	assert.Equal(t, 1, l.Farm.Lands)
	assert.Equal(t, "500", l.Farm.NextLandPrice.String())

	paid, err = l.BuyLand(decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.Equal(t, "500", paid.String())

	_, err = l.BuyLand(decimal.NewFromInt(250))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, 2, l.Farm.Lands)
}

func TestNewBoardOpeningPosition(t *testing.T) {
	b := models.NewBoard()

	assert.Equal(t, models.CellManB, b[0][1])
	assert.Equal(t, models.CellEmpty, b[0][0])
	assert.Equal(t, models.CellManB, b[1][0])
	assert.Equal(t, models.CellEmpty, b[3][0])
	assert.Equal(t, models.CellEmpty, b[4][1])
	assert.Equal(t, models.CellManA, b[5][0])
	assert.Equal(t, models.CellManA, b[6][1])
	assert.Equal(t, models.CellManA, b[7][0])

	var a, bb int
	for _, row := range b {
		for _, c := range row {
			switch c {
			case models.CellManA:
				a++
			case models.CellManB:
				bb++
			}
		}
	}
	assert.Equal(t, 12, a)
	assert.Equal(t, 12, bb)
	assert.NoError(t, b.Validate())

	b[3][3] = 7
	assert.ErrorIs(t, b.Validate(), models.ErrInvalidBoard)
}

func TestMatchSessionTransitions(t *testing.T) {
	m := models.NewMatchSession("m1",
		models.MatchPlayer{PlayerID: "p1", DisplayName: "alice"},
		models.MatchPlayer{PlayerID: "p2", DisplayName: "bob"},
		decimal.NewFromInt(25), decimal.NewFromInt(50), t0)

	assert.Equal(t, models.SideA, m.Turn)
	assert.Equal(t, models.SideA, m.Players[0].Side)
	assert.Equal(t, models.SideB, m.Players[1].Side)

	board := m.Board
	board[4][1], board[5][0] = models.CellManA, models.CellEmpty

	assert.ErrorIs(t, m.ApplyMove("p3", board, models.SideB, "", t0), models.ErrNotParticipant)
	assert.ErrorIs(t, m.ApplyMove("p1", board, "C", "", t0), models.ErrInvalidBoard)

	require.NoError(t, m.ApplyMove("p1", board, models.SideB, "", t0.Add(time.Second)))
	assert.Equal(t, models.SideB, m.Turn)
	assert.Equal(t, models.CellManA, m.Board[4][1])
	assert.True(t, m.IsActive())

	require.NoError(t, m.ApplyMove("p2", board, "", models.SideB, t0.Add(2*time.Second)))
	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, models.SideB, m.Winner)
	require.NotNil(t, m.EndedAt)

	assert.ErrorIs(t, m.ApplyMove("p1", board, models.SideA, "", t0), models.ErrMatchNotActive)
	assert.ErrorIs(t, m.Abandon(t0), models.ErrMatchNotActive)

	require.NoError(t, m.PostEmoji("p1", "😀", t0))
	assert.Equal(t, "p1", m.LastEmoji.SenderID)
}

func TestPriceLookup(t *testing.T) {
	catalog := models.DefaultCatalog()

	p, err := models.Price(catalog, models.CategoryUnit, "miner003")
	require.NoError(t, err)
	assert.Equal(t, "180", p.String())

	p, err = models.Price(catalog, models.CategoryRack, "rack002")
	require.NoError(t, err)
	assert.Equal(t, "30", p.String())

	_, err = models.Price(catalog, models.CategoryRack, "miner003")
	assert.ErrorIs(t, err, models.ErrUnknownItem)

	assert.Len(t, catalog.Units(), 4)
	assert.Equal(t, "rack001", catalog.Racks()[0].ID)
}

func TestTransactionAmountIsSigned(t *testing.T) {
	tx := models.NewTransaction("p1", models.TransactionTypeStake, decimal.NewFromInt(30), decimal.NewFromInt(5), "stake", t0)
	assert.Equal(t, "-25", tx.Amount.String())
	assert.Contains(t, tx.ID, "tx_20250301_")
}
