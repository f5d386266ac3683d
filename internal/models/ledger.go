package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RackSlotsPerRoom = 4
	MaxEnergy        = 100.0
)

var DefaultBalance = decimal.NewFromInt(10)

// Ledger is the persistent resource state of one player.
type Ledger struct {
	PlayerID         string          `json:"player_id"`
	DisplayName      string          `json:"display_name"`
	Balance          decimal.Decimal `json:"balance"`
	Energy           float64         `json:"energy"`
	LastReconciledAt time.Time       `json:"last_reconciled_at"`
	TotalMined       decimal.Decimal `json:"total_mined"`

	Rooms     []Room    `json:"rooms"`
	Inventory Inventory `json:"inventory"`
	Farm      Farm      `json:"farm"`

	CreatedAt time.Time `json:"created_at"`
}

// Room holds a fixed number of rack slots. A nil slot is empty.
type Room struct {
	Racks [RackSlotsPerRoom]*PlacedRack `json:"racks"`
}

// PlacedRack is a rack occupying a room slot. Units has one entry per unit slot; "" marks an empty slot.
type PlacedRack struct {
	RackID string   `json:"rack_id"`
	Units  []string `json:"units"`
}

type Inventory struct {
	Units map[string]int `json:"units"`
	Racks map[string]int `json:"racks"`
}

type Farm struct {
	Lands         int             `json:"lands"`
	NextLandPrice decimal.Decimal `json:"next_land_price"`
}

// SlotRef addresses a unit slot: room index, rack slot within the room, unit slot within the rack.
type SlotRef struct {
	Room int `json:"room"`
	Rack int `json:"rack"`
	Unit int `json:"unit"`
}

func NewLedger(playerID, displayName string, now time.Time) *Ledger {
	return &Ledger{
		PlayerID:         playerID,
		DisplayName:      displayName,
		Balance:          DefaultBalance,
		Energy:           MaxEnergy,
		LastReconciledAt: now,
		TotalMined:       decimal.Zero,
		Rooms:            []Room{{}},
		Inventory:        NewInventory(),
		CreatedAt:        now,
	}
}

func NewInventory() Inventory {
	return Inventory{
		Units: make(map[string]int),
		Racks: make(map[string]int),
	}
}

// Normalize fills maps and slices that JSON decoding may leave nil.
func (l *Ledger) Normalize() {
	if l.Inventory.Units == nil {
		l.Inventory.Units = make(map[string]int)
	}
	if l.Inventory.Racks == nil {
		l.Inventory.Racks = make(map[string]int)
	}
	if len(l.Rooms) == 0 {
		l.Rooms = []Room{{}}
	}
	l.Energy = ClampEnergy(l.Energy)
}

func ClampEnergy(e float64) float64 {
	if e < 0 {
		return 0
	}
	if e > MaxEnergy {
		return MaxEnergy
	}
	return e
}

// Debit removes amount from the balance, leaving it unchanged when funds are short.
func (l *Ledger) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative debit %s", amount)
	}
	if l.Balance.LessThan(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, l.Balance.StringFixed(2), amount.StringFixed(2))
	}
	l.Balance = l.Balance.Sub(amount)
	return nil
}

func (l *Ledger) Credit(amount decimal.Decimal) {
	l.Balance = l.Balance.Add(amount)
}

func (l *Ledger) rack(room, slot int) (**PlacedRack, error) {
	if room < 0 || room >= len(l.Rooms) || slot < 0 || slot >= RackSlotsPerRoom {
		return nil, fmt.Errorf("%w: room %d rack %d", ErrInvalidSlot, room, slot)
	}
	return &l.Rooms[room].Racks[slot], nil
}

// PlaceRack moves one rack of rackID from inventory into an empty rack slot.
func (l *Ledger) PlaceRack(room, slot int, rackID string, catalog Catalog) error {
	capacity, ok := catalog.SlotCapacity(rackID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, rackID)
	}
	target, err := l.rack(room, slot)
	if err != nil {
		return err
	}
	if *target != nil {
		return ErrSlotOccupied
	}
	if l.Inventory.Racks[rackID] < 1 {
		return fmt.Errorf("%w: rack %s", ErrInsufficientInventory, rackID)
	}

	l.Inventory.Racks[rackID]--
	*target = &PlacedRack{RackID: rackID, Units: make([]string, capacity)}
	return nil
}

// RemoveRack returns an empty rack to inventory. A rack still holding units reports ErrSlotOccupied.
func (l *Ledger) RemoveRack(room, slot int) (string, error) {
	target, err := l.rack(room, slot)
	if err != nil {
		return "", err
	}
	if *target == nil {
		return "", ErrSlotEmpty
	}
	for _, u := range (*target).Units {
		if u != "" {
			return "", fmt.Errorf("%w: rack still holds units", ErrSlotOccupied)
		}
	}

	rackID := (*target).RackID
	l.Inventory.Racks[rackID]++
	*target = nil
	return rackID, nil
}

func (l *Ledger) unitSlot(ref SlotRef) (*PlacedRack, error) {
	target, err := l.rack(ref.Room, ref.Rack)
	if err != nil {
		return nil, err
	}
	rack := *target
	if rack == nil {
		return nil, fmt.Errorf("%w: no rack at room %d slot %d", ErrInvalidSlot, ref.Room, ref.Rack)
	}
	if ref.Unit < 0 || ref.Unit >= len(rack.Units) {
		return nil, fmt.Errorf("%w: unit slot %d", ErrInvalidSlot, ref.Unit)
	}
	return rack, nil
}

// PlaceUnit moves one unit of unitID from inventory into an empty unit slot.
func (l *Ledger) PlaceUnit(ref SlotRef, unitID string) error {
	rack, err := l.unitSlot(ref)
	if err != nil {
		return err
	}
	if rack.Units[ref.Unit] != "" {
		return ErrSlotOccupied
	}
	if l.Inventory.Units[unitID] < 1 {
		return fmt.Errorf("%w: unit %s", ErrInsufficientInventory, unitID)
	}

	l.Inventory.Units[unitID]--
	rack.Units[ref.Unit] = unitID
	return nil
}

// RemoveUnit empties a unit slot and returns the unit to inventory.
func (l *Ledger) RemoveUnit(ref SlotRef) (string, error) {
	rack, err := l.unitSlot(ref)
	if err != nil {
		return "", err
	}
	unitID := rack.Units[ref.Unit]
	if unitID == "" {
		return "", ErrSlotEmpty
	}

	rack.Units[ref.Unit] = ""
	l.Inventory.Units[unitID]++
	return unitID, nil
}

func (l *Ledger) AddToInventory(category ItemCategory, itemID string, qty int) {
	switch category {
	case CategoryUnit:
		l.Inventory.Units[itemID] += qty
	case CategoryRack:
		l.Inventory.Racks[itemID] += qty
	}
}

// RoomPrice is the cost of the next room: current room count times the unit price.
func (l *Ledger) RoomPrice(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(len(l.Rooms))))
}

// BuyRoom debits the next room price and appends an empty room.
func (l *Ledger) BuyRoom(unitPrice decimal.Decimal, maxRooms int) (decimal.Decimal, error) {
	if maxRooms > 0 && len(l.Rooms) >= maxRooms {
		return decimal.Zero, ErrRoomLimit
	}
	cost := l.RoomPrice(unitPrice)
	if err := l.Debit(cost); err != nil {
		return decimal.Zero, err
	}
	l.Rooms = append(l.Rooms, Room{})
	return cost, nil
}

// BuyLand debits the current land price and raises the next one by step.
func (l *Ledger) BuyLand(step decimal.Decimal) (decimal.Decimal, error) {
	price := l.Farm.NextLandPrice
	if err := l.Debit(price); err != nil {
		return decimal.Zero, err
	}
	l.Farm.Lands++
	l.Farm.NextLandPrice = price.Add(step)
	return price, nil
}

// PlacedPower sums the power of every placed unit regardless of energy.
func (l *Ledger) PlacedPower(catalog Catalog) float64 {
	var total float64
	for _, room := range l.Rooms {
		for _, rack := range room.Racks {
			if rack == nil {
				continue
			}
			for _, unitID := range rack.Units {
				if unitID == "" {
					continue
				}
				if p, ok := catalog.UnitPower(unitID); ok {
					total += p
				}
			}
		}
	}
	return total
}

// TotalPower is the effective mining power: zero once energy is depleted.
func (l *Ledger) TotalPower(catalog Catalog) float64 {
	if l.Energy <= 0 {
		return 0
	}
	return l.PlacedPower(catalog)
}
