package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

type ItemCategory string

const (
	CategoryUnit ItemCategory = "unit"
	CategoryRack ItemCategory = "rack"
)

type UnitSpec struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Power float64         `json:"power"`
	Price decimal.Decimal `json:"price"`
}

type RackSpec struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Slots int             `json:"slots"`
	Price decimal.Decimal `json:"price"`
}

// Catalog resolves static properties of purchasable items.
type Catalog interface {
	UnitPower(unitID string) (float64, bool)
	UnitPrice(unitID string) (decimal.Decimal, bool)
	SlotCapacity(rackID string) (int, bool)
	RackPrice(rackID string) (decimal.Decimal, bool)
}

type StaticCatalog struct {
	units map[string]UnitSpec
	racks map[string]RackSpec
}

func NewStaticCatalog(units []UnitSpec, racks []RackSpec) *StaticCatalog {
	c := &StaticCatalog{
		units: make(map[string]UnitSpec, len(units)),
		racks: make(map[string]RackSpec, len(racks)),
	}
	for _, u := range units {
		c.units[u.ID] = u
	}
	for _, r := range racks {
		c.racks[r.ID] = r
	}
	return c
}

// DefaultCatalog is the shop of the LulaCoin miner.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(
		[]UnitSpec{
			{ID: "miner001", Name: "GPU Básica", Power: 1, Price: decimal.NewFromInt(10)},
			{ID: "miner002", Name: "ASIC Médio", Power: 5, Price: decimal.NewFromInt(30)},
			{ID: "miner003", Name: "ASIC Avançado", Power: 20, Price: decimal.NewFromInt(180)},
			{ID: "miner004", Name: "Super ASIC", Power: 100, Price: decimal.NewFromInt(800)},
		},
		[]RackSpec{
			{ID: "rack001", Name: "Rack Pequeno", Slots: 2, Price: decimal.NewFromInt(20)},
			{ID: "rack002", Name: "Rack Médio", Slots: 4, Price: decimal.NewFromInt(30)},
			{ID: "rack003", Name: "Rack Grande", Slots: 6, Price: decimal.NewFromInt(100)},
		},
	)
}

func (c *StaticCatalog) UnitPower(unitID string) (float64, bool) {
	u, ok := c.units[unitID]
	return u.Power, ok
}

func (c *StaticCatalog) UnitPrice(unitID string) (decimal.Decimal, bool) {
	u, ok := c.units[unitID]
	return u.Price, ok
}

func (c *StaticCatalog) SlotCapacity(rackID string) (int, bool) {
	r, ok := c.racks[rackID]
	return r.Slots, ok
}

func (c *StaticCatalog) RackPrice(rackID string) (decimal.Decimal, bool) {
	r, ok := c.racks[rackID]
	return r.Price, ok
}

func (c *StaticCatalog) Units() []UnitSpec {
	out := make([]UnitSpec, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *StaticCatalog) Racks() []RackSpec {
	out := make([]RackSpec, 0, len(c.racks))
	for _, r := range c.racks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Price looks up an item of either category.
func Price(c Catalog, category ItemCategory, itemID string) (decimal.Decimal, error) {
	var (
		price decimal.Decimal
		ok    bool
	)
	switch category {
	case CategoryUnit:
		price, ok = c.UnitPrice(itemID)
	case CategoryRack:
		price, ok = c.RackPrice(itemID)
	}
	if !ok {
		return decimal.Zero, ErrUnknownItem
	}
	return price, nil
}
