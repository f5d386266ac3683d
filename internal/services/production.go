package services

import (
	"math"

	"lulacoin-miner-backend/internal/models"
)

// Accrual is the outcome of running the mining layout for a span of time.
type Accrual struct {
	Power         float64 `json:"power"`
	ActiveSeconds float64 `json:"active_seconds"`
	CoinsEarned   float64 `json:"coins_earned"`
	EnergyBefore  float64 `json:"energy_before"`
	EnergyAfter   float64 `json:"energy_after"`
}

// ComputeAccrual mines one coin per unit of power per second until elapsed time or energy runs out.
// Energy drains at totalPower*baseRate per second. Out of range input is clamped.
func ComputeAccrual(totalPower, energyBefore, elapsedSeconds, baseRate float64) Accrual {
	energyBefore = models.ClampEnergy(energyBefore)
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) {
		elapsedSeconds = 0
	}
	if energyBefore <= 0 || totalPower < 0 {
		totalPower = 0
	}

	acc := Accrual{Power: totalPower, EnergyBefore: energyBefore, EnergyAfter: energyBefore}
	if totalPower == 0 || baseRate <= 0 {
		return acc
	}

	consumptionRate := totalPower * baseRate
	maxSustainable := energyBefore / consumptionRate
	if elapsedSeconds >= maxSustainable {
		acc.ActiveSeconds = maxSustainable
		acc.EnergyAfter = 0
	} else {
		acc.ActiveSeconds = elapsedSeconds
		acc.EnergyAfter = math.Max(0, energyBefore-consumptionRate*elapsedSeconds)
	}
	acc.CoinsEarned = totalPower * acc.ActiveSeconds
	return acc
}

type ProductionCalculator struct {
	catalog  models.Catalog
	baseRate float64
}

func NewProductionCalculator(catalog models.Catalog, baseRate float64) *ProductionCalculator {
	return &ProductionCalculator{catalog: catalog, baseRate: baseRate}
}

// Compute runs ComputeAccrual against the placed units of a ledger.
func (p *ProductionCalculator) Compute(ledger *models.Ledger, energyBefore, elapsedSeconds float64) Accrual {
	power := 0.0
	if energyBefore > 0 {
		power = ledger.PlacedPower(p.catalog)
	}
	return ComputeAccrual(power, energyBefore, elapsedSeconds, p.baseRate)
}
