package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lulacoin-miner-backend/internal/services"
)

const baseRate = 0.015

func TestComputeAccrualElapsedBound(t *testing.T) {
	acc := services.ComputeAccrual(5, 100, 60, baseRate)

	assert.InDelta(t, 300, acc.CoinsEarned, 1e-9)
	assert.InDelta(t, 95.5, acc.EnergyAfter, 1e-9)
	assert.InDelta(t, 60, acc.ActiveSeconds, 1e-9)
}

func TestComputeAccrualEnergyExhaustion(t *testing.T) {
	acc := services.ComputeAccrual(5, 1, 3600, baseRate)

	assert.InDelta(t, 13.333, acc.ActiveSeconds, 1e-3)
	assert.InDelta(t, 66.667, acc.CoinsEarned, 1e-3)
	assert.Equal(t, 0.0, acc.EnergyAfter)
}

func TestComputeAccrualZeroPower(t *testing.T) {
	acc := services.ComputeAccrual(0, 80, 3600, baseRate)
	assert.Zero(t, acc.CoinsEarned)
	assert.Equal(t, 80.0, acc.EnergyAfter)

	acc = services.ComputeAccrual(20, 0, 3600, baseRate)
	assert.Zero(t, acc.CoinsEarned)
	assert.Zero(t, acc.Power)
	assert.Equal(t, 0.0, acc.EnergyAfter)
}

func TestComputeAccrualClampsInput(t *testing.T) {
	acc := services.ComputeAccrual(5, 50, -30, baseRate)
	assert.Zero(t, acc.CoinsEarned)
	assert.Equal(t, 50.0, acc.EnergyAfter)

	acc = services.ComputeAccrual(5, 250, 10, baseRate)
	assert.Equal(t, 100.0, acc.EnergyBefore)
}

func TestComputeAccrualEnergyFloor(t *testing.T) {
	for _, power := range []float64{0, 1, 5, 20, 100, 1000} {
		for _, energy := range []float64{0, 0.01, 1, 50, 100} {
			for _, elapsed := range []float64{0, 0.5, 1, 60, 3600, 86400 * 30} {
				acc := services.ComputeAccrual(power, energy, elapsed, baseRate)
				assert.GreaterOrEqual(t, acc.EnergyAfter, 0.0)
				assert.LessOrEqual(t, acc.EnergyAfter, energy)
				assert.GreaterOrEqual(t, acc.CoinsEarned, 0.0)
			}
		}
	}
}
