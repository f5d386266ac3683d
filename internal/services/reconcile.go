package services

import (
	"time"

	"github.com/shopspring/decimal"

	"lulacoin-miner-backend/internal/models"
)

const minReconcileInterval = time.Second

// coinPrecision bounds the decimal places kept from float accrual.
const coinPrecision = 8

// Reconcile settles idle production on the ledger up to now and reports whether accrual ran.
// Spans shorter than a second are not accrued, but LastReconciledAt is always moved to now.
// The caller persists the ledger.
func Reconcile(ledger *models.Ledger, now time.Time, calc *ProductionCalculator) (Accrual, bool) {
	elapsed := now.Sub(ledger.LastReconciledAt)
	if elapsed < 0 {
		elapsed = 0
	}
	ledger.LastReconciledAt = now

	if elapsed < minReconcileInterval {
		return Accrual{EnergyBefore: ledger.Energy, EnergyAfter: ledger.Energy}, false
	}

	acc := calc.Compute(ledger, ledger.Energy, elapsed.Seconds())
	if acc.CoinsEarned > 0 {
		coins := decimal.NewFromFloat(acc.CoinsEarned).Round(coinPrecision)
		ledger.Credit(coins)
		ledger.TotalMined = ledger.TotalMined.Add(coins)
	}
	ledger.Energy = acc.EnergyAfter
	return acc, true
}
