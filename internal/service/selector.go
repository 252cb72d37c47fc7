package service

import (
	"fmt"
	"sort"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/shopspring/decimal"
)

// SelectUnspent picks inputs covering target from the pool's UTXO set.
// Largest-first keeps the input count small; ties break by txid then
// vout so the choice is reproducible. Accumulation stops as soon as the
// target is met. The shortfall check happens only after the whole set is
// exhausted - a partial scan must never report insufficient funds, and a
// partial accumulation must never be returned as a result.
func SelectUnspent(unspent []models.UnspentOutput, target decimal.Decimal) ([]models.UnspentOutput, decimal.Decimal, error) {
	candidates := make([]models.UnspentOutput, 0, len(unspent))
	for _, utxo := range unspent {
		if utxo.Spendable {
			candidates = append(candidates, utxo)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Amount.Equal(candidates[j].Amount) {
			return candidates[i].Amount.GreaterThan(candidates[j].Amount)
		}
		if candidates[i].TxID != candidates[j].TxID {
			return candidates[i].TxID < candidates[j].TxID
		}
		return candidates[i].Vout < candidates[j].Vout
	})

	total := decimal.Zero
	selected := make([]models.UnspentOutput, 0, len(candidates))
	for _, utxo := range candidates {
		selected = append(selected, utxo)
		total = total.Add(utxo.Amount)
		if total.GreaterThanOrEqual(target) {
			return selected, total, nil
		}
	}

	return nil, decimal.Zero, fmt.Errorf("%w: spendable total %s is less than required %s",
		ErrInsufficientFunds, total, target)
}
