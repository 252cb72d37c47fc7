package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// buildRawTransaction turns the selected inputs into a raw transaction
// via the node: one output to the destination, one with the change. Zero
// change means no change output at all - zero-value outputs are rejected
// or wasted on real networks.
func (s *Service) buildRawTransaction(ctx context.Context, pending *pendingTransaction) error {
	total := sumInputs(pending.inputs)
	change := total.Sub(pending.amount).Sub(pending.fee)
	if change.IsNegative() {
		return fmt.Errorf("%w: inputs %s do not cover amount %s + fee %s",
			ErrNegativeChange, total, pending.amount, pending.fee)
	}

	outputs := map[string]decimal.Decimal{
		pending.destination: pending.amount,
	}
	if change.IsPositive() {
		if pending.changeAddress == pending.destination {
			// Выплата на собственный адрес пула: сдача складывается в
			// тот же выход, вторая строка с тем же адресом невозможна.
			outputs[pending.destination] = pending.amount.Add(change)
		} else {
			outputs[pending.changeAddress] = change
		}
	}

	rawHex, err := s.node.CreateRawTransaction(ctx, pending.inputs, outputs)
	if err != nil {
		return fmt.Errorf("createrawtransaction failed: %w", err)
	}

	pending.total = total
	pending.change = change
	pending.rawHex = rawHex
	return nil
}

// verifyBuiltTransaction decodes the raw hex back and checks the output
// set matches what was requested before anything gets signed: addresses,
// count and amounts.
func (s *Service) verifyBuiltTransaction(ctx context.Context, pending *pendingTransaction) error {
	decoded, err := s.node.DecodeRawTransaction(ctx, pending.rawHex)
	if err != nil {
		return fmt.Errorf("decoderawtransaction failed: %w", err)
	}

	expected := 1
	if pending.change.IsPositive() && pending.changeAddress != pending.destination {
		expected = 2
	}
	if len(decoded.Outputs) != expected {
		return fmt.Errorf("built transaction has %d outputs, expected %d", len(decoded.Outputs), expected)
	}

	for _, out := range decoded.Outputs {
		switch out.Address {
		case pending.destination:
			want := pending.amount
			if pending.changeAddress == pending.destination {
				want = want.Add(pending.change)
			}
			if !out.Amount.Equal(want) {
				return fmt.Errorf("built transaction pays %s to destination, expected %s", out.Amount, want)
			}
		case pending.changeAddress:
			if !out.Amount.Equal(pending.change) {
				return fmt.Errorf("built transaction returns %s change, expected %s", out.Amount, pending.change)
			}
		default:
			return fmt.Errorf("built transaction pays unexpected address %s", out.Address)
		}
	}
	return nil
}
