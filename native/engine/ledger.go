package engine

import "math/big"

// The debt ledger mutates a position's outstanding liability. It has no
// external entry points; only the mint/burn/liquidation orchestration in this
// package calls it.

func increaseDebt(position *Position, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position.ensureDefaults()
	position.Debt = new(big.Int).Add(position.Debt, amount)
	return nil
}

func decreaseDebt(position *Position, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position.ensureDefaults()
	if position.Debt.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	position.Debt = new(big.Int).Sub(position.Debt, amount)
	return nil
}
