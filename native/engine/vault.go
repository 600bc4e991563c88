package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The collateral vault mutates a position's per-asset deposits. Every
// subtraction is bounds-checked first; going negative is fatal to the call.

func (e *Engine) addCollateral(position *Position, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !e.registry.allowed(asset) {
		return ErrAssetNotAllowed
	}
	position.ensureDefaults()
	current := position.Collateral[asset]
	if current == nil {
		current = big.NewInt(0)
	}
	position.Collateral[asset] = new(big.Int).Add(current, amount)
	return nil
}

func removeCollateral(position *Position, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position.ensureDefaults()
	current := position.Collateral[asset]
	if current == nil || current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	position.Collateral[asset] = new(big.Int).Sub(current, amount)
	return nil
}
