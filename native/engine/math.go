package engine

import (
	"math/big"

	"github.com/holiman/uint256"
)

const moduleName = "engine"

// liquidationPrecision is the denominator for the threshold and bonus
// percentages.
const liquidationPrecision = 100

// targetDecimals is the fixed-point scale shared by the liability token and
// every USD-denominated value inside the engine.
const targetDecimals = 18

var (
	// precision is the 1e18 fixed-point scale.
	precision = big.NewInt(1_000_000_000_000_000_000)
	// minHealthFactor is 1.0 at the fixed-point scale. Positions at or above
	// it are healthy.
	minHealthFactor = new(big.Int).Set(precision)
	// maxHealthFactor is the value reported for unleveraged positions. A
	// position with no debt never divides by zero.
	maxHealthFactor = new(uint256.Int).SetAllOne().ToBig()

	bigTen = big.NewInt(10)
)

// normalizePrice scales a feed answer with the given fractional digits to the
// engine's 1e18 fixed-point scale.
func normalizePrice(answer *big.Int, decimals uint8) *big.Int {
	if answer == nil {
		return new(big.Int)
	}
	if decimals == targetDecimals {
		return new(big.Int).Set(answer)
	}
	if decimals < targetDecimals {
		scale := new(big.Int).Exp(bigTen, big.NewInt(int64(targetDecimals-decimals)), nil)
		return new(big.Int).Mul(answer, scale)
	}
	scale := new(big.Int).Exp(bigTen, big.NewInt(int64(decimals-targetDecimals)), nil)
	return new(big.Int).Quo(answer, scale)
}

// usdValue converts an asset amount into its USD value using a 1e18-scaled
// price. Truncation rounds down, in the protocol's favour.
func usdValue(price, amount *big.Int) *big.Int {
	value := new(big.Int).Mul(price, amount)
	return value.Quo(value, precision)
}

// assetAmountFromUsd converts a USD-denominated amount into the equivalent
// asset quantity at a 1e18-scaled price. Truncation rounds down so a
// liquidator is never handed more collateral than the covered debt is worth.
func assetAmountFromUsd(usdAmount, price *big.Int) *big.Int {
	amount := new(big.Int).Mul(usdAmount, precision)
	return amount.Quo(amount, price)
}

// percentOf returns amount * pct / 100, truncated.
func percentOf(amount *big.Int, pct uint64) *big.Int {
	value := new(big.Int).Mul(amount, new(big.Int).SetUint64(pct))
	return value.Quo(value, big.NewInt(liquidationPrecision))
}
