package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The health factor calculator is a pure read over a position and the oracle.
// It never mutates state; the only failures it can surface are oracle input
// errors (stale or non-positive prices), which are fatal to the enclosing
// operation rather than silently skipped.

// HealthFactor returns the risk scalar for an account at the 1e18 fixed-point
// scale. An account with no debt reports the maximum representable value.
func (e *Engine) HealthFactor(addr common.Address) (*big.Int, error) {
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.healthFactorOf(position)
}

func (e *Engine) healthFactorOf(position *Position) (*big.Int, error) {
	if position == nil || position.Debt == nil || position.Debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	collateralValue, err := e.collateralValueOf(position)
	if err != nil {
		return nil, err
	}
	adjusted := percentOf(collateralValue, e.params.LiquidationThresholdPercent)
	health := new(big.Int).Mul(adjusted, precision)
	return health.Quo(health, position.Debt), nil
}

// collateralValueOf sums the USD value of the position's collateral, walking
// the registry in insertion order with each feed's precision normalized to the
// 1e18 scale.
func (e *Engine) collateralValueOf(position *Position) (*big.Int, error) {
	total := big.NewInt(0)
	if position == nil || position.Collateral == nil {
		return total, nil
	}
	for _, asset := range e.registry.ordered {
		amount := position.Collateral[asset]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		price, err := e.assetPrice(asset)
		if err != nil {
			return nil, err
		}
		total = total.Add(total, usdValue(price, amount))
	}
	return total, nil
}

// assetPrice resolves the asset's current 1e18-scaled USD price, enforcing the
// oracle freshness and positivity rules.
func (e *Engine) assetPrice(asset common.Address) (*big.Int, error) {
	binding, ok := e.registry.binding(asset)
	if !ok {
		return nil, ErrAssetNotAllowed
	}
	round, err := binding.Source.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if err := e.policy.Validate(round); err != nil {
		return nil, err
	}
	return normalizePrice(round.Answer, binding.Source.Decimals()), nil
}

// assertHealthy fails with the offending value when the position sits below
// the minimum health factor. It gates every debt-increasing or
// collateral-reducing operation as a post-condition.
func (e *Engine) assertHealthy(position *Position) error {
	health, err := e.healthFactorOf(position)
	if err != nil {
		return err
	}
	if health.Cmp(minHealthFactor) < 0 {
		return &HealthFactorBrokenError{HealthFactor: health}
	}
	return nil
}

// AccountInformation returns the account's outstanding debt and total
// collateral USD value.
func (e *Engine) AccountInformation(addr common.Address) (debt *big.Int, collateralValue *big.Int, err error) {
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, nil, err
	}
	collateralValue, err = e.collateralValueOf(position)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(position.Debt), collateralValue, nil
}

// CollateralValue returns the USD value of the account's deposited collateral.
func (e *Engine) CollateralValue(addr common.Address) (*big.Int, error) {
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.collateralValueOf(position)
}

// CollateralBalance returns the account's deposited amount of a single asset.
// Unknown accounts and assets report zero.
func (e *Engine) CollateralBalance(addr, asset common.Address) (*big.Int, error) {
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return position.CollateralOf(asset), nil
}

// UsdValue converts an asset amount to its USD value at the current oracle
// price.
func (e *Engine) UsdValue(asset common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.assetPrice(asset)
	if err != nil {
		return nil, err
	}
	return usdValue(price, amount), nil
}

// TokenAmountFromUsd converts a USD-denominated amount into the equivalent
// asset quantity at the current oracle price. Liquidation bots use it to size
// debtToCover against available collateral.
func (e *Engine) TokenAmountFromUsd(asset common.Address, usdAmount *big.Int) (*big.Int, error) {
	if usdAmount == nil || usdAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.assetPrice(asset)
	if err != nil {
		return nil, err
	}
	return assetAmountFromUsd(usdAmount, price), nil
}
