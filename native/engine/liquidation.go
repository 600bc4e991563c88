package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Liquidate lets a third party repay debtToCover (a USD-denominated liability
// amount) on an unhealthy target position in exchange for the equivalent
// collateral plus the liquidation bonus. The seized collateral amount is
// returned.
//
// Known limitation: when the protocol is only exactly 100% collateralized
// system-wide, a partial liquidation with a positive bonus can be
// mathematically infeasible. There is not enough collateral to cover both the
// debt equivalent and the bonus, and the seizure surfaces
// ErrInsufficientBalance. The operator pause switch is the circuit breaker
// for that regime; the seizure formula itself is left untouched.
func (e *Engine) Liquidate(caller, collateralAsset, target common.Address, debtToCover *big.Int) (*big.Int, error) {
	unlock, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !e.registry.allowed(collateralAsset) {
		return nil, ErrAssetNotAllowed
	}

	targetPosition, err := e.loadPosition(target)
	if err != nil {
		return nil, err
	}
	startingHealth, err := e.healthFactorOf(targetPosition)
	if err != nil {
		return nil, err
	}
	if startingHealth.Cmp(minHealthFactor) >= 0 {
		return nil, ErrPositionHealthy
	}

	price, err := e.assetPrice(collateralAsset)
	if err != nil {
		return nil, err
	}
	tokenAmount := assetAmountFromUsd(debtToCover, price)
	bonus := percentOf(tokenAmount, e.params.LiquidationBonusPercent)
	seized := new(big.Int).Add(tokenAmount, bonus)

	if err := removeCollateral(targetPosition, collateralAsset, seized); err != nil {
		return nil, err
	}
	if err := decreaseDebt(targetPosition, debtToCover); err != nil {
		return nil, err
	}

	endingHealth, err := e.healthFactorOf(targetPosition)
	if err != nil {
		return nil, err
	}
	if endingHealth.Cmp(startingHealth) <= 0 {
		return nil, ErrHealthFactorNotImproved
	}

	// The seizure pays out to the caller's wallet, not their vault position,
	// so their position is evaluated as-is. A liquidator that is itself
	// undercollateralized is rejected.
	callerPosition := targetPosition
	if caller != target {
		callerPosition, err = e.loadPosition(caller)
		if err != nil {
			return nil, err
		}
	}
	if err := e.assertHealthy(callerPosition); err != nil {
		return nil, err
	}

	if err := e.liability.TransferFrom(caller, e.treasury, debtToCover); err != nil {
		return nil, transferFailed(err)
	}
	if err := e.liability.Burn(debtToCover); err != nil {
		// Nothing has been persisted; hand the pulled tokens back.
		if refundErr := e.liability.Transfer(caller, debtToCover); refundErr != nil {
			return nil, fmt.Errorf("%w: burn declined and token refund failed: %v", ErrTransferFailed, refundErr)
		}
		return nil, transferFailed(err)
	}
	if err := e.collateral.Push(caller, collateralAsset, seized); err != nil {
		// The covered debt was already retired; restore the caller before
		// reporting the failed push.
		if mintErr := e.liability.Mint(caller, debtToCover); mintErr != nil {
			return nil, fmt.Errorf("%w: collateral push and token restore both failed: %v", ErrTransferFailed, mintErr)
		}
		return nil, transferFailed(err)
	}

	if err := e.state.PutPosition(target, targetPosition); err != nil {
		return nil, err
	}
	e.emit(CollateralRedeemed{From: target, To: caller, Asset: collateralAsset, Amount: new(big.Int).Set(seized)})
	e.emit(PositionLiquidated{
		Liquidator:       caller,
		Target:           target,
		Asset:            collateralAsset,
		DebtCovered:      new(big.Int).Set(debtToCover),
		CollateralSeized: seized,
	})
	return new(big.Int).Set(seized), nil
}
