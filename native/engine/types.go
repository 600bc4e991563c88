package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"synthd/native/oracle"
)

// Position maintains a single account's ledger entry: deposited collateral per
// asset and outstanding minted liability. Amounts are wei-denominated big
// integers and never negative; a position with all-zero balances is
// indistinguishable from an absent one.
type Position struct {
	Collateral map[common.Address]*big.Int
	Debt       *big.Int
}

// NewPosition returns an empty position.
func NewPosition() *Position {
	return &Position{
		Collateral: make(map[common.Address]*big.Int),
		Debt:       big.NewInt(0),
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return NewPosition()
	}
	clone := NewPosition()
	for asset, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[asset] = new(big.Int).Set(amount)
		}
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	return clone
}

// CollateralOf returns the deposited amount for the asset, zero when absent.
func (p *Position) CollateralOf(asset common.Address) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if amount, ok := p.Collateral[asset]; ok && amount != nil {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

// IsZero reports whether the position carries no collateral and no debt.
func (p *Position) IsZero() bool {
	if p == nil {
		return true
	}
	if p.Debt != nil && p.Debt.Sign() != 0 {
		return false
	}
	for _, amount := range p.Collateral {
		if amount != nil && amount.Sign() != 0 {
			return false
		}
	}
	return true
}

func (p *Position) ensureDefaults() {
	if p.Collateral == nil {
		p.Collateral = make(map[common.Address]*big.Int)
	}
	if p.Debt == nil {
		p.Debt = big.NewInt(0)
	}
}

// RiskParameters groups the safety limits governing issuance and liquidation.
type RiskParameters struct {
	// LiquidationThresholdPercent is the share of collateral value counted
	// toward the health factor. 50 means positions must be 200%
	// overcollateralized to sit at the minimum health factor.
	LiquidationThresholdPercent uint64
	// LiquidationBonusPercent is the incentive paid to liquidators on top of
	// the seized collateral equivalent of the covered debt.
	LiquidationBonusPercent uint64
}

// DefaultRiskParameters returns the canonical 200% overcollateralization with
// a 10% liquidation bonus.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		LiquidationThresholdPercent: 50,
		LiquidationBonusPercent:     10,
	}
}

// Validate rejects parameter combinations that would break the health factor
// arithmetic.
func (p RiskParameters) Validate() error {
	if p.LiquidationThresholdPercent == 0 || p.LiquidationThresholdPercent > liquidationPrecision {
		return fmt.Errorf("%w: liquidation threshold %d out of (0, %d]", ErrConfigurationMismatch, p.LiquidationThresholdPercent, liquidationPrecision)
	}
	if p.LiquidationBonusPercent >= liquidationPrecision {
		return fmt.Errorf("%w: liquidation bonus %d must be below %d", ErrConfigurationMismatch, p.LiquidationBonusPercent, liquidationPrecision)
	}
	return nil
}

// FeedBinding couples a registered collateral asset with its price feed
// address and source.
type FeedBinding struct {
	FeedAddress common.Address
	Source      oracle.PriceFeed
}

// LiabilityToken is the capability surface the engine consumes to issue and
// retire the dollar-pegged liability. The token itself (supply tracking,
// transfer semantics) lives outside the core.
type LiabilityToken interface {
	Mint(to common.Address, amount *big.Int) error
	Burn(amount *big.Int) error
	Transfer(to common.Address, amount *big.Int) error
	TransferFrom(from, to common.Address, amount *big.Int) error
	TotalSupply() *big.Int
}

// CollateralBridge moves collateral assets between external holders and the
// engine treasury. Pull debits the holder into custody; Push releases custody
// back out.
type CollateralBridge interface {
	Pull(from, asset common.Address, amount *big.Int) error
	Push(to, asset common.Address, amount *big.Int) error
}
