package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	EventTypeCollateralDeposited = "engine.collateral.deposited"
	EventTypeCollateralRedeemed  = "engine.collateral.redeemed"
	EventTypeDebtMinted          = "engine.debt.minted"
	EventTypeDebtBurned          = "engine.debt.burned"
	EventTypePositionLiquidated  = "engine.position.liquidated"
)

// CollateralDeposited records collateral entering the vault.
type CollateralDeposited struct {
	From   common.Address
	To     common.Address
	Asset  common.Address
	Amount *big.Int
}

// EventType implements the events.Event interface.
func (CollateralDeposited) EventType() string { return EventTypeCollateralDeposited }

// CollateralRedeemed records collateral leaving a position. From is the
// position owner; To is the recipient of the released assets.
type CollateralRedeemed struct {
	From   common.Address
	To     common.Address
	Asset  common.Address
	Amount *big.Int
}

// EventType implements the events.Event interface.
func (CollateralRedeemed) EventType() string { return EventTypeCollateralRedeemed }

// DebtMinted records new liability issued against an account's collateral.
type DebtMinted struct {
	Account common.Address
	Amount  *big.Int
}

// EventType implements the events.Event interface.
func (DebtMinted) EventType() string { return EventTypeDebtMinted }

// DebtBurned records liability retired from an account's ledger entry. Payer
// is the address the tokens were pulled from.
type DebtBurned struct {
	Account common.Address
	Payer   common.Address
	Amount  *big.Int
}

// EventType implements the events.Event interface.
func (DebtBurned) EventType() string { return EventTypeDebtBurned }

// PositionLiquidated records a seizure restoring an unhealthy position.
type PositionLiquidated struct {
	Liquidator       common.Address
	Target           common.Address
	Asset            common.Address
	DebtCovered      *big.Int
	CollateralSeized *big.Int
}

// EventType implements the events.Event interface.
func (PositionLiquidated) EventType() string { return EventTypePositionLiquidated }
