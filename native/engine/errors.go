package engine

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState = errors.New("engine: state not configured")

	// ErrInvalidAmount rejects zero or negative amounts where a positive
	// amount is required.
	ErrInvalidAmount = errors.New("engine: amount must be positive")
	// ErrAssetNotAllowed rejects collateral assets missing from the registry.
	ErrAssetNotAllowed = errors.New("engine: collateral asset not registered")
	// ErrConfigurationMismatch indicates invalid construction input, e.g.
	// asset and price feed lists of different lengths or a duplicate asset.
	ErrConfigurationMismatch = errors.New("engine: configuration mismatch")
	// ErrTransferFailed indicates an external value movement did not succeed.
	// The enclosing operation is rolled back in full.
	ErrTransferFailed = errors.New("engine: external transfer failed")
	// ErrInsufficientBalance indicates a balance subtraction would underflow.
	// Underflow is fatal to the call, never clamped to zero.
	ErrInsufficientBalance = errors.New("engine: insufficient balance")
	// ErrHealthFactorBroken indicates the post-condition health check failed
	// after a debt-increasing or collateral-reducing operation.
	ErrHealthFactorBroken = errors.New("engine: health factor below minimum")
	// ErrPositionHealthy rejects liquidation of a sufficiently collateralized
	// position.
	ErrPositionHealthy = errors.New("engine: position not eligible for liquidation")
	// ErrHealthFactorNotImproved rejects liquidations that leave the target no
	// better off than before.
	ErrHealthFactorNotImproved = errors.New("engine: liquidation did not improve target health")
	// ErrMintFailed indicates the liability token declined to mint.
	ErrMintFailed = errors.New("engine: liability token mint declined")
	// ErrNotAuthorized rejects operations on another address's position
	// without an explicit operator approval.
	ErrNotAuthorized = errors.New("engine: caller not authorized for position")
	// ErrReentrantCall rejects a value-moving operation entered while another
	// one is already in progress, instead of deadlocking.
	ErrReentrantCall = errors.New("engine: reentrant call rejected")
)

// HealthFactorBrokenError carries the offending health factor alongside the
// ErrHealthFactorBroken sentinel so callers can report the current value.
type HealthFactorBrokenError struct {
	HealthFactor *big.Int
}

func (e *HealthFactorBrokenError) Error() string {
	return fmt.Sprintf("engine: health factor below minimum: %s", e.HealthFactor)
}

// Unwrap lets errors.Is match the sentinel.
func (e *HealthFactorBrokenError) Unwrap() error { return ErrHealthFactorBroken }
