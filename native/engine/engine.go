package engine

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"synthd/core/events"
	nativecommon "synthd/native/common"
	"synthd/native/oracle"
)

// Engine is the overcollateralized synthetic-dollar issuance core. Users lock
// registered collateral assets, mint a dollar-pegged liability against them,
// and the engine enforces the minimum health factor on every debt-increasing
// or collateral-reducing call.
//
// Execution is serialized and atomic per call: operations mutate detached
// position copies, run every check, perform the external transfers, and only
// then persist. Any failure discards the copies so no partial state survives.
type Engine struct {
	mu            sync.Mutex
	state         State
	registry      *assetRegistry
	liability     LiabilityToken
	liabilityAddr common.Address
	treasury      common.Address
	collateral    CollateralBridge
	params        RiskParameters
	policy        oracle.Policy
	emitter       events.Emitter
	pauses        nativecommon.PauseView
}

// New constructs an engine over the provided asset registry and capabilities.
// The asset and feed lists must match one-for-one; construction fails on a
// length mismatch or duplicate asset.
func New(assets []common.Address, feeds []FeedBinding, liability LiabilityToken, liabilityAddr common.Address, bridge CollateralBridge, treasury common.Address, params RiskParameters) (*Engine, error) {
	registry, err := newAssetRegistry(assets, feeds)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if liability == nil {
		return nil, fmt.Errorf("%w: nil liability token", ErrConfigurationMismatch)
	}
	if bridge == nil {
		return nil, fmt.Errorf("%w: nil collateral bridge", ErrConfigurationMismatch)
	}
	if liabilityAddr == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero liability token address", ErrConfigurationMismatch)
	}
	if treasury == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero treasury address", ErrConfigurationMismatch)
	}
	return &Engine{
		state:         NewMemoryState(),
		registry:      registry,
		liability:     liability,
		liabilityAddr: liabilityAddr,
		treasury:      treasury,
		collateral:    bridge,
		params:        params,
		emitter:       events.NoopEmitter{},
	}, nil
}

// SetState wires the engine to an external persistence layer, replacing the
// default in-memory state.
func (e *Engine) SetState(state State) {
	if e == nil || state == nil {
		return
	}
	e.state = state
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetOraclePolicy configures the freshness rules applied to every price read.
func (e *Engine) SetOraclePolicy(policy oracle.Policy) {
	if e == nil {
		return
	}
	e.policy = policy
}

// enter engages the pause guard and the scoped non-reentrant lock held for the
// duration of any value-moving operation. Re-entering while a call is in
// progress fails immediately instead of deadlocking.
func (e *Engine) enter() (func(), error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.mu.TryLock() {
		return nil, ErrReentrantCall
	}
	return e.mu.Unlock, nil
}

func (e *Engine) loadPosition(addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = NewPosition()
	}
	position.ensureDefaults()
	return position, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func transferFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrTransferFailed, err)
}

// DepositCollateral locks amount of asset from the caller into the vault. A
// failed pull rolls the whole call back.
func (e *Engine) DepositCollateral(caller, asset common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	position, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	if err := e.addCollateral(position, asset, amount); err != nil {
		return err
	}
	if err := e.collateral.Pull(caller, asset, amount); err != nil {
		return transferFailed(err)
	}
	if err := e.state.PutPosition(caller, position); err != nil {
		return err
	}
	e.emit(CollateralDeposited{From: caller, To: e.treasury, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint issues amount of the liability token against the caller's collateral.
// The caller's health factor is checked before any token leaves the engine.
func (e *Engine) Mint(caller common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	position, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	if err := e.mintLocked(caller, position, amount); err != nil {
		return err
	}
	if err := e.state.PutPosition(caller, position); err != nil {
		return err
	}
	e.emit(DebtMinted{Account: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) mintLocked(caller common.Address, position *Position, amount *big.Int) error {
	if err := increaseDebt(position, amount); err != nil {
		return err
	}
	if err := e.assertHealthy(position); err != nil {
		return err
	}
	if err := e.liability.Mint(caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	return nil
}

// DepositCollateralAndMint locks collateral and issues liability in one
// atomic call.
func (e *Engine) DepositCollateralAndMint(caller, asset common.Address, collateralAmount, mintAmount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	position, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	if err := e.addCollateral(position, asset, collateralAmount); err != nil {
		return err
	}
	if err := increaseDebt(position, mintAmount); err != nil {
		return err
	}
	if err := e.assertHealthy(position); err != nil {
		return err
	}
	if err := e.collateral.Pull(caller, asset, collateralAmount); err != nil {
		return transferFailed(err)
	}
	if err := e.liability.Mint(caller, mintAmount); err != nil {
		// Nothing has been persisted; return the pulled collateral.
		if pushErr := e.collateral.Push(caller, asset, collateralAmount); pushErr != nil {
			return fmt.Errorf("%w: mint declined and collateral refund failed: %v", ErrTransferFailed, pushErr)
		}
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if err := e.state.PutPosition(caller, position); err != nil {
		return err
	}
	e.emit(CollateralDeposited{From: caller, To: e.treasury, Asset: asset, Amount: new(big.Int).Set(collateralAmount)})
	e.emit(DebtMinted{Account: caller, Amount: new(big.Int).Set(mintAmount)})
	return nil
}

// RedeemCollateral releases amount of asset from the caller's own position.
// The remaining position must stay healthy.
func (e *Engine) RedeemCollateral(caller, asset common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	return e.redeemLocked(caller, caller, asset, amount)
}

// RedeemCollateralFrom releases collateral from another address's position to
// the caller. It requires an explicit operator approval from the owner.
func (e *Engine) RedeemCollateralFrom(caller, owner, asset common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	if err := e.authorize(caller, owner); err != nil {
		return err
	}
	return e.redeemLocked(owner, caller, asset, amount)
}

func (e *Engine) redeemLocked(owner, recipient, asset common.Address, amount *big.Int) error {
	position, err := e.loadPosition(owner)
	if err != nil {
		return err
	}
	if !e.registry.allowed(asset) {
		return ErrAssetNotAllowed
	}
	if err := removeCollateral(position, asset, amount); err != nil {
		return err
	}
	if err := e.assertHealthy(position); err != nil {
		return err
	}
	if err := e.collateral.Push(recipient, asset, amount); err != nil {
		return transferFailed(err)
	}
	if err := e.state.PutPosition(owner, position); err != nil {
		return err
	}
	e.emit(CollateralRedeemed{From: owner, To: recipient, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn retires amount of the caller's own debt, pulling the tokens from the
// caller.
func (e *Engine) Burn(caller common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	return e.burnLocked(caller, caller, amount)
}

// BurnFrom retires debt on another address's position with tokens pulled from
// the caller. It requires an explicit operator approval from the owner.
func (e *Engine) BurnFrom(caller, owner common.Address, amount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	if err := e.authorize(caller, owner); err != nil {
		return err
	}
	return e.burnLocked(caller, owner, amount)
}

func (e *Engine) burnLocked(payer, account common.Address, amount *big.Int) error {
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := decreaseDebt(position, amount); err != nil {
		return err
	}
	if err := e.liability.TransferFrom(payer, e.treasury, amount); err != nil {
		return transferFailed(err)
	}
	if err := e.liability.Burn(amount); err != nil {
		// Nothing has been persisted; hand the pulled tokens back.
		if refundErr := e.liability.Transfer(payer, amount); refundErr != nil {
			return fmt.Errorf("%w: burn declined and token refund failed: %v", ErrTransferFailed, refundErr)
		}
		return transferFailed(err)
	}
	if err := e.state.PutPosition(account, position); err != nil {
		return err
	}
	e.emit(DebtBurned{Account: account, Payer: payer, Amount: new(big.Int).Set(amount)})
	return nil
}

// RedeemCollateralAndBurn retires debt and releases collateral in one atomic
// call.
func (e *Engine) RedeemCollateralAndBurn(caller, asset common.Address, collateralAmount, burnAmount *big.Int) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	position, err := e.loadPosition(caller)
	if err != nil {
		return err
	}
	if !e.registry.allowed(asset) {
		return ErrAssetNotAllowed
	}
	if err := decreaseDebt(position, burnAmount); err != nil {
		return err
	}
	if err := removeCollateral(position, asset, collateralAmount); err != nil {
		return err
	}
	if err := e.assertHealthy(position); err != nil {
		return err
	}
	if err := e.liability.TransferFrom(caller, e.treasury, burnAmount); err != nil {
		return transferFailed(err)
	}
	if err := e.liability.Burn(burnAmount); err != nil {
		if refundErr := e.liability.Transfer(caller, burnAmount); refundErr != nil {
			return fmt.Errorf("%w: burn declined and token refund failed: %v", ErrTransferFailed, refundErr)
		}
		return transferFailed(err)
	}
	if err := e.collateral.Push(caller, asset, collateralAmount); err != nil {
		// The liability was already retired; restore the caller before
		// reporting the failed push. Nothing has been persisted.
		if mintErr := e.liability.Mint(caller, burnAmount); mintErr != nil {
			return fmt.Errorf("%w: collateral push and token restore both failed: %v", ErrTransferFailed, mintErr)
		}
		return transferFailed(err)
	}
	if err := e.state.PutPosition(caller, position); err != nil {
		return err
	}
	e.emit(DebtBurned{Account: caller, Payer: caller, Amount: new(big.Int).Set(burnAmount)})
	e.emit(CollateralRedeemed{From: caller, To: caller, Asset: asset, Amount: new(big.Int).Set(collateralAmount)})
	return nil
}

// Approve grants or revokes the operator's right to redeem collateral or burn
// debt on the owner's position.
func (e *Engine) Approve(owner, operator common.Address, approved bool) error {
	unlock, err := e.enter()
	if err != nil {
		return err
	}
	defer unlock()
	if operator == (common.Address{}) || owner == operator {
		return ErrNotAuthorized
	}
	return e.state.PutApproval(owner, operator, approved)
}

func (e *Engine) authorize(caller, owner common.Address) error {
	if caller == owner {
		return nil
	}
	approved, err := e.state.GetApproval(owner, caller)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotAuthorized
	}
	return nil
}

// IsAuthorized reports whether the operator may act on the owner's position.
func (e *Engine) IsAuthorized(owner, operator common.Address) (bool, error) {
	if owner == operator {
		return true, nil
	}
	return e.state.GetApproval(owner, operator)
}

// CollateralTokens returns the registered assets in insertion order.
func (e *Engine) CollateralTokens() []common.Address {
	return e.registry.assets()
}

// PriceFeedAddress returns the feed bound to the asset. The second return is
// false for unregistered assets.
func (e *Engine) PriceFeedAddress(asset common.Address) (common.Address, bool) {
	binding, ok := e.registry.binding(asset)
	if !ok {
		return common.Address{}, false
	}
	return binding.FeedAddress, true
}

// LiabilityTokenAddress returns the address of the consumed liability token.
func (e *Engine) LiabilityTokenAddress() common.Address { return e.liabilityAddr }

// Treasury returns the engine custody address holding pulled value.
func (e *Engine) Treasury() common.Address { return e.treasury }

// Params returns the configured risk parameters.
func (e *Engine) Params() RiskParameters { return e.params }

// MinHealthFactor returns the 1e18-scaled minimum healthy risk scalar.
func (e *Engine) MinHealthFactor() *big.Int { return new(big.Int).Set(minHealthFactor) }

// Precision returns the engine's fixed-point scale.
func (e *Engine) Precision() *big.Int { return new(big.Int).Set(precision) }
