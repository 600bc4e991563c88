package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	errInvalidAmount        = errors.New("token: amount must be a non-negative 256-bit integer")
	errInsufficientBalance  = errors.New("token: insufficient balance")
	errInsufficientApproval = errors.New("token: insufficient allowance")
	errSupplyOverflow       = errors.New("token: total supply overflow")
	errZeroAddress          = errors.New("token: zero address")
)

// Token is the reference liability token. Balances are 256-bit unsigned
// integers with checked arithmetic; any subtraction that would underflow or
// addition that would overflow rejects the call instead of wrapping.
//
// The custodian address is the engine treasury: Burn consumes the custodian's
// holdings and TransferFrom spends third-party allowances granted to it.
type Token struct {
	mu        sync.RWMutex
	name      string
	symbol    string
	custodian common.Address
	balances  map[common.Address]*uint256.Int
	allowance map[common.Address]map[common.Address]*uint256.Int
	supply    *uint256.Int
}

// NewToken constructs a liability token with the provided metadata and
// custodian treasury address.
func NewToken(name, symbol string, custodian common.Address) *Token {
	return &Token{
		name:      name,
		symbol:    symbol,
		custodian: custodian,
		balances:  make(map[common.Address]*uint256.Int),
		allowance: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:    uint256.NewInt(0),
	}
}

// Name returns the token name.
func (t *Token) Name() string { return t.name }

// Symbol returns the token symbol.
func (t *Token) Symbol() string { return t.symbol }

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, errInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, errInvalidAmount
	}
	return value, nil
}

func (t *Token) balance(addr common.Address) *uint256.Int {
	if bal, ok := t.balances[addr]; ok {
		return bal
	}
	return uint256.NewInt(0)
}

// Mint issues amount to the recipient, growing total supply.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return errZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(t.supply, value)
	if overflow {
		return errSupplyOverflow
	}
	balance, overflow := new(uint256.Int).AddOverflow(t.balance(to), value)
	if overflow {
		return errSupplyOverflow
	}
	t.supply = supply
	t.balances[to] = balance
	return nil
}

// Burn destroys amount from the custodian's holdings, shrinking total supply.
func (t *Token) Burn(amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, underflow := new(uint256.Int).SubOverflow(t.balance(t.custodian), value)
	if underflow {
		return errInsufficientBalance
	}
	supply, underflow := new(uint256.Int).SubOverflow(t.supply, value)
	if underflow {
		return errInsufficientBalance
	}
	t.balances[t.custodian] = balance
	t.supply = supply
	return nil
}

// Transfer moves amount from the custodian to the recipient.
func (t *Token) Transfer(to common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(t.custodian, to, value)
}

// TransferFrom moves amount from an arbitrary holder to the recipient. Moving
// value out of any account other than the custodian consumes an allowance the
// holder granted to the custodian beforehand.
func (t *Token) TransferFrom(from, to common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if from != t.custodian {
		granted := t.allowanceOf(from, t.custodian)
		remaining, underflow := new(uint256.Int).SubOverflow(granted, value)
		if underflow {
			return errInsufficientApproval
		}
		if err := t.move(from, to, value); err != nil {
			return err
		}
		t.setAllowance(from, t.custodian, remaining)
		return nil
	}
	return t.move(from, to, value)
}

func (t *Token) move(from, to common.Address, value *uint256.Int) error {
	fromBalance, underflow := new(uint256.Int).SubOverflow(t.balance(from), value)
	if underflow {
		return errInsufficientBalance
	}
	toBalance, overflow := new(uint256.Int).AddOverflow(t.balance(to), value)
	if overflow {
		return errSupplyOverflow
	}
	t.balances[from] = fromBalance
	t.balances[to] = toBalance
	return nil
}

func (t *Token) allowanceOf(owner, spender common.Address) *uint256.Int {
	if grants, ok := t.allowance[owner]; ok {
		if granted, ok := grants[spender]; ok {
			return granted
		}
	}
	return uint256.NewInt(0)
}

func (t *Token) setAllowance(owner, spender common.Address, value *uint256.Int) {
	grants, ok := t.allowance[owner]
	if !ok {
		grants = make(map[common.Address]*uint256.Int)
		t.allowance[owner] = grants
	}
	grants[spender] = value
}

// Approve grants the spender permission to move up to amount out of the
// owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(owner, spender, value)
	return nil
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance(addr).ToBig()
}

// Allowance returns the remaining amount the spender may move out of the
// owner's balance.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowanceOf(owner, spender).ToBig()
}

// TotalSupply returns the outstanding issued amount.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply.ToBig()
}
