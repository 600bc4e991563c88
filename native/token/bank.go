package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Bank is the reference collateral-asset ledger. It tracks per-asset holder
// balances with the same checked 256-bit arithmetic as Token and stands in for
// the external asset contracts the engine pulls collateral from.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int
}

// NewBank constructs an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (b *Bank) balance(asset, holder common.Address) *uint256.Int {
	if holders, ok := b.balances[asset]; ok {
		if bal, ok := holders[holder]; ok {
			return bal
		}
	}
	return uint256.NewInt(0)
}

func (b *Bank) setBalance(asset, holder common.Address, value *uint256.Int) {
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		b.balances[asset] = holders
	}
	holders[holder] = value
}

// Credit issues amount of asset to the holder. Deployments seed genesis
// balances through it; the development faucet exposes it over RPC.
func (b *Bank) Credit(asset, holder common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, overflow := new(uint256.Int).AddOverflow(b.balance(asset, holder), value)
	if overflow {
		return errSupplyOverflow
	}
	b.setBalance(asset, holder, balance)
	return nil
}

// Transfer moves amount of asset between holders, rejecting underflow.
func (b *Bank) Transfer(asset, from, to common.Address, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fromBalance, underflow := new(uint256.Int).SubOverflow(b.balance(asset, from), value)
	if underflow {
		return errInsufficientBalance
	}
	toBalance, overflow := new(uint256.Int).AddOverflow(b.balance(asset, to), value)
	if overflow {
		return errSupplyOverflow
	}
	b.setBalance(asset, from, fromBalance)
	b.setBalance(asset, to, toBalance)
	return nil
}

// BalanceOf returns the holder's balance of the asset.
func (b *Bank) BalanceOf(asset, holder common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance(asset, holder).ToBig()
}

// Custody adapts a Bank to the engine's collateral-transfer capability. Pull
// moves value from an external holder into the custodian treasury and Push
// releases it back out.
type Custody struct {
	bank      *Bank
	custodian common.Address
}

// NewCustody binds the bank to the custodian treasury address.
func NewCustody(bank *Bank, custodian common.Address) *Custody {
	return &Custody{bank: bank, custodian: custodian}
}

// Pull implements the engine collateral-transfer capability.
func (c *Custody) Pull(from, asset common.Address, amount *big.Int) error {
	return c.bank.Transfer(asset, from, c.custodian, amount)
}

// Push implements the engine collateral-transfer capability.
func (c *Custody) Push(to, asset common.Address, amount *big.Int) error {
	return c.bank.Transfer(asset, c.custodian, to, amount)
}
