package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	custodian = common.HexToAddress("0x7EA0000000000000000000000000000000000001")
	holder    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	other     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	asset     = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
)

func TestTokenMintAndBurn(t *testing.T) {
	tok := NewToken("Synth Dollar", "SUSD", custodian)
	if tok.Name() != "Synth Dollar" || tok.Symbol() != "SUSD" {
		t.Fatalf("metadata = %s/%s", tok.Name(), tok.Symbol())
	}

	if err := tok.Mint(holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance = %s, want 1000", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply = %s, want 1000", got)
	}

	// Burn consumes the custodian's holdings, not an arbitrary account's.
	if err := tok.Burn(big.NewInt(1)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("burn without custody: %v, want errInsufficientBalance", err)
	}
	if err := tok.Mint(custodian, big.NewInt(400)); err != nil {
		t.Fatalf("mint to custodian: %v", err)
	}
	if err := tok.Burn(big.NewInt(400)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply after burn = %s, want 1000", got)
	}
}

func TestTokenRejectsBadAmounts(t *testing.T) {
	tok := NewToken("Synth Dollar", "SUSD", custodian)

	for _, amount := range []*big.Int{nil, big.NewInt(-1)} {
		if err := tok.Mint(holder, amount); !errors.Is(err, errInvalidAmount) {
			t.Fatalf("mint %v: %v, want errInvalidAmount", amount, err)
		}
	}
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := tok.Mint(holder, tooWide); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("mint 2^256: %v, want errInvalidAmount", err)
	}
	if err := tok.Mint(common.Address{}, big.NewInt(1)); !errors.Is(err, errZeroAddress) {
		t.Fatalf("mint to zero address: %v, want errZeroAddress", err)
	}

	// Supply saturation is rejected, not wrapped.
	max := new(uint256.Int).SetAllOne().ToBig()
	if err := tok.Mint(holder, max); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := tok.Mint(other, big.NewInt(1)); !errors.Is(err, errSupplyOverflow) {
		t.Fatalf("overflowing mint: %v, want errSupplyOverflow", err)
	}
}

func TestTokenTransferFromConsumesAllowance(t *testing.T) {
	tok := NewToken("Synth Dollar", "SUSD", custodian)
	if err := tok.Mint(holder, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.TransferFrom(holder, custodian, big.NewInt(100)); !errors.Is(err, errInsufficientApproval) {
		t.Fatalf("unapproved transfer-from: %v, want errInsufficientApproval", err)
	}

	if err := tok.Approve(holder, custodian, big.NewInt(300)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(holder, custodian, big.NewInt(100)); err != nil {
		t.Fatalf("transfer-from: %v", err)
	}
	if got := tok.Allowance(holder, custodian); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("allowance = %s, want 200", got)
	}
	if err := tok.TransferFrom(holder, custodian, big.NewInt(201)); !errors.Is(err, errInsufficientApproval) {
		t.Fatalf("over-allowance: %v, want errInsufficientApproval", err)
	}

	// The custodian spends its own balance without an allowance.
	if err := tok.TransferFrom(custodian, other, big.NewInt(50)); err != nil {
		t.Fatalf("custodian transfer-from: %v", err)
	}
	if got := tok.BalanceOf(other); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("recipient balance = %s, want 50", got)
	}
}

func TestTokenTransferUnderflow(t *testing.T) {
	tok := NewToken("Synth Dollar", "SUSD", custodian)
	if err := tok.Mint(custodian, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(holder, big.NewInt(11)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("underflowing transfer: %v, want errInsufficientBalance", err)
	}
	if got := tok.BalanceOf(custodian); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance after failed transfer = %s, want 10", got)
	}
}

func TestBankTransfers(t *testing.T) {
	bank := NewBank()
	if err := bank.Credit(asset, holder, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := bank.Transfer(asset, holder, other, big.NewInt(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := bank.BalanceOf(asset, holder); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("holder balance = %s, want 300", got)
	}
	if got := bank.BalanceOf(asset, other); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("recipient balance = %s, want 200", got)
	}
	if err := bank.Transfer(asset, holder, other, big.NewInt(301)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("underflowing bank transfer: %v, want errInsufficientBalance", err)
	}
}

func TestCustodyPullPush(t *testing.T) {
	bank := NewBank()
	custody := NewCustody(bank, custodian)
	if err := bank.Credit(asset, holder, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := custody.Pull(holder, asset, big.NewInt(60)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got := bank.BalanceOf(asset, custodian); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("custodian balance = %s, want 60", got)
	}
	if err := custody.Push(other, asset, big.NewInt(60)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := bank.BalanceOf(asset, other); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("recipient balance = %s, want 60", got)
	}
	if err := custody.Push(other, asset, big.NewInt(1)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("push past custody: %v, want errInsufficientBalance", err)
	}
}
