package engine

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"synthd/core/events"
	nativecommon "synthd/native/common"
	"synthd/native/oracle"
	"synthd/native/token"
)

var (
	assetA       = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	assetB       = common.HexToAddress("0xA11CE00000000000000000000000000000000002")
	feedAddrA    = common.HexToAddress("0xFEED000000000000000000000000000000000001")
	feedAddrB    = common.HexToAddress("0xFEED000000000000000000000000000000000002")
	treasuryAddr = common.HexToAddress("0x7EA0000000000000000000000000000000000001")
	susdAddr     = common.HexToAddress("0x5D01000000000000000000000000000000000001")
	alice        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob          = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), precision)
}

type testEnv struct {
	eng   *Engine
	tok   *token.Token
	bank  *token.Bank
	feedA *oracle.StaticFeed
	feedB *oracle.StaticFeed
	sink  *events.Sink
}

// newTestEnv wires an engine over the reference token and bank with two
// registered assets priced at $1000 and $20000 on 8-decimal feeds.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	feedA := oracle.NewStaticFeed(big.NewInt(100_000_000_000), 8)
	feedB := oracle.NewStaticFeed(big.NewInt(2_000_000_000_000), 8)
	tok := token.NewToken("Synth Dollar", "SUSD", treasuryAddr)
	bank := token.NewBank()
	eng, err := New(
		[]common.Address{assetA, assetB},
		[]FeedBinding{
			{FeedAddress: feedAddrA, Source: feedA},
			{FeedAddress: feedAddrB, Source: feedB},
		},
		tok, susdAddr, token.NewCustody(bank, treasuryAddr), treasuryAddr, DefaultRiskParameters(),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	sink := events.NewSink(0)
	eng.SetEmitter(sink)
	return &testEnv{eng: eng, tok: tok, bank: bank, feedA: feedA, feedB: feedB, sink: sink}
}

func (env *testEnv) fund(t *testing.T, holder common.Address, asset common.Address, amount *big.Int) {
	t.Helper()
	if err := env.bank.Credit(asset, holder, amount); err != nil {
		t.Fatalf("credit collateral: %v", err)
	}
}

func (env *testEnv) deposit(t *testing.T, holder, asset common.Address, amount *big.Int) {
	t.Helper()
	if err := env.eng.DepositCollateral(holder, asset, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestDepositCollateral(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))

	if err := env.eng.DepositCollateral(alice, assetA, wei(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := env.bank.BalanceOf(assetA, alice); got.Sign() != 0 {
		t.Fatalf("alice bank balance = %s, want 0", got)
	}
	if got := env.bank.BalanceOf(assetA, treasuryAddr); got.Cmp(wei(10)) != 0 {
		t.Fatalf("treasury bank balance = %s, want %s", got, wei(10))
	}
	balance, err := env.eng.CollateralBalance(alice, assetA)
	if err != nil {
		t.Fatalf("collateral balance: %v", err)
	}
	if balance.Cmp(wei(10)) != 0 {
		t.Fatalf("vault balance = %s, want %s", balance, wei(10))
	}

	emitted := env.sink.Events()
	if len(emitted) != 1 {
		t.Fatalf("events = %d, want 1", len(emitted))
	}
	evt, ok := emitted[0].(CollateralDeposited)
	if !ok {
		t.Fatalf("event type = %T, want CollateralDeposited", emitted[0])
	}
	if evt.From != alice || evt.Asset != assetA || evt.Amount.Cmp(wei(10)) != 0 {
		t.Fatalf("unexpected event payload: %+v", evt)
	}
}

func TestDepositRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(1))

	if err := env.eng.DepositCollateral(alice, assetA, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: %v, want ErrInvalidAmount", err)
	}
	if err := env.eng.DepositCollateral(alice, assetA, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: %v, want ErrInvalidAmount", err)
	}
	unregistered := common.HexToAddress("0x3333333333333333333333333333333333333333")
	if err := env.eng.DepositCollateral(alice, unregistered, wei(1)); !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("unregistered asset: %v, want ErrAssetNotAllowed", err)
	}
	// The bank holds 1 unit; pulling 2 must fail and leave the vault untouched.
	if err := env.eng.DepositCollateral(alice, assetA, wei(2)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("underfunded pull: %v, want ErrTransferFailed", err)
	}
	balance, err := env.eng.CollateralBalance(alice, assetA)
	if err != nil {
		t.Fatalf("collateral balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("vault balance after failed pull = %s, want 0", balance)
	}
}

func TestMintAtExactMinimumHealthFactor(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))

	// 10 units at $1000 with a 50% threshold support exactly 5000 debt.
	if err := env.eng.Mint(alice, wei(5000)); err != nil {
		t.Fatalf("mint at boundary: %v", err)
	}
	health, err := env.eng.HealthFactor(alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if health.Cmp(minHealthFactor) != 0 {
		t.Fatalf("health factor = %s, want %s", health, minHealthFactor)
	}
	if got := env.tok.BalanceOf(alice); got.Cmp(wei(5000)) != 0 {
		t.Fatalf("minted balance = %s, want %s", got, wei(5000))
	}
}

func TestMintBeyondCapacityFails(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))
	if err := env.eng.Mint(alice, wei(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := env.eng.Mint(alice, big.NewInt(1))
	if !errors.Is(err, ErrHealthFactorBroken) {
		t.Fatalf("over-mint: %v, want ErrHealthFactorBroken", err)
	}
	var broken *HealthFactorBrokenError
	if !errors.As(err, &broken) {
		t.Fatalf("over-mint error does not carry the health factor: %v", err)
	}
	if broken.HealthFactor.Cmp(minHealthFactor) >= 0 {
		t.Fatalf("reported health factor %s not below minimum", broken.HealthFactor)
	}

	// The rejected call must not change debt or supply.
	debt, _, err := env.eng.AccountInformation(alice)
	if err != nil {
		t.Fatalf("account information: %v", err)
	}
	if debt.Cmp(wei(5000)) != 0 {
		t.Fatalf("debt after rejected mint = %s, want %s", debt, wei(5000))
	}
	if got := env.tok.TotalSupply(); got.Cmp(wei(5000)) != 0 {
		t.Fatalf("supply after rejected mint = %s, want %s", got, wei(5000))
	}
}

func TestDepositCollateralAndMint(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))

	if err := env.eng.DepositCollateralAndMint(alice, assetA, wei(10), wei(4000)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	debt, collateralValue, err := env.eng.AccountInformation(alice)
	if err != nil {
		t.Fatalf("account information: %v", err)
	}
	if debt.Cmp(wei(4000)) != 0 {
		t.Fatalf("debt = %s, want %s", debt, wei(4000))
	}
	if collateralValue.Cmp(wei(10000)) != 0 {
		t.Fatalf("collateral value = %s, want %s", collateralValue, wei(10000))
	}
}

func TestDepositCollateralAndMintRollsBackOnBrokenHealth(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))

	err := env.eng.DepositCollateralAndMint(alice, assetA, wei(10), wei(5001))
	if !errors.Is(err, ErrHealthFactorBroken) {
		t.Fatalf("overleveraged combo: %v, want ErrHealthFactorBroken", err)
	}
	// The health check precedes any transfer, so the bank is untouched.
	if got := env.bank.BalanceOf(assetA, alice); got.Cmp(wei(10)) != 0 {
		t.Fatalf("alice bank balance = %s, want %s", got, wei(10))
	}
	if got := env.tok.TotalSupply(); got.Sign() != 0 {
		t.Fatalf("supply = %s, want 0", got)
	}
	position, err := env.eng.state.GetPosition(alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if position != nil {
		t.Fatalf("position persisted after rolled-back call: %+v", position)
	}
}

func TestRedeemCollateral(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))
	if err := env.eng.Mint(alice, wei(2500)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// 2500 debt needs 5 units at the 50% threshold; redeeming 5 is allowed.
	if err := env.eng.RedeemCollateral(alice, assetA, wei(5)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got := env.bank.BalanceOf(assetA, alice); got.Cmp(wei(5)) != 0 {
		t.Fatalf("alice bank balance = %s, want %s", got, wei(5))
	}

	// One more wei of collateral out would break the health factor.
	if err := env.eng.RedeemCollateral(alice, assetA, big.NewInt(1)); !errors.Is(err, ErrHealthFactorBroken) {
		t.Fatalf("redeem past boundary: %v, want ErrHealthFactorBroken", err)
	}
	// Redeeming more than deposited is an underflow, not a clamp.
	if err := env.eng.RedeemCollateral(alice, assetA, wei(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("redeem above balance: %v, want ErrInsufficientBalance", err)
	}
}

func TestFullExitDeletesPosition(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))
	if err := env.eng.Mint(alice, wei(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := env.tok.Approve(alice, treasuryAddr, wei(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := env.eng.RedeemCollateralAndBurn(alice, assetA, wei(10), wei(1000)); err != nil {
		t.Fatalf("redeem and burn: %v", err)
	}

	if got := env.bank.BalanceOf(assetA, alice); got.Cmp(wei(10)) != 0 {
		t.Fatalf("alice bank balance = %s, want %s", got, wei(10))
	}
	if got := env.tok.TotalSupply(); got.Sign() != 0 {
		t.Fatalf("supply = %s, want 0", got)
	}
	// An emptied position is deleted, indistinguishable from a fresh account.
	position, err := env.eng.state.GetPosition(alice)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if position != nil {
		t.Fatalf("emptied position still stored: %+v", position)
	}
	health, err := env.eng.HealthFactor(alice)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if health.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("health factor = %s, want max", health)
	}
}

func TestBurnReducesDebt(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))
	if err := env.eng.Mint(alice, wei(4000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := env.tok.Approve(alice, treasuryAddr, wei(1500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := env.eng.Burn(alice, wei(1500)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	debt, _, err := env.eng.AccountInformation(alice)
	if err != nil {
		t.Fatalf("account information: %v", err)
	}
	if debt.Cmp(wei(2500)) != 0 {
		t.Fatalf("debt = %s, want %s", debt, wei(2500))
	}
	if got := env.tok.TotalSupply(); got.Cmp(wei(2500)) != 0 {
		t.Fatalf("supply = %s, want %s", got, wei(2500))
	}

	// Burning more than owed underflows the ledger, not the token.
	if err := env.eng.Burn(alice, wei(5000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("over-burn: %v, want ErrInsufficientBalance", err)
	}
}

func TestOperatorApprovals(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))
	if err := env.eng.Mint(alice, wei(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Give bob tokens to pay alice's debt down with.
	if err := env.tok.Mint(bob, wei(1000)); err != nil {
		t.Fatalf("token mint: %v", err)
	}
	if err := env.tok.Approve(bob, treasuryAddr, wei(1000)); err != nil {
		t.Fatalf("token approve: %v", err)
	}

	if err := env.eng.BurnFrom(bob, alice, wei(500)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unapproved burn-from: %v, want ErrNotAuthorized", err)
	}
	if err := env.eng.RedeemCollateralFrom(bob, alice, assetA, wei(1)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unapproved redeem-from: %v, want ErrNotAuthorized", err)
	}

	if err := env.eng.Approve(alice, bob, true); err != nil {
		t.Fatalf("approve operator: %v", err)
	}
	ok, err := env.eng.IsAuthorized(alice, bob)
	if err != nil || !ok {
		t.Fatalf("IsAuthorized = %v, %v; want true", ok, err)
	}
	if err := env.eng.BurnFrom(bob, alice, wei(500)); err != nil {
		t.Fatalf("approved burn-from: %v", err)
	}
	if err := env.eng.RedeemCollateralFrom(bob, alice, assetA, wei(1)); err != nil {
		t.Fatalf("approved redeem-from: %v", err)
	}
	if got := env.bank.BalanceOf(assetA, bob); got.Cmp(wei(1)) != 0 {
		t.Fatalf("bob received = %s, want %s", got, wei(1))
	}

	// Revocation takes effect immediately.
	if err := env.eng.Approve(alice, bob, false); err != nil {
		t.Fatalf("revoke operator: %v", err)
	}
	if err := env.eng.BurnFrom(bob, alice, wei(100)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("revoked burn-from: %v, want ErrNotAuthorized", err)
	}
}

func TestApproveRejectsDegenerateOperators(t *testing.T) {
	env := newTestEnv(t)
	if err := env.eng.Approve(alice, common.Address{}, true); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("zero operator: %v, want ErrNotAuthorized", err)
	}
	if err := env.eng.Approve(alice, alice, true); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("self approval: %v, want ErrNotAuthorized", err)
	}
}

func TestPauseBlocksValueMovingCalls(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, alice, assetA, wei(10))
	env.deposit(t, alice, assetA, wei(10))

	env.eng.SetPauses(nativecommon.StaticPauses{moduleName: true})
	if err := env.eng.DepositCollateral(alice, assetA, wei(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused deposit: %v, want ErrModulePaused", err)
	}
	if err := env.eng.Mint(alice, wei(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused mint: %v, want ErrModulePaused", err)
	}
	if _, err := env.eng.Liquidate(bob, assetA, alice, wei(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused liquidate: %v, want ErrModulePaused", err)
	}

	// Reads keep working while paused.
	if _, err := env.eng.HealthFactor(alice); err != nil {
		t.Fatalf("health factor while paused: %v", err)
	}

	env.eng.SetPauses(nil)
	if err := env.eng.Mint(alice, wei(1)); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}
}

// reentrantBridge calls back into the engine mid-transfer the way a malicious
// token contract would.
type reentrantBridge struct {
	eng   *Engine
	inner error
}

func (b *reentrantBridge) Pull(from, asset common.Address, amount *big.Int) error {
	b.inner = b.eng.Mint(from, big.NewInt(1))
	return nil
}

func (b *reentrantBridge) Push(to, asset common.Address, amount *big.Int) error { return nil }

func TestReentrantCallRejected(t *testing.T) {
	feed := oracle.NewStaticFeed(big.NewInt(100_000_000_000), 8)
	tok := token.NewToken("Synth Dollar", "SUSD", treasuryAddr)
	bridge := &reentrantBridge{}
	eng, err := New(
		[]common.Address{assetA},
		[]FeedBinding{{FeedAddress: feedAddrA, Source: feed}},
		tok, susdAddr, bridge, treasuryAddr, DefaultRiskParameters(),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	bridge.eng = eng

	if err := eng.DepositCollateral(alice, assetA, wei(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !errors.Is(bridge.inner, ErrReentrantCall) {
		t.Fatalf("nested call: %v, want ErrReentrantCall", bridge.inner)
	}
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	feed := oracle.NewStaticFeed(big.NewInt(100_000_000_000), 8)
	tok := token.NewToken("Synth Dollar", "SUSD", treasuryAddr)
	bank := token.NewBank()
	bridge := token.NewCustody(bank, treasuryAddr)
	binding := FeedBinding{FeedAddress: feedAddrA, Source: feed}

	cases := map[string]func() (*Engine, error){
		"length mismatch": func() (*Engine, error) {
			return New([]common.Address{assetA, assetB}, []FeedBinding{binding}, tok, susdAddr, bridge, treasuryAddr, DefaultRiskParameters())
		},
		"duplicate asset": func() (*Engine, error) {
			return New([]common.Address{assetA, assetA}, []FeedBinding{binding, binding}, tok, susdAddr, bridge, treasuryAddr, DefaultRiskParameters())
		},
		"zero asset": func() (*Engine, error) {
			return New([]common.Address{{}}, []FeedBinding{binding}, tok, susdAddr, bridge, treasuryAddr, DefaultRiskParameters())
		},
		"nil feed source": func() (*Engine, error) {
			return New([]common.Address{assetA}, []FeedBinding{{FeedAddress: feedAddrA}}, tok, susdAddr, bridge, treasuryAddr, DefaultRiskParameters())
		},
		"nil liability": func() (*Engine, error) {
			return New([]common.Address{assetA}, []FeedBinding{binding}, nil, susdAddr, bridge, treasuryAddr, DefaultRiskParameters())
		},
		"zero treasury": func() (*Engine, error) {
			return New([]common.Address{assetA}, []FeedBinding{binding}, tok, susdAddr, bridge, common.Address{}, DefaultRiskParameters())
		},
		"zero threshold": func() (*Engine, error) {
			return New([]common.Address{assetA}, []FeedBinding{binding}, tok, susdAddr, bridge, treasuryAddr, RiskParameters{LiquidationThresholdPercent: 0, LiquidationBonusPercent: 10})
		},
		"bonus too large": func() (*Engine, error) {
			return New([]common.Address{assetA}, []FeedBinding{binding}, tok, susdAddr, bridge, treasuryAddr, RiskParameters{LiquidationThresholdPercent: 50, LiquidationBonusPercent: 100})
		},
	}
	for name, build := range cases {
		if _, err := build(); !errors.Is(err, ErrConfigurationMismatch) {
			t.Fatalf("%s: %v, want ErrConfigurationMismatch", name, err)
		}
	}
}

func TestEngineGetters(t *testing.T) {
	env := newTestEnv(t)
	assets := env.eng.CollateralTokens()
	if len(assets) != 2 || assets[0] != assetA || assets[1] != assetB {
		t.Fatalf("collateral tokens = %v", assets)
	}
	feed, ok := env.eng.PriceFeedAddress(assetA)
	if !ok || feed != feedAddrA {
		t.Fatalf("feed for assetA = %s, %v", feed, ok)
	}
	if _, ok := env.eng.PriceFeedAddress(common.HexToAddress("0x4444444444444444444444444444444444444444")); ok {
		t.Fatal("unregistered asset reported a feed")
	}
	if env.eng.LiabilityTokenAddress() != susdAddr {
		t.Fatalf("liability address = %s", env.eng.LiabilityTokenAddress())
	}
	if env.eng.Treasury() != treasuryAddr {
		t.Fatalf("treasury = %s", env.eng.Treasury())
	}
	if env.eng.MinHealthFactor().Cmp(precision) != 0 {
		t.Fatalf("min health factor = %s", env.eng.MinHealthFactor())
	}
}
