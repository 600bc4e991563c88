package rpc

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"synthd/native/engine"
)

func (s *Server) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, engine.ErrHealthFactorBroken) {
			s.metrics.MarkHealthCheckFailure()
		}
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.engine.DepositCollateral(account, asset, amount)
	s.observe("deposit", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req depositAndMintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	collateralAmount, err := parseAmount(req.CollateralAmount, "collateralAmount")
	if err != nil {
		writeError(w, err)
		return
	}
	mintAmount, err := parseAmount(req.MintAmount, "mintAmount")
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.engine.DepositCollateralAndMint(account, asset, collateralAmount, mintAmount)
	s.observe("deposit_and_mint", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Owner != "" {
		owner, ownerErr := parseAddress(req.Owner, "owner")
		if ownerErr != nil {
			writeError(w, ownerErr)
			return
		}
		err = s.engine.RedeemCollateralFrom(account, owner, asset, amount)
	} else {
		err = s.engine.RedeemCollateral(account, asset, amount)
	}
	s.observe("redeem", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleRedeemAndBurn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req redeemAndBurnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	collateralAmount, err := parseAmount(req.CollateralAmount, "collateralAmount")
	if err != nil {
		writeError(w, err)
		return
	}
	burnAmount, err := parseAmount(req.BurnAmount, "burnAmount")
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.engine.RedeemCollateralAndBurn(account, asset, collateralAmount, burnAmount)
	s.observe("redeem_and_burn", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.engine.Mint(account, amount)
	s.observe("mint", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Owner != "" {
		owner, ownerErr := parseAddress(req.Owner, "owner")
		if ownerErr != nil {
			writeError(w, ownerErr)
			return
		}
		err = s.engine.BurnFrom(account, owner, amount)
	} else {
		err = s.engine.Burn(account, amount)
	}
	s.observe("burn", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	liquidator, err := parseAddress(req.Liquidator, "liquidator")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := parseAddress(req.Target, "target")
	if err != nil {
		writeError(w, err)
		return
	}
	debtToCover, err := parseAmount(req.DebtToCover, "debtToCover")
	if err != nil {
		writeError(w, err)
		return
	}
	seized, err := s.engine.Liquidate(liquidator, asset, target, debtToCover)
	s.observe("liquidate", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.MarkLiquidation()
	writeJSON(w, http.StatusOK, liquidateResponse{CollateralSeized: seized.String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	operator, err := parseAddress(req.Operator, "operator")
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.engine.Approve(owner, operator, req.Approved)
	s.observe("approve", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeError(w, err)
		return
	}
	debt, collateralValue, err := s.engine.AccountInformation(account)
	if err != nil {
		writeError(w, err)
		return
	}
	health, err := s.engine.HealthFactor(account)
	if err != nil {
		writeError(w, err)
		return
	}
	collateral := make(map[string]string)
	for _, asset := range s.engine.CollateralTokens() {
		balance, balErr := s.engine.CollateralBalance(account, asset)
		if balErr != nil {
			writeError(w, balErr)
			return
		}
		if balance.Sign() > 0 {
			collateral[asset.Hex()] = balance.String()
		}
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Address:         account.Hex(),
		Debt:            debt.String(),
		CollateralValue: collateralValue.String(),
		HealthFactor:    health.String(),
		Collateral:      collateral,
	})
}

func (s *Server) handleHealthFactor(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeError(w, err)
		return
	}
	health, err := s.engine.HealthFactor(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Address:      account.Hex(),
		HealthFactor: health.String(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	params := s.engine.Params()
	writeJSON(w, http.StatusOK, paramsResponse{
		LiquidationThresholdPercent: params.LiquidationThresholdPercent,
		LiquidationBonusPercent:     params.LiquidationBonusPercent,
		MinHealthFactor:             s.engine.MinHealthFactor().String(),
		Precision:                   s.engine.Precision().String(),
		LiabilityToken:              s.engine.LiabilityTokenAddress().Hex(),
		Treasury:                    s.engine.Treasury().Hex(),
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.engine.CollateralTokens()
	out := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		feed, _ := s.engine.PriceFeedAddress(asset)
		out = append(out, assetResponse{Asset: asset.Hex(), Feed: feed.Hex()})
	}
	writeJSON(w, http.StatusOK, out)
}

type eventEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	buffered := s.sink.Events()
	out := make([]eventEnvelope, 0, len(buffered))
	for _, evt := range buffered {
		out = append(out, eventEnvelope{Type: evt.EventType(), Data: evt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account, "account")
	if err != nil {
		writeError(w, err)
		return
	}
	asset, err := parseAddress(req.Asset, "asset")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.bank.Credit(asset, account, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
