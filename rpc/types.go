package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "synthd/native/common"
	"synthd/native/engine"
	"synthd/native/oracle"
)

const requestBodyLimit = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps the engine error taxonomy onto HTTP statuses: invalid input
// is 400, authorization 403, state conflicts 409, and upstream capability or
// oracle failures 502/503.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrAssetNotAllowed),
		errors.Is(err, engine.ErrConfigurationMismatch):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrHealthFactorBroken),
		errors.Is(err, engine.ErrPositionHealthy),
		errors.Is(err, engine.ErrHealthFactorNotImproved),
		errors.Is(err, engine.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, engine.ErrTransferFailed),
		errors.Is(err, engine.ErrMintFailed):
		return http.StatusBadGateway
	case errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrNoRound),
		errors.Is(err, engine.ErrReentrantCall),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestBodyLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInvalidAmount, err)
	}
	return nil
}

func parseAddress(value, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", engine.ErrInvalidAmount, field, value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s: invalid amount %q", engine.ErrInvalidAmount, field, value)
	}
	return amount, nil
}

type depositRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type depositAndMintRequest struct {
	Account          string `json:"account"`
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateralAmount"`
	MintAmount       string `json:"mintAmount"`
}

type redeemRequest struct {
	Account string `json:"account"`
	Owner   string `json:"owner,omitempty"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type redeemAndBurnRequest struct {
	Account          string `json:"account"`
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateralAmount"`
	BurnAmount       string `json:"burnAmount"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type burnRequest struct {
	Account string `json:"account"`
	Owner   string `json:"owner,omitempty"`
	Amount  string `json:"amount"`
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	Asset       string `json:"asset"`
	Target      string `json:"target"`
	DebtToCover string `json:"debtToCover"`
}

type approveRequest struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type faucetRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type positionResponse struct {
	Address         string            `json:"address"`
	Debt            string            `json:"debt"`
	CollateralValue string            `json:"collateralValue"`
	HealthFactor    string            `json:"healthFactor"`
	Collateral      map[string]string `json:"collateral"`
}

type healthResponse struct {
	Address      string `json:"address"`
	HealthFactor string `json:"healthFactor"`
}

type paramsResponse struct {
	LiquidationThresholdPercent uint64 `json:"liquidationThresholdPercent"`
	LiquidationBonusPercent     uint64 `json:"liquidationBonusPercent"`
	MinHealthFactor             string `json:"minHealthFactor"`
	Precision                   string `json:"precision"`
	LiabilityToken              string `json:"liabilityToken"`
	Treasury                    string `json:"treasury"`
}

type assetResponse struct {
	Asset string `json:"asset"`
	Feed  string `json:"feed"`
}

type liquidateResponse struct {
	CollateralSeized string `json:"collateralSeized"`
}

type statusResponse struct {
	Status string `json:"status"`
}
