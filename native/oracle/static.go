package oracle

import (
	"math/big"
	"sync"
	"time"
)

// StaticFeed is an operator-pinned price source. It backs test fixtures and
// bootstrap deployments where no live feed exists yet.
type StaticFeed struct {
	mu       sync.RWMutex
	round    Round
	decimals uint8
	set      bool
}

// NewStaticFeed constructs a feed pinned to the provided answer.
func NewStaticFeed(answer *big.Int, decimals uint8) *StaticFeed {
	f := &StaticFeed{decimals: decimals}
	f.SetAnswer(answer, time.Now())
	return f
}

// SetAnswer replaces the pinned answer and its observation time.
func (f *StaticFeed) SetAnswer(answer *big.Int, updatedAt time.Time) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.round = Round{UpdatedAt: updatedAt}
	if answer != nil {
		f.round.Answer = new(big.Int).Set(answer)
	}
	f.set = answer != nil
}

// LatestRoundData implements the PriceFeed interface.
func (f *StaticFeed) LatestRoundData() (Round, error) {
	if f == nil {
		return Round{}, ErrNoRound
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return Round{}, ErrNoRound
	}
	return f.round.Clone(), nil
}

// Decimals implements the PriceFeed interface.
func (f *StaticFeed) Decimals() uint8 {
	if f == nil {
		return 0
	}
	return f.decimals
}
