package oracle

import (
	"errors"
	"math/big"
	"time"
)

var (
	// ErrInvalidPrice indicates the feed reported a zero or negative answer.
	ErrInvalidPrice = errors.New("oracle: non-positive price answer")
	// ErrStalePrice indicates the freshest answer is older than the configured
	// freshness window.
	ErrStalePrice = errors.New("oracle: price answer stale")
	// ErrNoRound indicates the feed has never published an answer.
	ErrNoRound = errors.New("oracle: no round data available")
)

// Round captures a single price observation along with the timestamp reported
// by the upstream feed.
type Round struct {
	Answer    *big.Int
	UpdatedAt time.Time
}

// Clone returns a deep copy of the round to prevent accidental mutations.
func (r Round) Clone() Round {
	clone := Round{UpdatedAt: r.UpdatedAt}
	if r.Answer != nil {
		clone.Answer = new(big.Int).Set(r.Answer)
	}
	return clone
}

// PriceFeed resolves the latest answer for a single asset/USD pair. Answers
// are fixed-point integers with Decimals fractional digits.
type PriceFeed interface {
	LatestRoundData() (Round, error)
	Decimals() uint8
}

// Policy holds the freshness rules applied to every consumed round. The zero
// value disables staleness checks, which is only appropriate in tests.
type Policy struct {
	MaxAge time.Duration

	now func() time.Time
}

// NewPolicy constructs a staleness policy with the provided freshness window.
func NewPolicy(maxAge time.Duration) Policy {
	return Policy{MaxAge: maxAge, now: time.Now}
}

// IsStale reports whether an answer updated at the provided time falls outside
// the freshness window.
func (p Policy) IsStale(updatedAt time.Time) bool {
	if p.MaxAge <= 0 {
		return false
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return now().Sub(updatedAt) > p.MaxAge
}

// Validate rejects rounds with non-positive answers or stale timestamps. The
// engine treats either condition as a fatal input error rather than silently
// proceeding on bad market data.
func (p Policy) Validate(r Round) error {
	if r.Answer == nil || r.Answer.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if p.IsStale(r.UpdatedAt) {
		return ErrStalePrice
	}
	return nil
}
