package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// assetRegistry is the ordered, append-only set of allowed collateral assets.
// It is fixed at construction; iteration preserves insertion order so total
// collateral value sums deterministically.
type assetRegistry struct {
	ordered []common.Address
	feeds   map[common.Address]FeedBinding
}

func newAssetRegistry(assets []common.Address, feeds []FeedBinding) (*assetRegistry, error) {
	if len(assets) != len(feeds) {
		return nil, fmt.Errorf("%w: %d assets vs %d price feeds", ErrConfigurationMismatch, len(assets), len(feeds))
	}
	registry := &assetRegistry{
		ordered: make([]common.Address, 0, len(assets)),
		feeds:   make(map[common.Address]FeedBinding, len(assets)),
	}
	for i, asset := range assets {
		if asset == (common.Address{}) {
			return nil, fmt.Errorf("%w: zero collateral asset address", ErrConfigurationMismatch)
		}
		if _, exists := registry.feeds[asset]; exists {
			return nil, fmt.Errorf("%w: duplicate collateral asset %s", ErrConfigurationMismatch, asset.Hex())
		}
		if feeds[i].Source == nil {
			return nil, fmt.Errorf("%w: nil price feed for asset %s", ErrConfigurationMismatch, asset.Hex())
		}
		registry.ordered = append(registry.ordered, asset)
		registry.feeds[asset] = feeds[i]
	}
	return registry, nil
}

func (r *assetRegistry) allowed(asset common.Address) bool {
	_, ok := r.feeds[asset]
	return ok
}

func (r *assetRegistry) binding(asset common.Address) (FeedBinding, bool) {
	binding, ok := r.feeds[asset]
	return binding, ok
}

func (r *assetRegistry) assets() []common.Address {
	out := make([]common.Address, len(r.ordered))
	copy(out, r.ordered)
	return out
}
