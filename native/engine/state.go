package engine

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// State persists the engine's entire durable footprint: the per-account
// positions and the operator approvals. Implementations must hand out detached
// copies so callers can mutate freely and commit by calling PutPosition;
// nothing persists until then.
type State interface {
	// GetPosition returns the stored position or nil when the account has
	// never touched the engine.
	GetPosition(addr common.Address) (*Position, error)
	PutPosition(addr common.Address, position *Position) error
	GetApproval(owner, operator common.Address) (bool, error)
	PutApproval(owner, operator common.Address, approved bool) error
}

type approvalKey struct {
	owner    common.Address
	operator common.Address
}

// MemoryState is the in-process State implementation used by tests and
// ephemeral deployments.
type MemoryState struct {
	mu        sync.RWMutex
	positions map[common.Address]*Position
	approvals map[approvalKey]bool
}

// NewMemoryState constructs an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		positions: make(map[common.Address]*Position),
		approvals: make(map[approvalKey]bool),
	}
}

// GetPosition implements the State interface.
func (s *MemoryState) GetPosition(addr common.Address) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, ok := s.positions[addr]
	if !ok {
		return nil, nil
	}
	return position.Clone(), nil
}

// PutPosition implements the State interface.
func (s *MemoryState) PutPosition(addr common.Address, position *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position == nil || position.IsZero() {
		delete(s.positions, addr)
		return nil
	}
	s.positions[addr] = position.Clone()
	return nil
}

// GetApproval implements the State interface.
func (s *MemoryState) GetApproval(owner, operator common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvals[approvalKey{owner: owner, operator: operator}], nil
}

// PutApproval implements the State interface.
func (s *MemoryState) PutApproval(owner, operator common.Address, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := approvalKey{owner: owner, operator: operator}
	if !approved {
		delete(s.approvals, key)
		return nil
	}
	s.approvals[key] = true
	return nil
}
