package engine

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"synthd/storage"
)

var (
	positionPrefix = []byte("engine-position:")
	approvalPrefix = []byte("engine-approval:")
)

// KVState persists positions and approvals in a key-value database. Records
// are RLP encoded under keccak-hashed keys; collateral entries are sorted by
// asset address so encoding is deterministic.
type KVState struct {
	db storage.Database
}

// NewKVState wraps the provided database.
func NewKVState(db storage.Database) *KVState {
	return &KVState{db: db}
}

type storedCollateral struct {
	Asset  common.Address
	Amount *big.Int
}

type storedPosition struct {
	Collateral []storedCollateral
	Debt       *big.Int
}

func positionKey(addr common.Address) []byte {
	buf := make([]byte, len(positionPrefix)+common.AddressLength)
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

func approvalStoreKey(owner, operator common.Address) []byte {
	buf := make([]byte, len(approvalPrefix)+2*common.AddressLength)
	copy(buf, approvalPrefix)
	copy(buf[len(approvalPrefix):], owner.Bytes())
	copy(buf[len(approvalPrefix)+common.AddressLength:], operator.Bytes())
	return ethcrypto.Keccak256(buf)
}

// GetPosition implements the State interface.
func (s *KVState) GetPosition(addr common.Address) (*Position, error) {
	if s == nil || s.db == nil {
		return nil, errNilState
	}
	key := positionKey(addr)
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("engine: decode position: %w", err)
	}
	position := NewPosition()
	for _, entry := range stored.Collateral {
		if entry.Amount != nil && entry.Amount.Sign() > 0 {
			position.Collateral[entry.Asset] = new(big.Int).Set(entry.Amount)
		}
	}
	if stored.Debt != nil {
		position.Debt = new(big.Int).Set(stored.Debt)
	}
	return position, nil
}

// PutPosition implements the State interface. All-zero positions are deleted;
// an empty record and an absent one are the same terminal state.
func (s *KVState) PutPosition(addr common.Address, position *Position) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	key := positionKey(addr)
	if position == nil || position.IsZero() {
		return s.db.Delete(key)
	}
	stored := storedPosition{Debt: position.Debt}
	for asset, amount := range position.Collateral {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		stored.Collateral = append(stored.Collateral, storedCollateral{Asset: asset, Amount: amount})
	}
	sort.Slice(stored.Collateral, func(i, j int) bool {
		return stored.Collateral[i].Asset.Cmp(stored.Collateral[j].Asset) < 0
	})
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("engine: encode position: %w", err)
	}
	return s.db.Put(key, raw)
}

// GetApproval implements the State interface.
func (s *KVState) GetApproval(owner, operator common.Address) (bool, error) {
	if s == nil || s.db == nil {
		return false, errNilState
	}
	return s.db.Has(approvalStoreKey(owner, operator))
}

// PutApproval implements the State interface.
func (s *KVState) PutApproval(owner, operator common.Address, approved bool) error {
	if s == nil || s.db == nil {
		return errNilState
	}
	key := approvalStoreKey(owner, operator)
	if !approved {
		return s.db.Delete(key)
	}
	return s.db.Put(key, []byte{0x01})
}
