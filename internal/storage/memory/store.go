// Package memory implements storage.Store in process memory, optionally
// persisted to a JSON snapshot file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/ledger"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

type snapshot struct {
	Pools    map[common.Hash]model.PoolRecord `json:"pools"`
	Balances ledger.Balances                  `json:"balances"`
}

func (s snapshot) clone() snapshot {
	pools := make(map[common.Hash]model.PoolRecord, len(s.Pools))
	for id, pool := range s.Pools {
		pools[id] = pool
	}
	return snapshot{Pools: pools, Balances: s.Balances.Clone()}
}

// Store serializes every transaction behind one mutex. A transaction works on
// a copy of the state that replaces the live state only once fn succeeds and
// the snapshot, if any, is written.
type Store struct {
	mu    sync.Mutex
	path  string
	state snapshot
}

// New returns an empty, unpersisted store.
func New() *Store {
	return &Store{state: snapshot{
		Pools:    make(map[common.Hash]model.PoolRecord),
		Balances: ledger.Balances{},
	}}
}

// Open loads the snapshot at path, starting empty if it does not exist.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path
	if path == "" {
		return s, nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if snap.Pools != nil {
		s.state.Pools = snap.Pools
	}
	if snap.Balances != nil {
		s.state.Balances = snap.Balances
	}
	return s, nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.apply(ctx, func(staged snapshot) error {
		return fn(ctx, &memTx{state: staged})
	})
}

func (s *Store) apply(ctx context.Context, fn func(staged snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	if err := s.persist(staged); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) Pool(_ context.Context, id common.Hash) (model.PoolRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.state.Pools[id]
	if !ok {
		return model.PoolRecord{}, storage.ErrPoolNotFound
	}
	return pool, nil
}

func (s *Store) Balance(_ context.Context, account, asset common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Balances.Balance(account, asset), nil
}

func (s *Store) Credit(ctx context.Context, account, asset common.Address, amount uint64) error {
	return s.apply(ctx, func(staged snapshot) error {
		return staged.Balances.Credit(account, asset, amount)
	})
}

func (s *Store) Close() {}

func (s *Store) persist(snap snapshot) error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

type memTx struct {
	state snapshot
}

func (t *memTx) Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error {
	return t.state.Balances.Transfer(ctx, from, to, asset, amount)
}

func (t *memTx) LoadPool(_ context.Context, id common.Hash) (model.PoolRecord, error) {
	pool, ok := t.state.Pools[id]
	if !ok {
		return model.PoolRecord{}, storage.ErrPoolNotFound
	}
	return pool, nil
}

func (t *memTx) InsertPool(_ context.Context, pool model.PoolRecord) error {
	if _, ok := t.state.Pools[pool.ID]; ok {
		return storage.ErrPoolExists
	}
	t.state.Pools[pool.ID] = pool
	return nil
}

func (t *memTx) SavePool(_ context.Context, pool model.PoolRecord) error {
	if _, ok := t.state.Pools[pool.ID]; !ok {
		return storage.ErrPoolNotFound
	}
	t.state.Pools[pool.ID] = pool
	return nil
}
