// Package memory provides an in-process store.Store, for tests and for
// ledgers that do not need to survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	metadata   *token.Metadata
	balances   map[types.Address]balance.Balance
	allowances map[allowance.Key]allowance.Allowance
	events     []event.Event
}

func New() *Store {
	return &Store{
		balances:   make(map[types.Address]balance.Balance),
		allowances: make(map[allowance.Key]allowance.Allowance),
		events:     make([]event.Event, 0),
	}
}

// Token Store implementation
func (s *Store) GetMetadata(_ context.Context) (*token.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.metadata == nil {
		return nil, stokvel.ErrNotDeployed
	}
	m := *s.metadata
	return &m, nil
}

// Balance Store implementation
func (s *Store) GetBalance(_ context.Context, account types.Address) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Amount{}, stokvel.ErrStoreClosed
	}
	return s.balances[account].Amount, nil
}

func (s *Store) ListBalances(_ context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*balance.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		if opts.NonZero && b.Amount.IsZero() {
			continue
		}
		b := b
		result = append(result, &b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account.Cmp(result[j].Account) < 0
	})

	start, end := opts.Paginate(len(result))
	return result[start:end], nil
}

// Allowance Store implementation
func (s *Store) GetAllowance(_ context.Context, owner, spender types.Address) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Amount{}, stokvel.ErrStoreClosed
	}
	return s.allowances[allowance.Key{Owner: owner, Spender: spender}].Amount, nil
}

func (s *Store) ListAllowances(_ context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*allowance.Allowance, 0)
	for k, a := range s.allowances {
		if k.Owner != owner {
			continue
		}
		a := a
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Spender.Cmp(result[j].Spender) < 0
	})

	start, end := opts.Paginate(len(result))
	return result[start:end], nil
}

// Event Store implementation
func (s *Store) ListEvents(_ context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for i := range s.events {
		e := s.events[i]
		if !opts.Matches(&e) {
			continue
		}
		result = append(result, &e)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].Sequence, nil
}

// Commit applies cs under the write lock. All checks run before the first write.
func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stokvel.ErrStoreClosed
	}
	if cs.Metadata != nil && s.metadata != nil {
		return stokvel.ErrAlreadyDeployed
	}

	next := uint64(1)
	if len(s.events) > 0 {
		next = s.events[len(s.events)-1].Sequence + 1
	}
	for i, e := range cs.Events {
		if e.Sequence != next+uint64(i) {
			return fmt.Errorf("%w: event sequence %d, want %d", stokvel.ErrTransactionFailed, e.Sequence, next+uint64(i))
		}
	}

	if cs.Metadata != nil {
		m := *cs.Metadata
		s.metadata = &m
	}
	for _, b := range cs.Balances {
		s.balances[b.Account] = *b
	}
	for _, a := range cs.Allowances {
		s.allowances[a.Key()] = *a
	}
	for _, e := range cs.Events {
		s.events = append(s.events, *e)
	}
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return stokvel.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
