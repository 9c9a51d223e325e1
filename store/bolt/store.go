// Package bolt provides an embedded, single-file store.Store on BoltDB.
// Records are JSON encoded; every Commit is one bolt Update transaction.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	stokvelstore "github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// compile-time interface check
var _ stokvelstore.Store = (*Store)(nil)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	bucketToken      = []byte("token")
	bucketBalances   = []byte("balances")
	bucketAllowances = []byte("allowances")
	bucketEvents     = []byte("events")

	metadataKey = []byte("metadata")
)

// Store implements store.Store on a BoltDB file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("stokvel/bolt: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying bolt database for direct access.
func (s *Store) DB() *bolt.DB { return s.db }

// Migrate creates the buckets.
func (s *Store) Migrate(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketToken, bucketBalances, bucketAllowances, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stokvel/bolt: %w: %w", stokvel.ErrMigrationFailed, err)
	}
	return nil
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Token Store ====================

func (s *Store) GetMetadata(_ context.Context) (*token.Metadata, error) {
	var meta *token.Metadata
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketToken).Get(metadataKey)
		if raw == nil {
			return stokvel.ErrNotDeployed
		}
		meta = new(token.Metadata)
		return json.Unmarshal(raw, meta)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(_ context.Context, account types.Address) (types.Amount, error) {
	var amt types.Amount
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBalances).Get(account.Bytes())
		if raw == nil {
			return nil
		}
		var b balance.Balance
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		amt = b.Amount
		return nil
	})
	return amt, err
}

func (s *Store) ListBalances(_ context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	result := make([]*balance.Balance, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Keys are raw address bytes, so cursor order is account order.
		return tx.Bucket(bucketBalances).ForEach(func(_, v []byte) error {
			b := new(balance.Balance)
			if err := json.Unmarshal(v, b); err != nil {
				return err
			}
			if opts.NonZero && b.Amount.IsZero() {
				return nil
			}
			result = append(result, b)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("stokvel/bolt: list balances: %w", err)
	}

	start, end := opts.Paginate(len(result))
	return result[start:end], nil
}

// ==================== Allowance Store ====================

func allowanceKey(owner, spender types.Address) []byte {
	k := make([]byte, 0, 2*len(owner))
	k = append(k, owner.Bytes()...)
	return append(k, spender.Bytes()...)
}

func (s *Store) GetAllowance(_ context.Context, owner, spender types.Address) (types.Amount, error) {
	var amt types.Amount
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAllowances).Get(allowanceKey(owner, spender))
		if raw == nil {
			return nil
		}
		var a allowance.Allowance
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		amt = a.Amount
		return nil
	})
	return amt, err
}

func (s *Store) ListAllowances(_ context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	result := make([]*allowance.Allowance, 0)
	prefix := owner.Bytes()
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAllowances).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			a := new(allowance.Allowance)
			if err := json.Unmarshal(v, a); err != nil {
				return err
			}
			result = append(result, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stokvel/bolt: list allowances: %w", err)
	}

	start, end := opts.Paginate(len(result))
	return result[start:end], nil
}

// ==================== Event Store ====================

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func (s *Store) ListEvents(_ context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	result := make([]*event.Event, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(seqKey(opts.AfterSequence + 1)); k != nil; k, v = c.Next() {
			e := new(event.Event)
			if err := json.Unmarshal(v, e); err != nil {
				return err
			}
			if !opts.Matches(e) {
				continue
			}
			result = append(result, e)
			if opts.Limit > 0 && len(result) == opts.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stokvel/bolt: list events: %w", err)
	}
	return result, nil
}

func (s *Store) LastSequence(_ context.Context) (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		seq = lastSequence(tx)
		return nil
	})
	return seq, err
}

func lastSequence(tx *bolt.Tx) uint64 {
	k, _ := tx.Bucket(bucketEvents).Cursor().Last()
	if k == nil {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

// ==================== Commit ====================

// Commit writes cs in one bolt Update transaction; any error rolls it back.
func (s *Store) Commit(_ context.Context, cs *stokvelstore.Changeset) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if cs.Metadata != nil {
			b := tx.Bucket(bucketToken)
			if b.Get(metadataKey) != nil {
				return stokvel.ErrAlreadyDeployed
			}
			raw, err := json.Marshal(cs.Metadata)
			if err != nil {
				return err
			}
			if err := b.Put(metadataKey, raw); err != nil {
				return err
			}
		}

		if len(cs.Events) > 0 {
			if want := lastSequence(tx) + 1; cs.Events[0].Sequence != want {
				return fmt.Errorf("stokvel/bolt: %w: event sequence %d, want %d",
					stokvel.ErrTransactionFailed, cs.Events[0].Sequence, want)
			}
		}

		balances := tx.Bucket(bucketBalances)
		for _, b := range cs.Balances {
			raw, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if err := balances.Put(b.Account.Bytes(), raw); err != nil {
				return err
			}
		}

		allowances := tx.Bucket(bucketAllowances)
		for _, a := range cs.Allowances {
			raw, err := json.Marshal(a)
			if err != nil {
				return err
			}
			if err := allowances.Put(allowanceKey(a.Owner, a.Spender), raw); err != nil {
				return err
			}
		}

		events := tx.Bucket(bucketEvents)
		for _, e := range cs.Events {
			raw, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := events.Put(seqKey(e.Sequence), raw); err != nil {
				return err
			}
		}
		return nil
	})
}
