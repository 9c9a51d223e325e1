package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	stokvelstore "github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Collection name constants.
const (
	colToken      = "stokvel_token"
	colBalances   = "stokvel_balances"
	colAllowances = "stokvel_allowances"
	colEvents     = "stokvel_events"
)

// compile-time interface check
var _ stokvelstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB. Commit uses multi-document
// transactions, so the server must run as a replica set.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and uses database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("stokvel/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("stokvel/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// New wraps an existing client. Close disconnects it.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all stokvel collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("stokvel/mongo: %w: %s indexes: %w", stokvel.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Token Store ====================

func (s *Store) GetMetadata(ctx context.Context) (*token.Metadata, error) {
	var m tokenModel
	err := s.db.Collection(colToken).FindOne(ctx, bson.M{"_id": tokenDocID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stokvel.ErrNotDeployed
		}
		return nil, fmt.Errorf("stokvel/mongo: get metadata: %w", err)
	}
	return fromTokenModel(&m)
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account types.Address) (types.Amount, error) {
	var m balanceModel
	err := s.db.Collection(colBalances).FindOne(ctx, bson.M{"_id": addr(account)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/mongo: get balance: %w", err)
	}
	return types.ParseAmount(m.Amount)
}

func (s *Store) ListBalances(ctx context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	filter := bson.M{}
	if opts.NonZero {
		filter["amount"] = bson.M{"$ne": "0"}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colBalances).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("stokvel/mongo: list balances: %w", err)
	}
	var models []balanceModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("stokvel/mongo: decode balances: %w", err)
	}

	out := make([]*balance.Balance, 0, len(models))
	for i := range models {
		b, err := fromBalanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ==================== Allowance Store ====================

func (s *Store) GetAllowance(ctx context.Context, owner, spender types.Address) (types.Amount, error) {
	var m allowanceModel
	key := allowanceKeyModel{Owner: addr(owner), Spender: addr(spender)}
	err := s.db.Collection(colAllowances).FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/mongo: get allowance: %w", err)
	}
	return types.ParseAmount(m.Amount)
}

func (s *Store) ListAllowances(ctx context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "spender", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colAllowances).Find(ctx, bson.M{"owner": addr(owner)}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("stokvel/mongo: list allowances: %w", err)
	}
	var models []allowanceModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("stokvel/mongo: decode allowances: %w", err)
	}

	out := make([]*allowance.Allowance, 0, len(models))
	for i := range models {
		a, err := fromAllowanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ==================== Event Store ====================

func (s *Store) ListEvents(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	filter := bson.M{}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if !types.IsZeroAddress(opts.Account) {
		a := addr(opts.Account)
		filter["$or"] = bson.A{
			bson.M{"from": a},
			bson.M{"to": a},
			bson.M{"owner": a},
			bson.M{"spender": a},
			bson.M{"supplier": a},
		}
	}
	if opts.AfterSequence > 0 {
		filter["_id"] = bson.M{"$gt": int64(opts.AfterSequence)} //nolint:gosec // sequences stay far below 2^63
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("stokvel/mongo: list events: %w", err)
	}
	var models []eventModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("stokvel/mongo: decode events: %w", err)
	}

	out := make([]*event.Event, 0, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var m eventModel
	err := s.db.Collection(colEvents).
		FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stokvel/mongo: last sequence: %w", err)
	}
	return uint64(m.Sequence), nil //nolint:gosec // never negative
}

// ==================== Commit ====================

// Commit writes cs inside a multi-document transaction.
func (s *Store) Commit(ctx context.Context, cs *stokvelstore.Changeset) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("stokvel/mongo: start session: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.write(ctx, cs)
	})
	if err != nil {
		if errors.Is(err, stokvel.ErrAlreadyDeployed) || errors.Is(err, stokvel.ErrTransactionFailed) {
			return err
		}
		return fmt.Errorf("stokvel/mongo: commit: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, cs *stokvelstore.Changeset) error {
	if cs.Metadata != nil {
		n, err := s.db.Collection(colToken).CountDocuments(ctx, bson.M{"_id": tokenDocID})
		if err != nil {
			return fmt.Errorf("stokvel/mongo: check metadata: %w", err)
		}
		if n > 0 {
			return stokvel.ErrAlreadyDeployed
		}
		if _, err := s.db.Collection(colToken).InsertOne(ctx, toTokenModel(cs.Metadata)); err != nil {
			return fmt.Errorf("stokvel/mongo: insert metadata: %w", err)
		}
	}

	if len(cs.Events) > 0 {
		last, err := s.LastSequence(ctx)
		if err != nil {
			return err
		}
		if cs.Events[0].Sequence != last+1 {
			return fmt.Errorf("stokvel/mongo: %w: event sequence %d, want %d",
				stokvel.ErrTransactionFailed, cs.Events[0].Sequence, last+1)
		}
	}

	upsert := options.Replace().SetUpsert(true)

	for _, b := range cs.Balances {
		m := toBalanceModel(b)
		if _, err := s.db.Collection(colBalances).ReplaceOne(ctx, bson.M{"_id": m.Account}, m, upsert); err != nil {
			return fmt.Errorf("stokvel/mongo: upsert balance: %w", err)
		}
	}

	for _, a := range cs.Allowances {
		m := toAllowanceModel(a)
		if _, err := s.db.Collection(colAllowances).ReplaceOne(ctx, bson.M{"_id": m.Key}, m, upsert); err != nil {
			return fmt.Errorf("stokvel/mongo: upsert allowance: %w", err)
		}
	}

	if len(cs.Events) > 0 {
		docs := make([]any, 0, len(cs.Events))
		for _, e := range cs.Events {
			docs = append(docs, toEventModel(e))
		}
		if _, err := s.db.Collection(colEvents).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("stokvel/mongo: append events: %w", err)
		}
	}

	return nil
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAllowances: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "spender", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "operation_id", Value: 1}}},
			{Keys: bson.D{{Key: "from", Value: 1}}},
			{Keys: bson.D{{Key: "to", Value: 1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "spender", Value: 1}}},
			{Keys: bson.D{{Key: "supplier", Value: 1}}},
		},
	}
}
