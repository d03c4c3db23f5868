package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Persister saves and restores the learned signature set across restarts.
// Persisted data is already sanitized; no raw text ever reaches a persister.
type Persister interface {
	Save(ctx context.Context, entries []PatternEntry) error
	Load(ctx context.Context) ([]PatternEntry, error)
	Close() error
}

// NopPersister discards saves and restores nothing. Used when persistence is
// disabled.
type NopPersister struct{}

func (NopPersister) Save(context.Context, []PatternEntry) error  { return nil }
func (NopPersister) Load(context.Context) ([]PatternEntry, error) { return nil, nil }
func (NopPersister) Close() error                                 { return nil }

const badgerKeyPrefix = "pattern:"

// BadgerPersister stores entries in an embedded Badger database, one key per
// signature. The default for single-host deployments.
type BadgerPersister struct {
	db *badger.DB
}

// NewBadgerPersister opens (or creates) the database at dir.
func NewBadgerPersister(dir string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open pattern database: %w", err)
	}
	return &BadgerPersister{db: db}, nil
}

// Save writes the full entry set and drops keys no longer present.
func (p *BadgerPersister) Save(ctx context.Context, entries []PatternEntry) error {
	live := make(map[string]bool, len(entries))
	for _, e := range entries {
		live[badgerKeyPrefix+e.Signature] = true
	}

	wb := p.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := wb.Set([]byte(badgerKeyPrefix+e.Signature), data); err != nil {
			return fmt.Errorf("batch entry: %w", err)
		}
	}

	// Collect stale keys in a read transaction, then delete in the batch.
	var stale [][]byte
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(badgerKeyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if !live[string(key)] {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan stale entries: %w", err)
	}
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("drop stale entry: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush pattern batch: %w", err)
	}
	return nil
}

// Load reads every persisted entry.
func (p *BadgerPersister) Load(ctx context.Context) ([]PatternEntry, error) {
	var entries []PatternEntry
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(badgerKeyPrefix), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e PatternEntry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("decode entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the database.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}

const redisHashKey = "sentinel:patterns"

// RedisPersister stores entries in a Redis hash, for deployments that share
// learned patterns across hosts.
type RedisPersister struct {
	client *redis.Client
}

// NewRedisPersister connects to Redis and verifies the connection.
func NewRedisPersister(ctx context.Context, addr, password string, db int) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPersister{client: client}, nil
}

// Save replaces the hash contents with the current entry set.
func (p *RedisPersister) Save(ctx context.Context, entries []PatternEntry) error {
	fields := make(map[string]any, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		fields[e.Signature] = data
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, redisHashKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, redisHashKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

// Load reads every persisted entry from the hash.
func (p *RedisPersister) Load(ctx context.Context) ([]PatternEntry, error) {
	raw, err := p.client.HGetAll(ctx, redisHashKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis load: %w", err)
	}

	entries := make([]PatternEntry, 0, len(raw))
	for _, val := range raw {
		var e PatternEntry
		if err := json.Unmarshal([]byte(val), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close releases the client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}

// timeoutCtx is a small helper for persister calls made from the janitor.
func timeoutCtx(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
