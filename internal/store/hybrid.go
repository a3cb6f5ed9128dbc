package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookcourier/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

// HybridStore combines Redis (the fast, possibly-stale archive index)
// and Badger (durable cache records and language policies). It backs
// all three store ports behind one pair of connections that are opened
// once per process and reused.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// cacheRecord is the Badger value for a (book, variant) pair.
type cacheRecord struct {
	Handle    string    `json:"handle"`
	UpdatedAt time.Time `json:"updated_at"`
}

func archiveKey(bookID int) string { return fmt.Sprintf("archive:%d", bookID) }

func cacheKey(bookID int, variant model.Variant) []byte {
	return []byte(fmt.Sprintf("cache:%d:%s", bookID, variant))
}

func policyKey(userID int64) []byte {
	return []byte(fmt.Sprintf("policy:%d", userID))
}

// NewHybridStore opens both backends. Pass badgerPath="" to keep the
// durable side in memory (one-shot CLI commands and tests).
func NewHybridStore(redisAddr, redisPassword, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	opts := badger.DefaultOptions(badgerPath)
	if badgerPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // silence default logger
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections.
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// ArchiveRef returns the archive channel message id for the pair, from
// the Redis hash archive:{bookID} keyed by variant.
func (s *HybridStore) ArchiveRef(ctx context.Context, bookID int, variant model.Variant) (int64, error) {
	val, err := s.rdb.HGet(ctx, archiveKey(bookID), variant.String()).Int64()
	if err == redis.Nil {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}
	return val, nil
}

// CachedHandle returns the stored transport handle for the pair.
func (s *HybridStore) CachedHandle(ctx context.Context, bookID int, variant model.Variant) (string, error) {
	var rec cacheRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(bookID, variant))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}
	return rec.Handle, nil
}

// PutCachedHandle replaces the record for the pair. Last write wins.
func (s *HybridStore) PutCachedHandle(ctx context.Context, bookID int, variant model.Variant, handle string) error {
	data, err := json.Marshal(cacheRecord{Handle: handle, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(bookID, variant), data)
	})
}

// DeleteCachedHandle drops the record for the pair. Deleting an absent
// record is not an error.
func (s *HybridStore) DeleteCachedHandle(ctx context.Context, bookID int, variant model.Variant) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(bookID, variant))
	})
}

// Policy returns the stored language policy for the user.
func (s *HybridStore) Policy(ctx context.Context, userID int64) (model.LanguagePolicy, error) {
	var policy model.LanguagePolicy
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(policyKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &policy)
		})
	})
	if err == badger.ErrKeyNotFound {
		return model.LanguagePolicy{}, ErrNotFound
	} else if err != nil {
		return model.LanguagePolicy{}, err
	}
	return policy, nil
}

// PutPolicy stores the policy, replacing any prior record.
func (s *HybridStore) PutPolicy(ctx context.Context, userID int64, policy model.LanguagePolicy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(policyKey(userID), data)
	})
}

// Stats reports keyspace sizes for the ops server.
type Stats struct {
	ArchiveBooks int64 `json:"archive_books"`
	CacheRecords int   `json:"cache_records"`
	Policies     int   `json:"policies"`
}

// Stats counts archive hashes in Redis and record kinds in Badger.
func (s *HybridStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	iter := s.rdb.Scan(ctx, 0, "archive:*", 0).Iterator()
	for iter.Next(ctx) {
		st.ArchiveBooks++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			switch {
			case len(key) > 6 && key[:6] == "cache:":
				st.CacheRecords++
			case len(key) > 7 && key[:7] == "policy:":
				st.Policies++
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Ping verifies the Redis connection is alive.
func (s *HybridStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Port adapters. The HybridStore carries all three keyspaces; these
// views expose each one behind its narrow contract.

type cacheView struct{ s *HybridStore }

func (v cacheView) Get(ctx context.Context, bookID int, variant model.Variant) (string, error) {
	return v.s.CachedHandle(ctx, bookID, variant)
}

func (v cacheView) Put(ctx context.Context, bookID int, variant model.Variant, handle string) error {
	return v.s.PutCachedHandle(ctx, bookID, variant, handle)
}

func (v cacheView) Delete(ctx context.Context, bookID int, variant model.Variant) error {
	return v.s.DeleteCachedHandle(ctx, bookID, variant)
}

type archiveView struct{ s *HybridStore }

func (v archiveView) Get(ctx context.Context, bookID int, variant model.Variant) (int64, error) {
	return v.s.ArchiveRef(ctx, bookID, variant)
}

type settingsView struct{ s *HybridStore }

func (v settingsView) Get(ctx context.Context, userID int64) (model.LanguagePolicy, error) {
	return v.s.Policy(ctx, userID)
}

func (v settingsView) Put(ctx context.Context, userID int64, policy model.LanguagePolicy) error {
	return v.s.PutPolicy(ctx, userID, policy)
}

// Cache returns the CacheStore view.
func (s *HybridStore) Cache() CacheStore { return cacheView{s} }

// Archive returns the ArchiveIndex view.
func (s *HybridStore) Archive() ArchiveIndex { return archiveView{s} }

// Settings returns the SettingsStore view.
func (s *HybridStore) Settings() SettingsStore { return settingsView{s} }
