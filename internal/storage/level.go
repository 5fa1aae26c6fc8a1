// Package storage provides the key-value stores ledger snapshots are kept in.
package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vmihailenco/msgpack/v5"
)

// LevelStore keeps msgpack-encoded values in LevelDB.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens the database at path, recovering it if the manifest
// is corrupted.
func OpenLevelStore(path string) (*LevelStore, error) {
	options := &opt.Options{
		OpenFilesCacheCapacity:        10,
		WriteBuffer:                   4 * opt.MiB,
		Filter:                        filter.NewBloomFilter(10),
		CompactionTableSize:           2 * opt.MiB,
		CompactionTableSizeMultiplier: 2,
	}
	db, err := leveldb.OpenFile(path, options)
	if _, corrupted := err.(*leveldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// Put stores v under key.
func (s *LevelStore) Put(key string, v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), b, nil)
}

// PutAll stores every entry in one atomic batch.
func (s *LevelStore) PutAll(entries map[string]interface{}) error {
	batch := new(leveldb.Batch)
	for key, v := range entries {
		b, err := msgpack.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		batch.Put([]byte(key), b)
	}
	return s.db.Write(batch, nil)
}

// Get decodes the value under key into v. It reports false if key is absent.
func (s *LevelStore) Get(key string, v interface{}) (bool, error) {
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := msgpack.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Keys lists the keys starting with prefix in order.
func (s *LevelStore) Keys(prefix string) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// Close closes the database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
