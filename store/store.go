// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package store persists the messenger state in leveldb. Records are
// append/mutate-once, so the layout is a flat set of prefixed buckets
// with one explicit schema version key; any layout change must bump
// the version and ship a migration.
package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/crosslayer/depositbridge/types"
)

// used to compute the size of bloom filter bits array.
// too small will lead to high false positive rate.
const bitsPerKey = 10

// SchemaVersion is bumped whenever the key layout changes.
const SchemaVersion = 1

var (
	// buckets
	bktMessages   = []byte("msg")
	keyQueue      = []byte("queue")
	keyNonce      = []byte("nonce")
	keySubmitters = []byte("submitters")
	keySchema     = []byte("schema")
)

// ErrSchemaMismatch is returned when an existing database was written
// with an incompatible layout.
var ErrSchemaMismatch = errors.New("store: schema version mismatch")

type Store struct {
	db *leveldb.DB
}

// OpenFile opens (or creates) the database at path, recovering from a
// corrupted manifest where possible.
func OpenFile(path string) (*Store, error) {
	o := opt.Options{
		NoSync: false,
		Filter: filter.NewBloomFilter(bitsPerKey),
	}
	db, err := leveldb.OpenFile(path, &o)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}
	return wrap(db)
}

// OpenMemory backs the store with an in-memory storage, for tests and
// throwaway runs.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return wrap(db)
}

func wrap(db *leveldb.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchema() error {
	data, err := s.db.Get(keySchema, nil)
	if err == leveldb.ErrNotFound {
		return s.db.Put(keySchema, []byte{SchemaVersion}, nil)
	}
	if err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if len(data) != 1 || data[0] != SchemaVersion {
		return ErrSchemaMismatch
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func messageKey(hash common.Hash) []byte {
	return append(append([]byte{}, bktMessages...), hash.Bytes()...)
}

// Message loads a record by hash. Returns (nil, nil) when absent.
func (s *Store) Message(hash common.Hash) (*types.DepositMessage, error) {
	data, err := s.db.Get(messageKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read deposit message")
	}
	var msg types.DepositMessage
	if err := rlp.DecodeBytes(data, &msg); err != nil {
		return nil, errors.Wrap(err, "decode deposit message")
	}
	return &msg, nil
}

// Queue loads the persisted queue order, front first.
func (s *Store) Queue() ([]common.Hash, error) {
	data, err := s.db.Get(keyQueue, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read queue")
	}
	var hashes []common.Hash
	if err := rlp.DecodeBytes(data, &hashes); err != nil {
		return nil, errors.Wrap(err, "decode queue")
	}
	return hashes, nil
}

// Nonce loads the next nonce to assign; zero on a fresh database.
func (s *Store) Nonce() (uint64, error) {
	data, err := s.db.Get(keyNonce, nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read nonce")
	}
	if len(data) != 8 {
		return 0, errors.New("store: malformed nonce record")
	}
	return binary.BigEndian.Uint64(data), nil
}

// Submitters loads the authorized-submitter set.
func (s *Store) Submitters() ([]common.Address, error) {
	data, err := s.db.Get(keySubmitters, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read submitters")
	}
	var addrs []common.Address
	if err := rlp.DecodeBytes(data, &addrs); err != nil {
		return nil, errors.Wrap(err, "decode submitters")
	}
	return addrs, nil
}

// WriteSubmission stores a new record together with the updated queue
// and nonce counter in one batch, so a crash cannot leave the three
// disagreeing.
func (s *Store) WriteSubmission(msg *types.DepositMessage, queue []common.Hash, nextNonce uint64) error {
	batch := new(leveldb.Batch)
	if err := batchPutMessage(batch, msg); err != nil {
		return err
	}
	if err := batchPutQueue(batch, queue); err != nil {
		return err
	}
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], nextNonce)
	batch.Put(keyNonce, nonce[:])
	return errors.Wrap(s.db.Write(batch, nil), "write submission")
}

// WriteCancellation stores the flipped record and the queue it was
// removed from in one batch.
func (s *Store) WriteCancellation(msg *types.DepositMessage, queue []common.Hash) error {
	batch := new(leveldb.Batch)
	if err := batchPutMessage(batch, msg); err != nil {
		return err
	}
	if err := batchPutQueue(batch, queue); err != nil {
		return err
	}
	return errors.Wrap(s.db.Write(batch, nil), "write cancellation")
}

// WriteQueue stores the queue alone, used after a drain.
func (s *Store) WriteQueue(queue []common.Hash) error {
	batch := new(leveldb.Batch)
	if err := batchPutQueue(batch, queue); err != nil {
		return err
	}
	return errors.Wrap(s.db.Write(batch, nil), "write queue")
}

// WriteSubmitters stores the authorized-submitter set.
func (s *Store) WriteSubmitters(addrs []common.Address) error {
	data, err := rlp.EncodeToBytes(addrs)
	if err != nil {
		return errors.Wrap(err, "encode submitters")
	}
	return errors.Wrap(s.db.Put(keySubmitters, data, nil), "write submitters")
}

func batchPutMessage(batch *leveldb.Batch, msg *types.DepositMessage) error {
	data, err := rlp.EncodeToBytes(msg)
	if err != nil {
		return errors.Wrap(err, "encode deposit message")
	}
	batch.Put(messageKey(msg.Hash()), data)
	return nil
}

func batchPutQueue(batch *leveldb.Batch, queue []common.Hash) error {
	data, err := rlp.EncodeToBytes(queue)
	if err != nil {
		return errors.Wrap(err, "encode queue")
	}
	batch.Put(keyQueue, data)
	return nil
}
