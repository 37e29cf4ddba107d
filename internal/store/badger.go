package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

var (
	tokenPrefix = []byte("token/")
	metaKey     = []byte("meta/registry")
)

// BadgerStore persists state in a Badger database. Each Apply is a single
// Badger transaction.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerStore opens a Badger database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	logger.Info("badger store opened", zap.String("dir", dir))

	return &BadgerStore{db: db, logger: logger}, nil
}

func (b *BadgerStore) Load(ctx context.Context) (*State, error) {
	st := &State{}

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		switch {
		case err == nil:
			var reg registryFile
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &reg)
			}); err != nil {
				return fmt.Errorf("failed to parse registry metadata: %w", err)
			}
			st.NextID = reg.NextID
			st.Roles = reg.Roles
		case errors.Is(err, badger.ErrKeyNotFound):
			// Fresh store
		default:
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = tokenPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec TokenRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to parse token %x: %w", it.Item().Key(), err)
			}
			st.Tokens = append(st.Tokens, rec)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: load: %w", err)
	}

	normalize(st)
	return st, nil
}

func (b *BadgerStore) Apply(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, rec := range change.Tokens {
			val, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal token %d: %w", rec.ID, err)
			}
			if err := txn.Set(tokenKey(rec.ID), val); err != nil {
				return err
			}
		}

		reg := registryFile{NextID: change.NextID, Roles: change.Roles}
		if change.Roles == nil {
			item, err := txn.Get(metaKey)
			switch {
			case err == nil:
				var current registryFile
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &current)
				}); err != nil {
					return err
				}
				reg.Roles = current.Roles
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}

		val, err := json.Marshal(reg)
		if err != nil {
			return err
		}
		return txn.Set(metaKey, val)
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// tokenKey orders tokens by ID under the token prefix.
func tokenKey(id uint64) []byte {
	key := make([]byte, len(tokenPrefix)+8)
	copy(key, tokenPrefix)
	binary.BigEndian.PutUint64(key[len(tokenPrefix):], id)
	return key
}

// badgerLogger adapts zap to Badger's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
