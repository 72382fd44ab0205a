package marker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// keyspace prefixes every marker stored in badger so the database can be
// shared with other data later.
var keyspace = []byte("marker:")

// BadgerStore keeps markers in a BadgerDB database. The value of each entry
// is the creation time in RFC 3339 form; only presence is significant.
type BadgerStore struct {
	db *badger.DB
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// Logger receives badger warnings and errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewBadgerStore opens (or creates) the database described by opts.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("marker: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open marker db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Exists(_ context.Context, key Key) (bool, error) {
	if err := validate(key); err != nil {
		return false, fmt.Errorf("%w: %q", err, key)
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(encode(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Create(_ context.Context, key Key) error {
	if err := validate(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	k := encode(key)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(k, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

func (s *BadgerStore) List(_ context.Context) ([]Key, error) {
	var keys []Key
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyspace})
		defer it.Close()
		for it.Seek(keyspace); it.ValidForPrefix(keyspace); it.Next() {
			raw := it.Item().KeyCopy(nil)
			keys = append(keys, Key(raw[len(keyspace):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func encode(key Key) []byte {
	out := make([]byte, 0, len(keyspace)+len(key))
	out = append(out, keyspace...)
	return append(out, key...)
}

// badgerLogger routes badger output to slog, dropping info and debug chatter.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error("badger: " + fmt.Sprintf(f, v...))
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn("badger: " + fmt.Sprintf(f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}

var _ Store = (*BadgerStore)(nil)
