package journal

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// badgerJournal is the BadgerDB implementation of the Repository.
type badgerJournal struct {
	db *badger.DB
}

// NewBadgerJournal opens (or creates) the journal database at dbPath.
func NewBadgerJournal(dbPath string) (Repository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging would interleave with the app's logs; errors
	// are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerJournal{db: db}, nil
}

// key layout: order/<symbol>/<zero-padded unix nanos>
// The zero padding keeps lexicographic order equal to time order so a
// reverse prefix scan yields newest-first.
func entryKey(entry Entry) []byte {
	return []byte(fmt.Sprintf("order/%s/%020d", entry.Symbol, entry.Time.UnixNano()))
}

func symbolPrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("order/%s/", symbol))
}

// Append records one executed order.
func (j *badgerJournal) Append(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry), data)
	})
}

// List returns up to limit entries for a symbol, newest first.
func (j *badgerJournal) List(symbol string, limit int) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := symbolPrefix(symbol)
		// In reverse mode the seek key must sort after every key of the
		// prefix range, hence the 0xff sentinel.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
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

// Close gracefully closes the connection to the database.
func (j *badgerJournal) Close() error {
	return j.db.Close()
}
