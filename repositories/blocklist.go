package repositories

import (
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const blocklistPrefix = "blocklist:"

// BlocklistRepository stores the contact-bait terms the masker loads at
// startup. Terms are keys only; the value carries nothing.
type BlocklistRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBlocklistRepository(db *badger.DB, log *slog.Logger) BlocklistRepository {
	return BlocklistRepository{db: db, log: log}
}

func (b BlocklistRepository) StoreTerm(term string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blocklistPrefix+term), nil)
	})
}

func (b BlocklistRepository) DeleteTerm(term string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(blocklistPrefix + term))
	})
}

func (b BlocklistRepository) LoadTerms() ([]string, error) {
	var terms []string
	err := b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(blocklistPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			terms = append(terms, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return terms, err
}
