package store

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/genre"
)

// Store wraps a Badger database instance.
//
// The store is deliberately passive: it enforces record and index
// integrity but publishes no events. Event fan-out happens in the
// service layer after a write returns, so a failed publish can never
// poison a committed write and a failed write can never emit a ghost
// event.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Authors *Entity[domain.Author]
	Books   *Entity[domain.Book]
	Users   *Entity[domain.User]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	// Initialize generic entities
	store.initAuthors()
	store.initBooks()
	store.initUsers()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Helper methods for database operations.

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
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

// initAuthors initializes the Authors entity on the store.
// Author names are globally unique by exact string, so the name index is
// conflict-checked with no lookup transform.
func (s *Store) initAuthors() {
	s.Authors = NewEntity[domain.Author](s, "author:").
		WithUniqueIndex("name", func(a *domain.Author) []string {
			return []string{a.Name}
		})
}

// initBooks initializes the Books entity on the store.
// Titles are globally unique by exact string. The author and genre
// reference indexes back "books by author" and "books by genre" lookups;
// genre values are slugged so lookups tolerate case and diacritics.
func (s *Store) initBooks() {
	s.Books = NewEntity[domain.Book](s, "book:").
		WithUniqueIndex("title", func(b *domain.Book) []string {
			return []string{b.Title}
		}).
		WithRefIndex("author", func(b *domain.Book) []string {
			return []string{b.AuthorID}
		}).
		WithRefIndexTransform("genre",
			func(b *domain.Book) []string {
				return genre.SlugSet(b.Genres)
			},
			genre.Slugify,
		)
}

// initUsers initializes the Users entity on the store.
// Uses case-insensitive username indexing via normalizeUsername.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithUniqueIndexTransform("username",
			func(u *domain.User) []string {
				return []string{normalizeUsername(u.Username)}
			},
			normalizeUsername, // Transform lookups to be case-insensitive
		)
}

// normalizeUsername lowercases and trims a username for index storage and
// lookup. Stored records keep the username as entered.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
