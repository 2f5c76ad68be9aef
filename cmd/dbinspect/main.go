// Package main provides a read-only inspection tool for the catalog
// database.
//
// It opens the badger store directly and prints record and index counts
// per keyspace, plus a sample of the stored books. Useful when the
// server misbehaves and the question is what the store actually holds.
//
// Usage:
//
//	DB_PATH=~/inkwell/db go run ./cmd/dbinspect
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// sampleLimit bounds how many books are printed in full.
const sampleLimit = 5

type keyspaceCount struct {
	records int
	indexes int
}

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/inkwell/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Catalog Inspection ===")
	fmt.Println()

	var books []domain.Book
	counts := map[string]*keyspaceCount{}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())

			space, isIndex := classify(key)
			c := counts[space]
			if c == nil {
				c = &keyspaceCount{}
				counts[space] = c
			}
			if isIndex {
				c.indexes++
				continue
			}
			c.records++

			if space == "book" && len(books) < sampleLimit {
				err := item.Value(func(val []byte) error {
					var book domain.Book
					if err := json.Unmarshal(val, &book); err != nil {
						return err
					}
					books = append(books, book)
					return nil
				})
				if err != nil {
					log.Printf("Error reading book %s: %v", key, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	for _, book := range books {
		fmt.Printf("Book: %s\n", book.Title)
		fmt.Printf("  ID: %s\n", book.ID)
		fmt.Printf("  Author ID: %s\n", book.AuthorID)
		fmt.Printf("  Published: %d\n", book.Published)
		if len(book.Genres) > 0 {
			fmt.Printf("  Genres: %s\n", strings.Join(book.Genres, ", "))
		}
		fmt.Println()
	}

	fmt.Println("=== Summary ===")
	for _, space := range []string{"book", "author", "user", "server"} {
		c := counts[space]
		if c == nil {
			continue
		}
		fmt.Printf("%-8s %d records, %d index keys\n", space, c.records, c.indexes)
	}
}

// classify splits a store key into its keyspace and whether it is an
// index entry. Record keys are "<space>:<id>"; index entries are
// "<space>:idx:..." (unique) or "<space>:ref:..." (reference).
func classify(key string) (space string, isIndex bool) {
	space, rest, ok := strings.Cut(key, ":")
	if !ok {
		return key, false
	}
	return space, strings.HasPrefix(rest, "idx:") || strings.HasPrefix(rest, "ref:")
}
