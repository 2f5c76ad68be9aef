// Package main provides a tool to seed the catalog with a starter set
// of books.
//
// Books are added through the catalog service rather than the store
// directly, so every seeded book passes validation, lands in the search
// index, and publishes the same events a live mutation would.
//
// Usage:
//
//	go run ./cmd/seed --data-path ~/inkwell
//	go run ./cmd/seed --data-path ~/inkwell --username librarian
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inkwellapp/inkwell-server/internal/bus"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/search"
	"github.com/inkwellapp/inkwell-server/internal/service"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

var (
	dataPath = flag.String("data-path", "", "Base path for persistent data (default: $HOME/inkwell)")
	username = flag.String("username", "seeder", "User recorded as the catalog writer")
)

var starterCatalog = []service.AddBookRequest{
	{Title: "Clean Code", Author: "Robert Martin", Published: 2008, Genres: []string{"refactoring"}},
	{Title: "Agile software development", Author: "Robert Martin", Published: 2002, Genres: []string{"agile", "patterns", "design"}},
	{Title: "Refactoring, edition 2", Author: "Martin Fowler", Published: 2018, Genres: []string{"refactoring"}},
	{Title: "Refactoring to patterns", Author: "Joshua Kerievsky", Published: 2008, Genres: []string{"refactoring", "patterns"}},
	{Title: "Practical Object-Oriented Design, An Agile Primer Using Ruby", Author: "Sandi Metz", Published: 2012, Genres: []string{"refactoring", "design"}},
	{Title: "Crime and punishment", Author: "Fyodor Dostoevsky", Published: 1866, Genres: []string{"classic", "crime"}},
	{Title: "Demons", Author: "Fyodor Dostoevsky", Published: 1872, Genres: []string{"classic", "revolution"}},
}

func main() {
	flag.Parse()

	base := *dataPath
	if base == "" {
		base = os.ExpandEnv("$HOME/inkwell")
	}

	// Services log plenty at info level; keep the tool's own output legible.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dbPath := filepath.Join(base, "db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	eventBus := bus.New(logger)
	defer eventBus.Close()

	index, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(base, "search"),
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	catalog := service.NewCatalogService(s, eventBus, index, nil, logger)
	users := service.NewUserService(s, nil, logger)

	ctx := context.Background()

	actor, err := users.GetUserByUsername(ctx, *username)
	if errors.Is(err, apperrors.ErrNotFound) {
		actor, err = users.CreateUser(ctx, service.CreateUserRequest{Username: *username})
	}
	if err != nil {
		log.Fatalf("Failed to ensure seed user %q: %v", *username, err)
	}

	var added, skipped int
	for _, req := range starterCatalog {
		book, err := catalog.AddBook(ctx, actor, req)
		switch {
		case err == nil:
			fmt.Printf("  added   %q by %s\n", book.Title, req.Author)
			added++
		case errors.Is(err, apperrors.ErrInvalidInput):
			// Re-running the tool against a seeded catalog hits the
			// duplicate-title check.
			fmt.Printf("  skipped %q (already in catalog)\n", req.Title)
			skipped++
		default:
			log.Fatalf("Failed to add %q: %v", req.Title, err)
		}
	}

	fmt.Printf("\nDone: %d added, %d skipped\n", added, skipped)
}
