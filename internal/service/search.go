package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/genre"
	"github.com/inkwellapp/inkwell-server/internal/search"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// SearchService provides search functionality across the catalog.
// It bridges the search index with the data store. Incremental indexing
// happens in the catalog service as part of each write; this service
// owns queries and full rebuilds.
type SearchService struct {
	index  *search.SearchIndex
	store  *store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store *store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// Search performs a federated search across books and authors.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	return s.index.Search(ctx, params)
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the entire search index from the store.
// This is a heavy operation - use sparingly.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	// Rebuild index (drops existing)
	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	// Collect authors first so book documents can denormalize the
	// author name without a lookup per book.
	authors := make(map[string]*domain.Author)
	for author, err := range s.store.Authors.List(ctx) {
		if err != nil {
			return fmt.Errorf("list authors: %w", err)
		}
		authors[author.ID] = author
	}

	// Index all books, tallying per-author book counts in the same pass.
	bookCounts := make(map[string]int, len(authors))
	bookDocs := []*search.SearchDocument{}
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}

		var authorName string
		if author, ok := authors[book.AuthorID]; ok {
			authorName = author.Name
		} else {
			s.logger.Warn("book references unknown author", "book_id", book.ID, "author_id", book.AuthorID)
		}
		bookCounts[book.AuthorID]++

		bookDocs = append(bookDocs, search.BookToSearchDocument(book, authorName, genre.SlugSet(book.Genres)))
	}

	if len(bookDocs) > 0 {
		if err := s.index.IndexDocuments(bookDocs); err != nil {
			return fmt.Errorf("index books: %w", err)
		}
	}
	s.logger.Info("indexed books", "count", len(bookDocs))

	// Index all authors
	authorDocs := make([]*search.SearchDocument, 0, len(authors))
	for _, author := range authors {
		authorDocs = append(authorDocs, search.AuthorToSearchDocument(author, bookCounts[author.ID]))
	}

	if len(authorDocs) > 0 {
		if err := s.index.IndexDocuments(authorDocs); err != nil {
			return fmt.Errorf("index authors: %w", err)
		}
	}
	s.logger.Info("indexed authors", "count", len(authorDocs))

	total, _ := s.index.DocumentCount()
	s.logger.Info("full reindex complete", "total_documents", total)

	return nil
}
