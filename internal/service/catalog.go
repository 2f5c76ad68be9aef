// Package service provides the business logic layer for the Inkwell catalog.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/genre"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/search"
	"github.com/inkwellapp/inkwell-server/internal/store"
	"github.com/inkwellapp/inkwell-server/internal/validation"
)

// CatalogService orchestrates book and author operations.
//
// Writes publish to the event bus and update the search index only after
// the store write has committed, so subscribers never see a book that was
// not persisted. Search and audit failures are logged but never fail the
// operation that triggered them.
type CatalogService struct {
	store     *store.Store
	bus       *bus.Bus
	search    *search.SearchIndex
	audit     *audit.Trail
	logger    *slog.Logger
	validator *validation.Validator
}

// NewCatalogService creates a new catalog service. The search index and
// audit trail may be nil, which disables write-through for that concern.
func NewCatalogService(store *store.Store, eventBus *bus.Bus, searchIndex *search.SearchIndex, auditTrail *audit.Trail, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     store,
		bus:       eventBus,
		search:    searchIndex,
		audit:     auditTrail,
		logger:    logger,
		validator: validation.New(),
	}
}

// BookCount returns the number of books in the catalog.
func (s *CatalogService) BookCount(ctx context.Context) (int, error) {
	return s.store.Books.Count(ctx)
}

// AuthorCount returns the number of authors in the catalog.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	return s.store.Authors.Count(ctx)
}

// GetBook returns a single book by ID.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.Books.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("book %s not found", bookID)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// GetAuthor returns a single author by ID.
func (s *CatalogService) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	author, err := s.store.Authors.Get(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("author %s not found", authorID)
		}
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

// GetAuthorByName returns the author with the given exact name.
func (s *CatalogService) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.Authors.GetByIndex(ctx, "name", name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("author %q not found", name)
		}
		return nil, fmt.Errorf("get author by name: %w", err)
	}
	return author, nil
}

// AuthorBookCount returns the number of books referencing the author.
// Computed from the live book index on every call so it can never go stale.
func (s *CatalogService) AuthorBookCount(ctx context.Context, authorID string) (int, error) {
	return s.store.Books.CountByIndex(ctx, "author", authorID)
}

// BookFilter narrows AllBooks results. Zero values mean no filtering.
type BookFilter struct {
	// Author filters to books whose author has this exact name.
	Author string
	// Genre filters to books carrying this genre label. Matching is
	// slug-based, so case and diacritics do not matter.
	Genre string
}

// AllBooks returns books matching the filter. An unknown author name or a
// genre no book carries yields an empty result, not an error.
func (s *CatalogService) AllBooks(ctx context.Context, filter BookFilter) ([]*domain.Book, error) {
	if filter.Author != "" {
		return s.booksByAuthor(ctx, filter)
	}
	if filter.Genre != "" {
		return s.collectBooks(s.store.Books.ListByIndex(ctx, "genre", filter.Genre))
	}
	return s.collectBooks(s.store.Books.List(ctx))
}

// booksByAuthor lists by the author ref index, then applies the genre
// filter in memory when both filters are set.
func (s *CatalogService) booksByAuthor(ctx context.Context, filter BookFilter) ([]*domain.Book, error) {
	author, err := s.store.Authors.GetByIndex(ctx, "name", filter.Author)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []*domain.Book{}, nil
		}
		return nil, fmt.Errorf("lookup author: %w", err)
	}

	books, err := s.collectBooks(s.store.Books.ListByIndex(ctx, "author", author.ID))
	if err != nil {
		return nil, err
	}

	if filter.Genre == "" {
		return books, nil
	}

	wantSlug := genre.Slugify(filter.Genre)
	filtered := make([]*domain.Book, 0, len(books))
	for _, book := range books {
		for _, slug := range genre.SlugSet(book.Genres) {
			if slug == wantSlug {
				filtered = append(filtered, book)
				break
			}
		}
	}
	return filtered, nil
}

// collectBooks drains a book sequence into a slice.
func (s *CatalogService) collectBooks(seq iter.Seq2[*domain.Book, error]) ([]*domain.Book, error) {
	books := []*domain.Book{}
	for book, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		books = append(books, book)
	}
	return books, nil
}

// AllAuthors returns every author in the catalog.
func (s *CatalogService) AllAuthors(ctx context.Context) ([]*domain.Author, error) {
	authors := []*domain.Author{}
	for author, err := range s.store.Authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, author)
	}
	return authors, nil
}

// AllGenres returns every distinct genre label across the catalog,
// canonicalized and sorted. Labels that slug identically count as one
// genre; the canonical label wins.
func (s *CatalogService) AllGenres(ctx context.Context) ([]string, error) {
	bySlug := map[string]string{}
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		for _, label := range book.Genres {
			slug := genre.Slugify(label)
			if slug == "" {
				continue
			}
			if _, ok := bySlug[slug]; !ok {
				bySlug[slug] = genre.Canonicalize(label)
			}
		}
	}

	genres := make([]string, 0, len(bySlug))
	for _, label := range bySlug {
		genres = append(genres, label)
	}
	sort.Strings(genres)
	return genres, nil
}

// Recommended returns books in the user's favorite genre. A user without
// a favorite genre gets an empty list.
func (s *CatalogService) Recommended(ctx context.Context, actor *domain.User) ([]*domain.Book, error) {
	if actor == nil {
		return nil, apperrors.Unauthenticated("not authenticated")
	}
	if !actor.HasFavoriteGenre() {
		return []*domain.Book{}, nil
	}
	return s.AllBooks(ctx, BookFilter{Genre: actor.FavoriteGenre})
}

// AddBookRequest contains fields for adding a book to the catalog.
type AddBookRequest struct {
	Title string `json:"title" validate:"required,min=4"`
	// Author is the author's name. An unknown name creates the author.
	Author    string   `json:"author" validate:"required,min=5"`
	Published int      `json:"published"`
	Genres    []string `json:"genres"`
}

// AddBook adds a book to the catalog, creating its author if no author
// with that name exists yet.
//
// Author find-or-create and book insert are two separate store writes
// with no transaction across them. A concurrent identical request can
// make the author create lose to a racing one; the unique name index
// surfaces that as a conflict and the lookup is retried once. A crash
// between the two writes leaves an author with no books, which is valid
// catalog state.
func (s *CatalogService) AddBook(ctx context.Context, actor *domain.User, req AddBookRequest) (*domain.Book, error) {
	if actor == nil {
		return nil, apperrors.Unauthenticated("not authenticated")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Pre-check the title so the common duplicate case fails before any
	// write. Not atomic with the insert below; the unique title index is
	// the real enforcement.
	if _, err := s.store.Books.GetByIndex(ctx, "title", req.Title); err == nil {
		return nil, apperrors.InvalidInputf("a book with title %q already exists", req.Title)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check title: %w", err)
	}

	author, err := s.findOrCreateAuthor(ctx, req.Author)
	if err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, err
	}

	book := &domain.Book{
		Record:    domain.Record{ID: bookID},
		Title:     req.Title,
		Published: req.Published,
		AuthorID:  author.ID,
		Genres:    req.Genres,
	}
	book.InitTimestamps()

	if err := s.store.Books.Create(ctx, bookID, book); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// A concurrent request won the title race after the pre-check.
			return nil, apperrors.InvalidInputf("a book with title %q already exists", req.Title).WithCause(err)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.bus.Publish(domain.TopicBookAdded, book)

	s.indexBook(book, author)
	s.indexAuthor(ctx, author)
	s.recordAudit(ctx, actor, audit.ActionBookAdd, "book", book.ID,
		fmt.Sprintf("added %q by %s", book.Title, author.Name))

	s.logger.Info("book added",
		"id", book.ID,
		"title", book.Title,
		"author", author.Name,
		"by", actor.Username,
	)
	return book, nil
}

// findOrCreateAuthor returns the author with the given name, creating the
// record if none exists. Lookup and create are not atomic; when the
// create loses a race to a concurrent identical request, the unique name
// index reports a conflict and the winner is fetched instead.
func (s *CatalogService) findOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.Authors.GetByIndex(ctx, "name", name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup author: %w", err)
	}

	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, err
	}

	author = &domain.Author{
		Record: domain.Record{ID: authorID},
		Name:   name,
	}
	author.InitTimestamps()

	if err := s.store.Authors.Create(ctx, authorID, author); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return s.refetchAuthor(ctx, name)
		}
		return nil, fmt.Errorf("create author: %w", err)
	}

	s.logger.Info("author created", "id", author.ID, "name", author.Name)
	return author, nil
}

// refetchAuthor resolves the winner of a lost author-create race.
func (s *CatalogService) refetchAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.Authors.GetByIndex(ctx, "name", name)
	if err != nil {
		return nil, fmt.Errorf("refetch author after conflict: %w", err)
	}
	return author, nil
}

// EditAuthorRequest contains fields for updating an author's birth year.
type EditAuthorRequest struct {
	// Name selects the author to edit. Names are not editable.
	Name string `json:"name"`
	// Born is the new birth year. Nil clears it.
	Born *int `json:"setBornTo"`
}

// EditAuthor sets or clears an author's birth year.
func (s *CatalogService) EditAuthor(ctx context.Context, actor *domain.User, req EditAuthorRequest) (*domain.Author, error) {
	if actor == nil {
		return nil, apperrors.Unauthenticated("not authenticated")
	}

	author, err := s.store.Authors.GetByIndex(ctx, "name", req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("author %q not found", req.Name)
		}
		return nil, fmt.Errorf("lookup author: %w", err)
	}

	author.SetBorn(req.Born)

	if err := s.store.Authors.Update(ctx, author.ID, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}

	s.bus.Publish(domain.TopicAuthorUpdated, author)

	s.indexAuthor(ctx, author)
	s.recordAudit(ctx, actor, audit.ActionAuthorEdit, "author", author.ID,
		fmt.Sprintf("set birth year for %q", author.Name))

	s.logger.Info("author updated",
		"id", author.ID,
		"name", author.Name,
		"by", actor.Username,
	)
	return author, nil
}

// indexBook write-throughs a book into the search index.
func (s *CatalogService) indexBook(book *domain.Book, author *domain.Author) {
	if s.search == nil {
		return
	}
	doc := search.BookToSearchDocument(book, author.Name, genre.SlugSet(book.Genres))
	if err := s.search.IndexDocument(doc); err != nil {
		s.logger.Warn("failed to index book", "id", book.ID, "error", err)
	}
}

// indexAuthor write-throughs an author into the search index with a
// fresh book count.
func (s *CatalogService) indexAuthor(ctx context.Context, author *domain.Author) {
	if s.search == nil {
		return
	}
	count, err := s.store.Books.CountByIndex(ctx, "author", author.ID)
	if err != nil {
		s.logger.Warn("failed to count books for author", "id", author.ID, "error", err)
		count = 0
	}
	doc := search.AuthorToSearchDocument(author, count)
	if err := s.search.IndexDocument(doc); err != nil {
		s.logger.Warn("failed to index author", "id", author.ID, "error", err)
	}
}

// recordAudit appends an audit entry for a catalog write.
func (s *CatalogService) recordAudit(ctx context.Context, actor *domain.User, action, entityType, entityID, summary string) {
	if s.audit == nil {
		return
	}
	actorName := ""
	if actor != nil {
		actorName = actor.Username
	}
	err := s.audit.Record(ctx, audit.Entry{
		Actor:      actorName,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Summary:    summary,
	})
	if err != nil {
		s.logger.Warn("failed to record audit entry", "action", action, "error", err)
	}
}
