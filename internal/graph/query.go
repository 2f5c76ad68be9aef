package graph

import (
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/search"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// defaultSearchLimit caps searchBooks results when the client does not
// ask for a specific page size.
const defaultSearchLimit = 20

func (r *Resolver) queryType() *graphql.Object {
	fields := graphql.Fields{
		"bookCount": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.Int),
			Description: "Total number of books in the catalog.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.catalog.BookCount(p.Context)
			},
		},
		"authorCount": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.Int),
			Description: "Total number of authors in the catalog.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.catalog.AuthorCount(p.Context)
			},
		},
		"allBooks": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.book))),
			Description: "Books in the catalog, optionally narrowed by author and genre.",
			Args: graphql.FieldConfigArgument{
				"author": &graphql.ArgumentConfig{
					Type:        graphql.String,
					Description: "Only books by this author, matched by exact name.",
				},
				"genre": &graphql.ArgumentConfig{
					Type:        graphql.String,
					Description: "Only books carrying this genre, matched case-insensitively.",
				},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				var filter service.BookFilter
				filter.Author, _ = p.Args["author"].(string)
				filter.Genre, _ = p.Args["genre"].(string)
				return r.catalog.AllBooks(p.Context, filter)
			},
		},
		"allAuthors": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.author))),
			Description: "Every author in the catalog.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.catalog.AllAuthors(p.Context)
			},
		},
		"allGenres": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
			Description: "Every distinct genre label in the catalog, sorted alphabetically.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.catalog.AllGenres(p.Context)
			},
		},
		"me": &graphql.Field{
			Type:        r.user,
			Description: "The authenticated user, or null for anonymous requests.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				actor := ActorFrom(p.Context)
				if actor == nil {
					return nil, nil
				}
				return actor, nil
			},
		},
		"recommended": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.book))),
			Description: "Books matching the authenticated user's favorite genre.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.catalog.Recommended(p.Context, ActorFrom(p.Context))
			},
		},
	}

	// Search is optional. When no search service is wired the field is
	// absent from the schema, so clients get a validation error rather
	// than a runtime one.
	if r.search != nil {
		fields["searchBooks"] = &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.book))),
			Description: "Full-text search over titles, author names, and genres.",
			Args: graphql.FieldConfigArgument{
				"query": &graphql.ArgumentConfig{
					Type: graphql.NewNonNull(graphql.String),
				},
				"limit": &graphql.ArgumentConfig{
					Type:         graphql.Int,
					DefaultValue: defaultSearchLimit,
				},
			},
			Resolve: r.resolveSearchBooks,
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})
}

func (r *Resolver) resolveSearchBooks(p graphql.ResolveParams) (interface{}, error) {
	params := search.DefaultSearchParams()
	params.Query, _ = p.Args["query"].(string)
	params.Types = []string{string(search.DocTypeBook)}
	if limit, ok := p.Args["limit"].(int); ok && limit > 0 {
		params.Limit = limit
	}

	result, err := r.search.Search(p.Context, params)
	if err != nil {
		return nil, err
	}

	books := make([]*domain.Book, 0, len(result.Hits))
	for _, hit := range result.Hits {
		book, err := r.catalog.GetBook(p.Context, hit.ID)
		if err != nil {
			// The index can briefly trail the store after a delete or
			// rebuild; skip hits that no longer resolve.
			r.logger.Debug("search hit no longer in store", slog.String("id", hit.ID))
			continue
		}
		books = append(books, book)
	}
	return books, nil
}
