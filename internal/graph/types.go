package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// buildTypes constructs the object types once per schema. Plain fields
// resolve through the default struct resolver; explicit resolvers cover
// fields that live on the embedded record, cross entity boundaries, or
// are derived at read time.
func (r *Resolver) buildTypes() {
	r.author = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Author",
		Description: "A writer with books in the catalog.",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if author, ok := p.Source.(*domain.Author); ok {
						return author.ID, nil
					}
					return nil, nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"born": &graphql.Field{
				Type:        graphql.Int,
				Description: "Birth year, or null when unknown.",
			},
			"bookCount": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Number of books by this author, computed from the catalog.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					author, ok := p.Source.(*domain.Author)
					if !ok {
						return nil, nil
					}
					return r.catalog.AuthorBookCount(p.Context, author.ID)
				},
			},
		},
	})

	r.book = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Book",
		Description: "A published work in the catalog.",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if book, ok := p.Source.(*domain.Book); ok {
						return book.ID, nil
					}
					return nil, nil
				},
			},
			"title": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"published": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Year of publication.",
			},
			"author": &graphql.Field{
				Type: graphql.NewNonNull(r.author),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					book, ok := p.Source.(*domain.Book)
					if !ok {
						return nil, nil
					}
					return r.catalog.GetAuthor(p.Context, book.AuthorID)
				},
			},
			"genres": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					book, ok := p.Source.(*domain.Book)
					if !ok {
						return nil, nil
					}
					if book.Genres == nil {
						return []string{}, nil
					}
					return book.Genres, nil
				},
			},
		},
	})

	r.user = graphql.NewObject(graphql.ObjectConfig{
		Name:        "User",
		Description: "A registered reader account.",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if user, ok := p.Source.(*domain.User); ok {
						return user.ID, nil
					}
					return nil, nil
				},
			},
			"username": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"favoriteGenre": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if user, ok := p.Source.(*domain.User); ok && user.HasFavoriteGenre() {
						return user.FavoriteGenre, nil
					}
					return nil, nil
				},
			},
			"avatarColor": &graphql.Field{
				Type:        graphql.String,
				Description: "Hex display color derived from the account ID.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if user, ok := p.Source.(*domain.User); ok && user.AvatarColor != "" {
						return user.AvatarColor, nil
					}
					return nil, nil
				},
			},
		},
	})

	r.token = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Token",
		Description: "A signed bearer token issued by login.",
		Fields: graphql.Fields{
			"value": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if result, ok := p.Source.(*service.LoginResult); ok {
						return result.Token, nil
					}
					return nil, nil
				},
			},
		},
	})
}
