package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/inkwellapp/inkwell-server/internal/service"
)

func (r *Resolver) mutationType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addBook": &graphql.Field{
				Type:        r.book,
				Description: "Adds a book, creating its author on first mention. Requires authentication.",
				Args: graphql.FieldConfigArgument{
					"title": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
					"author": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Author name. An unknown name creates the author.",
					},
					"published": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.Int),
					},
					"genres": &graphql.ArgumentConfig{
						Type: graphql.NewList(graphql.NewNonNull(graphql.String)),
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var req service.AddBookRequest
					req.Title, _ = p.Args["title"].(string)
					req.Author, _ = p.Args["author"].(string)
					req.Published, _ = p.Args["published"].(int)
					req.Genres = stringList(p.Args["genres"])
					return r.catalog.AddBook(p.Context, ActorFrom(p.Context), req)
				},
			},
			"editAuthor": &graphql.Field{
				Type:        r.author,
				Description: "Sets or clears an author's birth year. Requires authentication.",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
					"setBornTo": &graphql.ArgumentConfig{
						Type:        graphql.Int,
						Description: "New birth year. Omitting it clears the stored year.",
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var req service.EditAuthorRequest
					req.Name, _ = p.Args["name"].(string)
					if born, ok := p.Args["setBornTo"].(int); ok {
						req.Born = &born
					}
					return r.catalog.EditAuthor(p.Context, ActorFrom(p.Context), req)
				},
			},
			"createUser": &graphql.Field{
				Type:        r.user,
				Description: "Registers a new user account.",
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
					"favoriteGenre": &graphql.ArgumentConfig{
						Type: graphql.String,
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var req service.CreateUserRequest
					req.Username, _ = p.Args["username"].(string)
					req.FavoriteGenre, _ = p.Args["favoriteGenre"].(string)
					return r.users.CreateUser(p.Context, req)
				},
			},
			"login": &graphql.Field{
				Type:        r.token,
				Description: "Exchanges credentials for a signed bearer token.",
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
					"password": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.String),
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var req service.LoginRequest
					req.Username, _ = p.Args["username"].(string)
					req.Password, _ = p.Args["password"].(string)
					return r.auth.Login(p.Context, req)
				},
			},
		},
	})
}

// stringList unpacks a coerced list argument into its string elements.
func stringList(arg interface{}) []string {
	raw, ok := arg.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
