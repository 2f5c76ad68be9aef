package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

func (r *Resolver) subscriptionType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"bookAdded": &graphql.Field{
				Type:        graphql.NewNonNull(r.book),
				Description: "Fires once for every book added after the subscription starts.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					// Each event executes the selection set with the
					// published book as the root value.
					return p.Source, nil
				},
				Subscribe: r.subscribeBookAdded,
			},
		},
	})
}

// subscribeBookAdded bridges a bus subscription into the channel shape
// the executor consumes. The bridge goroutine exits when the request
// context is cancelled or the bus shuts down, detaching the subscriber
// either way.
func (r *Resolver) subscribeBookAdded(p graphql.ResolveParams) (interface{}, error) {
	sub, err := r.bus.Subscribe(domain.TopicBookAdded)
	if err != nil {
		return nil, err
	}

	out := make(chan interface{})
	go func() {
		defer close(out)
		defer r.bus.Unsubscribe(sub)
		for {
			select {
			case <-p.Context.Done():
				return
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- event.Payload:
				case <-p.Context.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
