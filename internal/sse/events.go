// Package sse mirrors catalog events over Server-Sent Events for
// clients that cannot hold a GraphQL subscription open.
package sse

import (
	"time"

	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventBookAdded fires when a book is added to the catalog.
	EventBookAdded EventType = "book.added"
	// EventAuthorUpdated fires when an author record changes.
	EventAuthorUpdated EventType = "author.updated"
	// EventHeartbeat is a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one event on the wire. The Data field carries the payload as
// a JSON object so clients can render it without a follow-up query.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// BookEventData is the payload for book events.
type BookEventData struct {
	Book *domain.Book `json:"book"`
}

// AuthorEventData is the payload for author events.
type AuthorEventData struct {
	Author *domain.Author `json:"author"`
}

// HeartbeatEventData is the payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewBookAddedEvent creates a book added event.
func NewBookAddedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookAdded,
		Timestamp: time.Now(),
		Data:      BookEventData{Book: book},
	}
}

// NewAuthorUpdatedEvent creates an author updated event.
func NewAuthorUpdatedEvent(author *domain.Author) Event {
	return Event{
		Type:      EventAuthorUpdated,
		Timestamp: time.Now(),
		Data:      AuthorEventData{Author: author},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      HeartbeatEventData{ServerTime: time.Now()},
	}
}

// FromBusEvent converts a bus event into its wire form. Returns false
// for topics or payload shapes the mirror does not carry.
func FromBusEvent(event bus.Event) (Event, bool) {
	switch event.Topic {
	case domain.TopicBookAdded:
		if book, ok := event.Payload.(*domain.Book); ok {
			return NewBookAddedEvent(book), true
		}
	case domain.TopicAuthorUpdated:
		if author, ok := event.Payload.(*domain.Author); ok {
			return NewAuthorUpdatedEvent(author), true
		}
	}
	return Event{}, false
}
