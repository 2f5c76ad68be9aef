package sse

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/id"
)

// Client represents a connected SSE client.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
}

// Manager fans catalog events out to connected SSE clients. It attaches
// to the event bus in Run and converts bus events to their wire form;
// the write side of the application never talks to it directly.
type Manager struct {
	eventBus *bus.Bus
	clients  map[string]*Client
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewManager creates an SSE manager over the given bus.
func NewManager(eventBus *bus.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		eventBus: eventBus,
		clients:  make(map[string]*Client),
		logger:   logger,
	}
}

// Run subscribes to the catalog topics and broadcasts until the context
// is cancelled. Call it once at server startup in a goroutine.
func (m *Manager) Run(ctx context.Context) error {
	books, err := m.eventBus.Subscribe(domain.TopicBookAdded)
	if err != nil {
		return err
	}
	defer m.eventBus.Unsubscribe(books)

	authors, err := m.eventBus.Subscribe(domain.TopicAuthorUpdated)
	if err != nil {
		return err
	}
	defer m.eventBus.Unsubscribe(authors)

	m.logger.Info("SSE manager started")
	defer m.closeAllClients()

	for {
		select {
		case event, ok := <-books.C:
			if !ok {
				return nil
			}
			m.relay(event)
		case event, ok := <-authors.C:
			if !ok {
				return nil
			}
			m.relay(event)
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			return nil
		}
	}
}

// relay converts one bus event and broadcasts it.
func (m *Manager) relay(event bus.Event) {
	converted, ok := FromBusEvent(event)
	if !ok {
		m.logger.Warn("unrelayable bus event",
			slog.String("topic", event.Topic))
		return
	}
	m.broadcast(converted)
}

// broadcast delivers an event to every connected client. Sends are
// non-blocking: a slow client drops the event rather than stalling the
// relay loop.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	m.logger.Debug("event broadcast",
		slog.String("event_type", string(event.Type)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

// Connect registers a new SSE client.
func (m *Manager) Connect() (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		EventChan:   make(chan Event, 100),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	totalClients := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.Int("total_clients", totalClients))
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	totalClients := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", totalClients))
}

// Clients returns an iterator over all connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, client := range m.clients {
			if !yield(client) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// closeAllClients closes all client connections (used during shutdown).
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	m.clients = make(map[string]*Client)

	m.logger.Info("all SSE clients disconnected")
}
