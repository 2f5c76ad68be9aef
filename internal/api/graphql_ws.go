package api

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/graph"
)

// graphql-transport-ws message types.
const (
	gqlMsgConnectionInit = "connection_init"
	gqlMsgConnectionAck  = "connection_ack"
	gqlMsgPing           = "ping"
	gqlMsgPong           = "pong"
	gqlMsgSubscribe      = "subscribe"
	gqlMsgNext           = "next"
	gqlMsgError          = "error"
	gqlMsgComplete       = "complete"
)

// Close codes defined by the graphql-transport-ws protocol.
const (
	closeInvalidMessage   = 4400
	closeUnauthorized     = 4401
	closeForbidden        = 4403
	closeInitTimeout      = 4408
	closeSubscriberExists = 4409
	closeTooManyInit      = 4429
)

const (
	// connInitTimeout bounds how long a client may sit on an open socket
	// without sending connection_init.
	connInitTimeout = 10 * time.Second

	// wsWriteWait bounds individual frame writes.
	wsWriteWait = 10 * time.Second

	// wsPongWait is how long the read side waits between proofs of life.
	wsPongWait = 60 * time.Second

	// wsPingPeriod paces keepalive pings; it must be shorter than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsMaxMessageSize caps inbound frames. GraphQL documents are small;
	// anything larger is a misbehaving client.
	wsMaxMessageSize = 1 << 20
)

// wsMessage is the graphql-transport-ws frame shape.
type wsMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// wsSubscribePayload carries the operation of a subscribe frame.
type wsSubscribePayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// gqlUpgrader configures the WebSocket upgrader for the GraphQL transport.
var gqlUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"graphql-transport-ws"},
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by the CORS middleware
		return true
	},
}

// gqlSocket is one graphql-transport-ws connection. A single goroutine
// reads frames; each running operation writes from its own goroutine,
// serialized on the write mutex.
type gqlSocket struct {
	server *Server
	conn   *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu    sync.Mutex
	acked bool
	actor *domain.User
	subs  map[string]context.CancelFunc
}

// handleGraphQLWS upgrades the connection and speaks the
// graphql-transport-ws subprotocol over it. Identity comes from the
// upgrade request's Authorization header when present, or from the
// connection_init payload for clients that cannot set headers.
func (s *Server) handleGraphQLWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gqlUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sock := &gqlSocket{
		server: s,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		actor:  graph.ActorFrom(r.Context()),
		subs:   make(map[string]context.CancelFunc),
	}

	sock.run()
}

// run is the connection's read loop. It returns when the peer goes away
// or a protocol violation forces a close.
func (c *gqlSocket) run() {
	defer func() {
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// The client must initialise the connection promptly or be dropped.
	initTimer := time.AfterFunc(connInitTimeout, func() {
		c.closeWithCode(closeInitTimeout, "connection initialisation timeout")
	})
	defer initTimer.Stop()

	go c.keepalive()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.closeWithCode(closeInvalidMessage, "invalid JSON message")
			return
		}

		switch msg.Type {
		case gqlMsgConnectionInit:
			initTimer.Stop()
			if !c.handleInit(msg) {
				return
			}
		case gqlMsgPing:
			c.send(wsMessage{Type: gqlMsgPong})
		case gqlMsgPong:
			// Keepalive reply, nothing to do.
		case gqlMsgSubscribe:
			if !c.handleSubscribe(msg) {
				return
			}
		case gqlMsgComplete:
			c.completeOperation(msg.ID)
		default:
			c.closeWithCode(closeInvalidMessage, fmt.Sprintf("unknown message type %q", msg.Type))
			return
		}
	}
}

// handleInit acknowledges the connection, resolving an actor from the
// init payload when one is supplied. Returns false when the connection
// must close.
func (c *gqlSocket) handleInit(msg wsMessage) bool {
	c.mu.Lock()
	if c.acked {
		c.mu.Unlock()
		c.closeWithCode(closeTooManyInit, "too many initialisation requests")
		return false
	}
	c.acked = true
	c.mu.Unlock()

	if token, ok := initToken(msg.Payload); ok {
		user, _, err := c.server.services.Auth.VerifyToken(c.ctx, token)
		if err != nil {
			c.closeWithCode(closeForbidden, "invalid token")
			return false
		}
		if user != nil {
			c.mu.Lock()
			c.actor = user
			c.mu.Unlock()
		}
	}

	c.send(wsMessage{Type: gqlMsgConnectionAck})
	return true
}

// initToken pulls a bearer token out of connection_init params. Browser
// WebSocket clients cannot set headers on the upgrade request, so the
// Authorization value travels in the payload instead.
func initToken(payload any) (string, bool) {
	params, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}

	for _, key := range []string{"Authorization", "authorization"} {
		if value, ok := params[key].(string); ok {
			if token, ok := bearerToken(value); ok {
				return token, true
			}
		}
	}
	return "", false
}

// handleSubscribe starts one operation. Returns false when the
// connection must close.
func (c *gqlSocket) handleSubscribe(msg wsMessage) bool {
	c.mu.Lock()
	acked := c.acked
	c.mu.Unlock()
	if !acked {
		c.closeWithCode(closeUnauthorized, "unauthorized")
		return false
	}

	if msg.ID == "" {
		c.closeWithCode(closeInvalidMessage, "subscribe requires an id")
		return false
	}

	// Round-trip the payload into its typed shape.
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.closeWithCode(closeInvalidMessage, "invalid payload")
		return false
	}
	var payload wsSubscribePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil || payload.Query == "" {
		c.closeWithCode(closeInvalidMessage, "invalid subscribe payload")
		return false
	}

	c.mu.Lock()
	if _, exists := c.subs[msg.ID]; exists {
		c.mu.Unlock()
		c.closeWithCode(closeSubscriberExists, fmt.Sprintf("subscriber for %s already exists", msg.ID))
		return false
	}
	opCtx, cancel := context.WithCancel(c.ctx)
	c.subs[msg.ID] = cancel
	actor := c.actor
	c.mu.Unlock()

	if actor != nil {
		opCtx = graph.WithActor(opCtx, actor)
	}

	go c.runOperation(opCtx, msg.ID, payload)
	return true
}

// runOperation executes one operation and streams its results. Queries
// and mutations produce a single next frame; subscriptions stream until
// the source closes or the client completes.
func (c *gqlSocket) runOperation(ctx context.Context, id string, payload wsSubscribePayload) {
	defer c.forgetOperation(id)

	params := graphql.Params{
		Schema:         c.server.schema,
		RequestString:  payload.Query,
		OperationName:  payload.OperationName,
		VariableValues: payload.Variables,
		Context:        ctx,
	}

	if !isSubscription(payload.Query, payload.OperationName) {
		result := graphql.Do(params)
		c.send(wsMessage{ID: id, Type: gqlMsgNext, Payload: result})
		c.send(wsMessage{ID: id, Type: gqlMsgComplete})
		return
	}

	results := graphql.Subscribe(params)
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				c.send(wsMessage{ID: id, Type: gqlMsgComplete})
				return
			}
			if result.Data == nil && len(result.Errors) > 0 {
				// The operation never became a stream; report and end it.
				c.send(wsMessage{ID: id, Type: gqlMsgError, Payload: result.Errors})
				return
			}
			c.send(wsMessage{ID: id, Type: gqlMsgNext, Payload: result})
		}
	}
}

// completeOperation handles a client complete frame: the operation is
// cancelled but the connection stays up.
func (c *gqlSocket) completeOperation(id string) {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// forgetOperation cancels and drops a finished operation id.
func (c *gqlSocket) forgetOperation(id string) {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// send marshals and writes one frame.
func (c *gqlSocket) send(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Error("failed to marshal websocket message", "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.server.logger.Debug("websocket write failed", "error", err)
	}
}

// closeWithCode sends a protocol close frame and tears the connection
// down. Safe to call from the init timer goroutine: WriteControl may run
// concurrently with other writes.
func (c *gqlSocket) closeWithCode(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(wsWriteWait))
	c.cancel()
	c.conn.Close()
}

// keepalive pings the peer so half-open connections are detected. The
// pong handler refreshes the read deadline.
func (c *gqlSocket) keepalive() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// isSubscription reports whether the request's selected operation is a
// subscription. Unparseable documents fall through to the query
// executor, which reports the syntax error in its result.
func isSubscription(query, operationName string) bool {
	src := source.NewSource(&source.Source{Body: []byte(query), Name: "GraphQL request"})
	doc, err := parser.Parse(parser.ParseParams{Source: src})
	if err != nil {
		return false
	}

	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.GetName() == nil || op.GetName().Value != operationName) {
			continue
		}
		return op.Operation == ast.OperationTypeSubscription
	}
	return false
}
