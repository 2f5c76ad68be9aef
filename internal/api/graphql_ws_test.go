package api

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

type wsTestMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func wsURL(ts *testServer) string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/graphql/ws"
}

func dialWS(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, _, err := dialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msg wsTestMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readWS(t *testing.T, conn *websocket.Conn) wsTestMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsTestMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readClose drains data frames until the peer closes the connection and
// returns the close error.
func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr
	}
}

func initConnection(t *testing.T, conn *websocket.Conn, payload any) {
	t.Helper()
	sendWS(t, conn, wsTestMessage{Type: gqlMsgConnectionInit, Payload: payload})
	ack := readWS(t, conn)
	require.Equal(t, gqlMsgConnectionAck, ack.Type)
}

func payloadData(t *testing.T, msg wsTestMessage) map[string]any {
	t.Helper()
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok, "payload: %v", msg.Payload)
	data, ok := payload["data"].(map[string]any)
	require.True(t, ok, "payload data: %v", payload)
	return data
}

func TestGraphQLWS_Subscription(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	initConnection(t, conn, nil)

	sendWS(t, conn, wsTestMessage{ID: "1", Type: gqlMsgSubscribe, Payload: map[string]any{
		"query": `subscription { bookAdded { title author { name } } }`,
	}})

	// The event stream manager holds one bus subscription; the resolver
	// adds a second once the operation is running.
	require.Eventually(t, func() bool {
		return ts.bus.SubscriberCount(domain.TopicBookAdded) == 2
	}, time.Second, 10*time.Millisecond, "subscription resolver never attached to the bus")

	actor := ts.createUser(t, "publisher")
	_, err := ts.catalog.AddBook(context.Background(), actor, service.AddBookRequest{
		Title:     "Domain-Driven Design",
		Author:    "Eric Evans",
		Published: 2003,
		Genres:    []string{"design"},
	})
	require.NoError(t, err)

	msg := readWS(t, conn)
	require.Equal(t, gqlMsgNext, msg.Type)
	require.Equal(t, "1", msg.ID)

	book, ok := payloadData(t, msg)["bookAdded"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Domain-Driven Design", book["title"])
	author, ok := book["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Eric Evans", author["name"])

	// Completing the operation releases its bus subscription.
	sendWS(t, conn, wsTestMessage{ID: "1", Type: gqlMsgComplete})
	require.Eventually(t, func() bool {
		return ts.bus.SubscriberCount(domain.TopicBookAdded) == 1
	}, time.Second, 10*time.Millisecond, "subscription resolver never detached from the bus")
}

func TestGraphQLWS_MutationOverSocket(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.createUserWithToken(t, "socketeer")

	conn := dialWS(t, ts)
	initConnection(t, conn, map[string]any{"Authorization": "Bearer " + token})

	sendWS(t, conn, wsTestMessage{ID: "m1", Type: gqlMsgSubscribe, Payload: map[string]any{
		"query": `mutation { addBook(title: "The Mythical Man-Month", author: "Fred Brooks", published: 1975) { title } }`,
	}})

	next := readWS(t, conn)
	require.Equal(t, gqlMsgNext, next.Type)
	require.Equal(t, "m1", next.ID)
	book, ok := payloadData(t, next)["addBook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "The Mythical Man-Month", book["title"])

	complete := readWS(t, conn)
	require.Equal(t, gqlMsgComplete, complete.Type)
	require.Equal(t, "m1", complete.ID)
}

func TestGraphQLWS_MutationWithoutToken(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	initConnection(t, conn, nil)

	sendWS(t, conn, wsTestMessage{ID: "m1", Type: gqlMsgSubscribe, Payload: map[string]any{
		"query": `mutation { addBook(title: "Uninvited Book", author: "Nobody Known", published: 2020) { title } }`,
	}})

	next := readWS(t, conn)
	require.Equal(t, gqlMsgNext, next.Type)

	payload, ok := next.Payload.(map[string]any)
	require.True(t, ok)
	errs, ok := payload["errors"].([]any)
	require.True(t, ok, "expected errors in payload: %v", payload)
	require.NotEmpty(t, errs)
	first, ok := errs[0].(map[string]any)
	require.True(t, ok)
	ext, ok := first["extensions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UNAUTHENTICATED", ext["code"])
}

func TestGraphQLWS_SubscribeBeforeInit(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	sendWS(t, conn, wsTestMessage{ID: "1", Type: gqlMsgSubscribe, Payload: map[string]any{
		"query": `subscription { bookAdded { title } }`,
	}})

	closeErr := readClose(t, conn)
	assert.Equal(t, closeUnauthorized, closeErr.Code)
}

func TestGraphQLWS_DuplicateSubscriberID(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	initConnection(t, conn, nil)

	subscribe := wsTestMessage{ID: "1", Type: gqlMsgSubscribe, Payload: map[string]any{
		"query": `subscription { bookAdded { title } }`,
	}}
	sendWS(t, conn, subscribe)
	sendWS(t, conn, subscribe)

	closeErr := readClose(t, conn)
	assert.Equal(t, closeSubscriberExists, closeErr.Code)
}

func TestGraphQLWS_InvalidInitToken(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	sendWS(t, conn, wsTestMessage{Type: gqlMsgConnectionInit, Payload: map[string]any{
		"Authorization": "Bearer bogus",
	}})

	closeErr := readClose(t, conn)
	assert.Equal(t, closeForbidden, closeErr.Code)
}

func TestGraphQLWS_PingPong(t *testing.T) {
	ts := setupTestServer(t)

	conn := dialWS(t, ts)
	sendWS(t, conn, wsTestMessage{Type: gqlMsgPing})

	pong := readWS(t, conn)
	assert.Equal(t, gqlMsgPong, pong.Type)
}

func TestGraphQLWS_InvalidTokenOnDial(t *testing.T) {
	ts := setupTestServer(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer bogus")
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, resp, err := dialer.Dial(wsURL(ts), header)

	// The identity middleware rejects the handshake before the upgrade.
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
