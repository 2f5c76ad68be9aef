package api

import (
	"bufio"
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/auth"
	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/graph"
	"github.com/inkwellapp/inkwell-server/internal/search"
	"github.com/inkwellapp/inkwell-server/internal/service"
	"github.com/inkwellapp/inkwell-server/internal/sse"
	"github.com/inkwellapp/inkwell-server/internal/store"
	"log/slog"
)

const testLoginSecret = "secret"

type testServer struct {
	http     *httptest.Server
	store    *store.Store
	bus      *bus.Bus
	catalog  *service.CatalogService
	users    *service.UserService
	instance *service.InstanceService
	tokens   *auth.TokenService
	key      []byte
}

// setupTestServer wires a full server over temporary storage and serves
// it through httptest, so requests travel the real middleware chain.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{}
	cfg.App.Environment = "development"
	cfg.Server.Name = "Inkwell Test"

	s, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b := bus.New(logger)
	t.Cleanup(b.Close)

	index, err := search.NewSearchIndex(search.Options{DataPath: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	trail, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trail.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokenService, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)

	authService, err := service.NewAuthService(s, tokenService, testLoginSecret, trail, logger)
	require.NoError(t, err)
	t.Cleanup(authService.Close)

	catalog := service.NewCatalogService(s, b, index, trail, logger)
	users := service.NewUserService(s, trail, logger)
	searchService := service.NewSearchService(index, s, logger)
	instance := service.NewInstanceService(s, logger, cfg)

	schema, err := graph.NewSchema(graph.Config{
		Catalog: catalog,
		Users:   users,
		Auth:    authService,
		Search:  searchService,
		Bus:     b,
		Logger:  logger,
	})
	require.NoError(t, err)

	manager := sse.NewManager(b, logger)
	runCtx, runCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = manager.Run(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return b.SubscriberCount(domain.TopicBookAdded) == 1
	}, time.Second, 10*time.Millisecond, "event stream manager never attached to the bus")

	server := NewServer(cfg, s, &Services{
		Instance: instance,
		Auth:     authService,
		Catalog:  catalog,
		Users:    users,
		Search:   searchService,
	}, schema, manager, sse.NewHandler(manager, logger), trail, logger)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	return &testServer{
		http:     ts,
		store:    s,
		bus:      b,
		catalog:  catalog,
		users:    users,
		instance: instance,
		tokens:   tokenService,
		key:      key,
	}
}

func (ts *testServer) createUser(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := ts.users.CreateUser(context.Background(), service.CreateUserRequest{Username: username})
	require.NoError(t, err)
	return user
}

func (ts *testServer) createUserWithToken(t *testing.T, username string) (*domain.User, string) {
	t.Helper()
	user := ts.createUser(t, username)
	token, err := ts.tokens.GenerateToken(user)
	require.NoError(t, err)
	return user, token
}

func (ts *testServer) seedBooks(t *testing.T) {
	t.Helper()
	actor := ts.createUser(t, "seeder")
	books := []service.AddBookRequest{
		{Title: "Clean Code", Author: "Robert Martin", Published: 2008, Genres: []string{"refactoring"}},
		{Title: "Agile Software Development", Author: "Robert Martin", Published: 2002, Genres: []string{"agile"}},
		{Title: "Refactoring", Author: "Martin Fowler", Published: 2018, Genres: []string{"refactoring"}},
	}
	for _, req := range books {
		_, err := ts.catalog.AddBook(context.Background(), actor, req)
		require.NoError(t, err)
	}
}

type graphqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

// postGraphQL sends a query to /graphql, with a bearer token when one
// is given, and decodes the response envelope.
func (ts *testServer) postGraphQL(t *testing.T, token, query string, variables map[string]any) (*http.Response, graphqlResponse) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+"/graphql", strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out graphqlResponse
	require.NoError(t, json.UnmarshalRead(resp.Body, &out))
	return resp, out
}

func (ts *testServer) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.http.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.UnmarshalRead(resp.Body, &out))
	return out
}

func TestGraphQL_QueryCounts(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedBooks(t)

	resp, result := ts.postGraphQL(t, "", `{ bookCount authorCount }`, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, result.Errors)
	assert.Equal(t, float64(3), result.Data["bookCount"])
	assert.Equal(t, float64(2), result.Data["authorCount"])
}

func TestGraphQL_AddBook_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	mutation := `mutation {
		addBook(title: "The Design of Everyday Things", author: "Donald Norman", published: 1988, genres: ["design"]) { title }
	}`
	resp, result := ts.postGraphQL(t, "", mutation, nil)

	// Resolver-level failures keep HTTP 200 and report through the
	// errors array.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "UNAUTHENTICATED", result.Errors[0].Extensions["code"])
}

func TestGraphQL_AddBook_WithToken(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.createUserWithToken(t, "writer")

	mutation := `mutation {
		addBook(title: "The Design of Everyday Things", author: "Donald Norman", published: 1988, genres: ["design"]) {
			title
			author { name bookCount }
		}
	}`
	resp, result := ts.postGraphQL(t, token, mutation, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, result.Errors)

	book, ok := result.Data["addBook"].(map[string]any)
	require.True(t, ok, "addBook payload: %v", result.Data)
	assert.Equal(t, "The Design of Everyday Things", book["title"])

	author, ok := book["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Donald Norman", author["name"])
	assert.Equal(t, float64(1), author["bookCount"])
}

func TestGraphQL_TamperedToken(t *testing.T) {
	ts := setupTestServer(t)

	resp, result := ts.postGraphQL(t, "not-a-real-token", `{ bookCount }`, nil)

	// A present but unverifiable token fails the request outright
	// instead of degrading to anonymous.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INVALID_CREDENTIAL", result.Errors[0].Extensions["code"])
	assert.Nil(t, result.Data)
}

func TestGraphQL_ExpiredToken(t *testing.T) {
	ts := setupTestServer(t)
	user := ts.createUser(t, "expired")

	// A second token service over the same key mints tokens the server
	// can decrypt but whose expiry has already passed.
	shortLived, err := auth.NewTokenService(ts.key, time.Millisecond)
	require.NoError(t, err)
	token, err := shortLived.GenerateToken(user)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	resp, result := ts.postGraphQL(t, token, `{ bookCount }`, nil)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "TOKEN_EXPIRED", result.Errors[0].Extensions["code"])
}

func TestGraphQL_Me(t *testing.T) {
	ts := setupTestServer(t)
	user, token := ts.createUserWithToken(t, "reader")

	resp, result := ts.postGraphQL(t, token, `{ me { id username } }`, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, result.Errors)
	me, ok := result.Data["me"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, user.ID, me["id"])
	assert.Equal(t, "reader", me["username"])
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	// An empty search index reports degraded until something is indexed.
	resp := ts.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeBody[HealthResponse](t, resp)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Components["search"].Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["events"].Status)

	ts.seedBooks(t)

	resp = ts.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health = decodeBody[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
}

func TestInstanceEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.get(t, "/api/v1/instance", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody[struct {
		Code string `json:"code"`
	}](t, resp)
	assert.Equal(t, "NOT_FOUND", body.Code)

	_, err := ts.instance.InitializeInstance(context.Background())
	require.NoError(t, err)

	resp = ts.get(t, "/api/v1/instance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	instance := decodeBody[InstanceResponse](t, resp)
	assert.Equal(t, "Inkwell Test", instance.Name)
	assert.Equal(t, service.ServerVersion, instance.Version)
	assert.NotEmpty(t, instance.ID)
}

func TestAuditEndpoint_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.get(t, "/api/v1/audit", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[struct {
		Code string `json:"code"`
	}](t, resp)
	assert.Equal(t, "UNAUTHENTICATED", body.Code)
}

func TestAuditEndpoint_ListsEntries(t *testing.T) {
	ts := setupTestServer(t)
	_, token := ts.createUserWithToken(t, "auditor")

	mutation := `mutation {
		addBook(title: "Working Effectively with Legacy Code", author: "Michael Feathers", published: 2004) { title }
	}`
	_, result := ts.postGraphQL(t, token, mutation, nil)
	require.Empty(t, result.Errors)

	resp := ts.get(t, "/api/v1/audit?action=book.add", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[AuditListResponse](t, resp)
	require.GreaterOrEqual(t, list.Total, int64(1))
	require.NotEmpty(t, list.Entries)
	entry := list.Entries[0]
	assert.Equal(t, "auditor", entry.Actor)
	assert.Equal(t, audit.ActionBookAdd, entry.Action)
	assert.Contains(t, entry.Summary, "Working Effectively with Legacy Code")
}

func TestEventsStream(t *testing.T) {
	ts := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	requireEvent(t, scanner, "connected")

	// A catalog write publishes through the bus onto this stream.
	actor := ts.createUser(t, "streamer")
	_, err = ts.catalog.AddBook(context.Background(), actor, service.AddBookRequest{
		Title:     "The Pragmatic Programmer",
		Author:    "Andrew Hunt",
		Published: 1999,
	})
	require.NoError(t, err)

	requireEvent(t, scanner, string(sse.EventBookAdded))
}

// requireEvent reads frames until one carries the wanted event name.
func requireEvent(t *testing.T, scanner *bufio.Scanner, event string) {
	t.Helper()
	want := fmt.Sprintf("event: %s", event)
	for scanner.Scan() {
		if scanner.Text() == want {
			return
		}
	}
	t.Fatalf("stream ended before %q event: %v", event, scanner.Err())
}
