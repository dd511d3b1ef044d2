package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
	"lending/internal/memstore"
	"lending/internal/notify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var today = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

type testAPI struct {
	t        *testing.T
	server   *httptest.Server
	mem      *memstore.Store
	tokens   *auth.TokenIssuer
	notified *notify.Recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	mem := memstore.New()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	rec := &notify.Recorder{}

	borrowings := borrowing.NewService(mem, mem.Borrowings(), mem.Catalog(),
		borrowing.WithClock(borrowing.FixedClock(today)),
		borrowing.WithNotifier(rec),
		borrowing.WithLogger(logger),
	)

	router := NewRouter(Deps{
		Logger:     logger,
		Tokens:     tokens,
		Auth:       auth.NewHandler(auth.NewService(mem.Users(), tokens, 100), logger),
		Books:      catalog.NewHandler(catalog.NewService(mem.Catalog()), logger),
		Borrowings: borrowing.NewHandler(borrowings, logger),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testAPI{t: t, server: srv, mem: mem, tokens: tokens, notified: rec}
}

func (a *testAPI) user(email string, staff bool) string {
	a.t.Helper()
	svc := auth.NewService(a.mem.Users(), a.tokens, 100)
	_, err := svc.Register(context.Background(), email, "pw", staff)
	require.NoError(a.t, err)

	status, body := a.do(http.MethodPost, "/auth/token/", "", fmt.Sprintf(`{"email":%q,"password":"pw"}`, email))
	require.Equal(a.t, http.StatusOK, status, body)

	var resp struct {
		Access string `json:"access"`
	}
	require.NoError(a.t, json.UnmarshalFromString(body, &resp))
	return resp.Access
}

func (a *testAPI) book(title string, inventory int) int64 {
	a.t.Helper()
	book := &catalog.Book{Title: title, Author: "Someone", Cover: catalog.CoverHard, Inventory: inventory, DailyFee: 100}
	require.NoError(a.t, a.mem.Catalog().Create(context.Background(), book))
	return book.ID
}

func (a *testAPI) inventory(id int64) int {
	a.t.Helper()
	book, err := a.mem.Catalog().Get(context.Background(), id)
	require.NoError(a.t, err)
	return book.Inventory
}

func (a *testAPI) do(method, path, token, body string) (int, string) {
	a.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, string(raw)
}

type detail struct {
	ID                 int64   `json:"id"`
	BorrowDate         string  `json:"borrow_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date"`
	IsActive           bool    `json:"is_active"`
	User               int64   `json:"user"`
	Book               struct {
		Title     string `json:"title"`
		Inventory int    `json:"inventory"`
	} `json:"book"`
}

func TestBorrowAndReturnScenario(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("reader@example.com", false)
	bookID := api.book("Test Book", 5)

	status, body := api.do(http.MethodPost, "/borrowings/", token,
		fmt.Sprintf(`{"book":%d,"expected_return_date":"2024-06-04"}`, bookID))
	require.Equal(t, http.StatusCreated, status, body)

	var created detail
	require.NoError(t, json.UnmarshalFromString(body, &created))
	assert.True(t, created.IsActive)
	assert.Equal(t, "2024-06-03", created.BorrowDate)
	assert.Equal(t, "2024-06-04", created.ExpectedReturnDate)
	assert.Nil(t, created.ActualReturnDate)
	assert.Equal(t, "Test Book", created.Book.Title)
	assert.Equal(t, 4, api.inventory(bookID))
	assert.Len(t, api.notified.Messages(), 1)

	status, body = api.do(http.MethodPost, fmt.Sprintf("/borrowings/%d/return/", created.ID), token, "")
	require.Equal(t, http.StatusOK, status, body)

	var returned detail
	require.NoError(t, json.UnmarshalFromString(body, &returned))
	assert.False(t, returned.IsActive)
	require.NotNil(t, returned.ActualReturnDate)
	assert.Equal(t, "2024-06-03", *returned.ActualReturnDate)
	assert.Equal(t, 5, api.inventory(bookID))

	status, body = api.do(http.MethodPost, fmt.Sprintf("/borrowings/%d/return/", created.ID), token, "")
	assert.Equal(t, http.StatusBadRequest, status, body)
	assert.Equal(t, 5, api.inventory(bookID))
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodGet, "/borrowings/", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/borrowings/", "", `{"book":1,"expected_return_date":"2024-06-04"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodGet, "/books/", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateRejections(t *testing.T) {
	api := newTestAPI(t)
	token := api.user("reader@example.com", false)
	empty := api.book("Gone", 0)
	stocked := api.book("Here", 1)

	status, body := api.do(http.MethodPost, "/borrowings/", token,
		fmt.Sprintf(`{"book":%d,"expected_return_date":"2024-06-10"}`, empty))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"book_inventory":["Gone is currently out of stock"]}`, body)

	status, body = api.do(http.MethodPost, "/borrowings/", token,
		fmt.Sprintf(`{"book":%d,"expected_return_date":"2024-06-02"}`, stocked))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "expected_return_date")

	status, body = api.do(http.MethodPost, "/borrowings/", token,
		fmt.Sprintf(`{"book":%d,"expected_return_date":"06/10/2024"}`, stocked))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Date has wrong format")

	status, body = api.do(http.MethodPost, "/borrowings/", token, `{"book":999,"expected_return_date":"2024-06-10"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"book":["Invalid pk \"999\" - object does not exist."]}`, body)

	status, _ = api.do(http.MethodPost, "/borrowings/", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, 1, api.inventory(stocked))
	assert.Empty(t, api.notified.Messages())
}

func TestListingIsScopedAndFiltered(t *testing.T) {
	api := newTestAPI(t)
	alice := api.user("alice@example.com", false)
	bob := api.user("bob@example.com", false)
	staff := api.user("staff@example.com", true)
	bookID := api.book("Shared", 10)

	borrow := func(token string) int64 {
		status, body := api.do(http.MethodPost, "/borrowings/", token,
			fmt.Sprintf(`{"book":%d,"expected_return_date":"2024-06-20"}`, bookID))
		require.Equal(t, http.StatusCreated, status, body)
		var d detail
		require.NoError(t, json.UnmarshalFromString(body, &d))
		return d.ID
	}
	aliceFirst := borrow(alice)
	borrow(alice)
	bobs := borrow(bob)

	status, _ := api.do(http.MethodPost, fmt.Sprintf("/borrowings/%d/return/", aliceFirst), alice, "")
	require.Equal(t, http.StatusOK, status)

	list := func(token, query string) []map[string]any {
		status, body := api.do(http.MethodGet, "/borrowings/"+query, token, "")
		require.Equal(t, http.StatusOK, status, body)
		var out []map[string]any
		require.NoError(t, json.UnmarshalFromString(body, &out))
		return out
	}

	assert.Len(t, list(alice, ""), 2)
	assert.Len(t, list(alice, "?is_active=true"), 1)
	assert.Len(t, list(alice, "?is_active=false"), 2)
	assert.Len(t, list(alice, fmt.Sprintf("?user_id=%d", bobs)), 2)
	assert.Len(t, list(staff, ""), 3)

	bobsOnly := list(staff, "?user_id=2")
	require.Len(t, bobsOnly, 1)
	assert.Equal(t, "Shared", bobsOnly[0]["book_title"])

	status, _ = api.do(http.MethodGet, "/borrowings/?user_id=abc", staff, "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = api.do(http.MethodGet, "/borrowings/?user_id=abc", alice, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodGet, fmt.Sprintf("/borrowings/%d/", bobs), alice, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodGet, fmt.Sprintf("/borrowings/%d/", bobs), staff, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestBooksEndpoints(t *testing.T) {
	api := newTestAPI(t)
	reader := api.user("reader@example.com", false)
	staff := api.user("staff@example.com", true)

	payload := `{"title":"Solaris","author":"Stanislaw Lem","cover":"soft","inventory":2,"daily_fee":"0.40"}`
	status, _ := api.do(http.MethodPost, "/books/", reader, payload)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := api.do(http.MethodPost, "/books/", staff, payload)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = api.do(http.MethodGet, "/books/", reader, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"daily_fee":"0.40"`)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}
