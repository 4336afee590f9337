package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tkani-store/notifier/internal/domain"
	"github.com/tkani-store/notifier/internal/observability"
)

type fakeNotifier struct {
	feed       []domain.OrderSummary
	unread     int
	loading    bool
	refreshed  int
	markedID   string
	markResult bool
	markedAll  bool
	resetErr   error
}

func (f *fakeNotifier) Notifications() []domain.OrderSummary { return f.feed }
func (f *fakeNotifier) UnreadCount() int                     { return f.unread }
func (f *fakeNotifier) Loading() bool                        { return f.loading }
func (f *fakeNotifier) Refresh()                             { f.refreshed++ }

func (f *fakeNotifier) MarkAsRead(_ context.Context, id string) bool {
	f.markedID = id
	if f.markResult {
		f.unread--
	}
	return f.markResult
}

func (f *fakeNotifier) MarkAllAsRead(context.Context) { f.markedAll = true; f.unread = 0 }
func (f *fakeNotifier) Reset(context.Context) error   { return f.resetErr }

type fakeLookup map[string]domain.OrderSummary

func (f fakeLookup) Get(id string) (domain.OrderSummary, bool) {
	s, ok := f[id]
	return s, ok
}

func newServer(t *testing.T, n *fakeNotifier, lookup fakeLookup) *Server {
	t.Helper()
	return New(n, lookup, zaptest.NewLogger(t), observability.NewNoop())
}

func TestGetNotifications(t *testing.T) {
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	n := &fakeNotifier{
		feed: []domain.OrderSummary{
			{ID: "1", ClientLabel: "Anna", Status: "new", CreatedAt: &created},
		},
		unread:  1,
		loading: true,
	}
	srv := newServer(t, n, fakeLookup{})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var resp struct {
		Notifications []domain.OrderSummary `json:"notifications"`
		UnreadCount   int                   `json:"unread_count"`
		Loading       bool                  `json:"loading"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	require.Equal(t, "1", resp.Notifications[0].ID)
	require.Equal(t, 1, resp.UnreadCount)
	require.True(t, resp.Loading)
}

func TestRefreshReturnsAccepted(t *testing.T) {
	n := &fakeNotifier{}
	srv := newServer(t, n, fakeLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/refresh", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, n.refreshed)
}

func TestMarkRead(t *testing.T) {
	tests := []struct {
		name        string
		markResult  bool
		wantRemoved bool
	}{
		{"known id removed", true, true},
		{"unknown id noop", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{unread: 2, markResult: tt.markResult}
			srv := newServer(t, n, fakeLookup{})

			req := httptest.NewRequest(http.MethodPost, "/api/notifications/ord-5/read", nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, "ord-5", n.markedID)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tt.wantRemoved, resp["removed"])
		})
	}
}

func TestMarkAllRead(t *testing.T) {
	n := &fakeNotifier{unread: 5}
	srv := newServer(t, n, fakeLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/read-all", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, n.markedAll)
	require.Contains(t, w.Body.String(), `"unread_count":0`)
}

func TestReset(t *testing.T) {
	n := &fakeNotifier{}
	srv := newServer(t, n, fakeLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/reset", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestResetFailure(t *testing.T) {
	n := &fakeNotifier{resetErr: errors.New("store gone")}
	srv := newServer(t, n, fakeLookup{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/reset", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRecentOrder(t *testing.T) {
	lookup := fakeLookup{
		"ord-9": {ID: "ord-9", ClientLabel: "Boris", Status: "paid"},
	}
	srv := newServer(t, &fakeNotifier{}, lookup)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/recent/ord-9", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ord-9"`)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/recent/never-seen", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &fakeNotifier{}, fakeLookup{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestListenAndServeShutsDownOnContext(t *testing.T) {
	srv := newServer(t, &fakeNotifier{}, fakeLookup{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := srv.ListenAndServe(ctx, ":0")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("unexpected error: %v", err)
	}
}
