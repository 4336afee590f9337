package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInmemRollingWindow(t *testing.T) {
	m := NewInmem(2)

	m.ObservePoll(10, 1, true)
	m.ObservePoll(20, 0, true)
	m.ObservePoll(30, 2, false)

	last := m.Last()
	require.Len(t, last, 2, "window keeps only the newest events")
}

func TestInmemTotals(t *testing.T) {
	m := NewInmem(8)

	m.IncDeduped()
	m.IncDeduped()
	m.IncDropped()

	deduped, dropped := m.Totals()
	require.Equal(t, 2, deduped)
	require.Equal(t, 1, dropped)
}

func TestNoopIsSafe(t *testing.T) {
	n := NewNoop()
	n.ObservePoll(1, 1, true)
	n.ObserveHTTP("GET", "/api/notifications", 200, 1)
	n.ObserveIngest(1, true)
	n.IncDeduped()
	n.IncDropped()
}

func TestAppendServerTiming(t *testing.T) {
	w := httptest.NewRecorder()
	AppendServerTiming(w, "poll", 12.34, "")
	require.Equal(t, "poll;dur=12.34", w.Header().Get("Server-Timing"))

	w = httptest.NewRecorder()
	AppendServerTiming(w, "source", 0, "cache")
	require.Equal(t, `source;desc="cache"`, w.Header().Get("Server-Timing"))

	w = httptest.NewRecorder()
	AppendServerTiming(w, "db", 3.5, "lookup")
	require.Equal(t, `db;dur=3.50;desc="lookup"`, w.Header().Get("Server-Timing"))
}

func TestSetIfPos(t *testing.T) {
	w := httptest.NewRecorder()
	SetIfPos(w, "X-Poll-Time", 7.25)
	require.Equal(t, "7.25", w.Header().Get("X-Poll-Time"))

	w = httptest.NewRecorder()
	SetIfPos(w, "X-Poll-Time", 0)
	require.Empty(t, w.Header().Get("X-Poll-Time"))
}
