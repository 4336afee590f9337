package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tkani-store/notifier/internal/config"
	"github.com/tkani-store/notifier/internal/domain"
	"github.com/tkani-store/notifier/internal/observability"
	"github.com/tkani-store/notifier/internal/pkg/breaker"
)

type fakeNotifier struct {
	calls  int
	added  bool
	err    error
	errSeq []error // when set, consumed call by call
}

func (f *fakeNotifier) AddFromExternalSource(context.Context, map[string]any) (bool, error) {
	f.calls++
	if len(f.errSeq) > 0 {
		err := f.errSeq[0]
		f.errSeq = f.errSeq[1:]
		return f.added, err
	}
	return f.added, f.err
}

func testPolicy() config.Retry {
	return config.Retry{Attempts: 2, Base: time.Millisecond, Max: 5 * time.Millisecond}
}

func testBreakerCfg() config.Breaker {
	return config.Breaker{Threshold: 2, OpenTimeout: time.Minute, MaxHalfOpen: 1}
}

func newHandler(t *testing.T, n *fakeNotifier, brk *breaker.Breaker) *Handler {
	t.Helper()
	return NewHandler(n, brk, testPolicy(), zaptest.NewLogger(t), observability.NewNoop())
}

func msg(value string) kafkago.Message {
	return kafkago.Message{Topic: "order-events", Value: []byte(value)}
}

func TestHandleWellFormedOrder(t *testing.T) {
	n := &fakeNotifier{added: true}
	h := newHandler(t, n, breaker.New(testBreakerCfg()))

	err := h.Handle(context.Background(), msg(`{"id":"ord-1","customer_name":"Anna"}`))
	require.NoError(t, err)
	require.Equal(t, 1, n.calls)
}

func TestHandleBadJSONIsAckedAndDropped(t *testing.T) {
	n := &fakeNotifier{}
	h := newHandler(t, n, breaker.New(testBreakerCfg()))

	err := h.Handle(context.Background(), msg(`{"id":"ord-1"`))
	require.NoError(t, err, "malformed payloads must be committed, not redelivered")
	require.Zero(t, n.calls)
}

func TestHandleMissingIDIsAckedAndDropped(t *testing.T) {
	n := &fakeNotifier{err: domain.ErrNoID}
	h := newHandler(t, n, breaker.New(testBreakerCfg()))

	err := h.Handle(context.Background(), msg(`{"customer_name":"no id"}`))
	require.NoError(t, err)
	require.Equal(t, 1, n.calls, "no retries for terminal normalization errors")
}

func TestHandleRetriesPersistenceFailure(t *testing.T) {
	n := &fakeNotifier{
		added:  true,
		errSeq: []error{errors.New("save failed"), nil},
	}
	h := newHandler(t, n, breaker.New(testBreakerCfg()))

	err := h.Handle(context.Background(), msg(`{"id":"ord-2"}`))
	require.NoError(t, err)
	require.Equal(t, 2, n.calls)
}

func TestHandlePersistentFailureTripsBreaker(t *testing.T) {
	n := &fakeNotifier{err: errors.New("save failed")}
	brk := breaker.New(testBreakerCfg())
	h := newHandler(t, n, brk)

	ctx := context.Background()
	require.Error(t, h.Handle(ctx, msg(`{"id":"a"}`)))
	require.Error(t, h.Handle(ctx, msg(`{"id":"b"}`)))
	require.Equal(t, breaker.Open, brk.State())

	err := h.Handle(ctx, msg(`{"id":"c"}`))
	require.ErrorIs(t, err, ErrCircuitOpen)
}
