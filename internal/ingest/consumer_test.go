package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
}

func (r *scriptedReader) Config() kafkago.ReaderConfig {
	return kafkago.ReaderConfig{Topic: "order-events", GroupID: "test"}
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingHandler struct {
	mu      sync.Mutex
	handled []int64
	fail    map[int64]error
}

func (h *recordingHandler) Handle(_ context.Context, msg kafkago.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, msg.Offset)
	if h.fail != nil {
		return h.fail[msg.Offset]
	}
	return nil
}

func TestConsumerCommitsInFetchOrder(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{
		{Topic: "order-events", Offset: 1, Value: []byte(`{"id":"a"}`)},
		{Topic: "order-events", Offset: 2, Value: []byte(`{"id":"b"}`)},
		{Topic: "order-events", Offset: 3, Value: []byte(`{"id":"c"}`)},
	}}
	handler := &recordingHandler{}

	c := NewConsumer(handler, reader, 2, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	require.Equal(t, []int64{1, 2, 3}, reader.committedOffsets())
}

func TestConsumerDoesNotCommitFailedMessage(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{
		{Topic: "order-events", Offset: 1, Value: []byte(`{"id":"a"}`)},
		{Topic: "order-events", Offset: 2, Value: []byte(`{"id":"b"}`)},
	}}
	handler := &recordingHandler{fail: map[int64]error{1: errors.New("boom")}}

	c := NewConsumer(handler, reader, 1, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		offsets := reader.committedOffsets()
		return len(offsets) == 1 && offsets[0] == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
