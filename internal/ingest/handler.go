package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tkani-store/notifier/internal/config"
	"github.com/tkani-store/notifier/internal/domain"
	"github.com/tkani-store/notifier/internal/observability"
	"github.com/tkani-store/notifier/internal/pkg/breaker"
	"github.com/tkani-store/notifier/internal/pkg/retry"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type Notifier interface {
	AddFromExternalSource(ctx context.Context, raw map[string]any) (bool, error)
}

type Handler struct {
	notifier    Notifier
	breaker     *breaker.Breaker
	retryPolicy config.Retry
	logger      *zap.Logger
	metrics     observability.Metrics
}

func NewHandler(notifier Notifier, brk *breaker.Breaker, retryPolicy config.Retry, logger *zap.Logger, metrics observability.Metrics) *Handler {
	return &Handler{
		notifier:    notifier,
		breaker:     brk,
		retryPolicy: retryPolicy,
		logger:      logger,
		metrics:     metrics,
	}
}

// Handle processes one order event. Malformed payloads are acked and
// dropped: redelivering them cannot make them well-formed. Persistence
// failures are retried, and eventually redelivered; the seen-set makes
// redelivery harmless.
func (h *Handler) Handle(ctx context.Context, msg kafkago.Message) error {
	start := time.Now()

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		h.logger.Warn("bad json in order event, dropping",
			zap.Error(err),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		h.metrics.ObserveIngest(sinceMs(start), false)
		return nil
	}

	surfaced, err := h.notifier.AddFromExternalSource(ctx, raw)
	if errors.Is(err, domain.ErrNoID) {
		// terminal: redelivery cannot grow the record an id
		h.logger.Warn("order event without resolvable id, dropping",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		h.metrics.ObserveIngest(sinceMs(start), false)
		return nil
	}
	if err != nil {
		// persistence hiccup; the add is idempotent, so retrying is safe
		err = retry.Do(ctx, h.retryPolicy, func() error {
			_, retryErr := h.notifier.AddFromExternalSource(ctx, raw)
			return retryErr
		})
	}
	if err != nil {
		h.breaker.Failure()
		h.metrics.ObserveIngest(sinceMs(start), false)
		return err
	}

	h.breaker.Success()
	h.metrics.ObserveIngest(sinceMs(start), true)
	h.logger.Info("order event processed",
		zap.Bool("surfaced", surfaced),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
