// Package httpapi exposes the tracker to the admin UI. The bell dropdown
// is a thin consumer of these endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tkani-store/notifier/internal/domain"
	"github.com/tkani-store/notifier/internal/observability"
)

type Notifier interface {
	Notifications() []domain.OrderSummary
	UnreadCount() int
	Loading() bool
	Refresh()
	MarkAsRead(ctx context.Context, id string) bool
	MarkAllAsRead(ctx context.Context)
	Reset(ctx context.Context) error
}

type SummaryLookup interface {
	Get(id string) (domain.OrderSummary, bool)
}

type Server struct {
	notifier Notifier
	recent   SummaryLookup
	router   chi.Router
	logger   *zap.Logger
	metrics  observability.Metrics
}

func New(notifier Notifier, recent SummaryLookup, logger *zap.Logger, metrics observability.Metrics) *Server {
	s := &Server{
		notifier: notifier,
		recent:   recent,
		logger:   logger,
		metrics:  metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		ServerTimingApp(s.metrics),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/notifications", s.getNotifications)
		r.Post("/notifications/refresh", s.refresh)
		r.Post("/notifications/read-all", s.markAllRead)
		r.Post("/notifications/{id}/read", s.markRead)
		r.Post("/notifications/reset", s.reset)
		r.Get("/orders/recent/{id}", s.getRecentOrder)
	})

	s.router = r
}

type feedResponse struct {
	Notifications []domain.OrderSummary `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	Loading       bool                  `json:"loading"`
}

func (s *Server) getNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, feedResponse{
		Notifications: s.notifier.Notifications(),
		UnreadCount:   s.notifier.UnreadCount(),
		Loading:       s.notifier.Loading(),
	})
}

func (s *Server) refresh(w http.ResponseWriter, _ *http.Request) {
	s.notifier.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "order id required", http.StatusBadRequest)
		return
	}
	removed := s.notifier.MarkAsRead(r.Context(), id)
	writeJSON(w, map[string]any{
		"removed":      removed,
		"unread_count": s.notifier.UnreadCount(),
	})
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	s.notifier.MarkAllAsRead(r.Context())
	writeJSON(w, map[string]any{"unread_count": 0})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.notifier.Reset(r.Context()); err != nil {
		s.logger.Error("seen-set reset failed", zap.Error(err))
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getRecentOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, ok := s.recent.Get(id)
	if !ok {
		http.Error(w, "order not observed", http.StatusNotFound)
		return
	}
	writeJSON(w, summary)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers already gone, nothing sensible left to do
		return
	}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	s.logger.Info("http api listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}
