// orderspammer publishes fake storefront order events to the notifier's
// ingest topic. Dev tool for exercising the notification flow without a
// running storefront.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type Spammer struct {
	writer    *kafka.Writer
	isRunning atomic.Bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	topic     string
	brokers   []string
	totalSent atomic.Int64
	startedAt time.Time
}

type SpamRequest struct {
	Rate     int    `json:"rate"`
	Duration string `json:"duration"`
}

func NewSpammer(brokers []string, topic string) *Spammer {
	ctx, cancel := context.WithCancel(context.Background())

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	return &Spammer{
		writer:    writer,
		ctx:       ctx,
		cancel:    cancel,
		topic:     topic,
		brokers:   brokers,
		startedAt: time.Now(),
	}
}

func (s *Spammer) StartSpam(rate int, duration time.Duration) {
	if s.isRunning.Load() {
		return
	}
	s.isRunning.Store(true)
	s.totalSent.Store(0)

	log.Printf("Starting spam: rate=%d msg/s, duration=%v", rate, duration)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.isRunning.Store(false)

		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()

		timer := time.NewTimer(duration)
		defer timer.Stop()

		for {
			select {
			case <-ticker.C:
				jsonData, err := json.Marshal(generateFakeOrder())
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}

				err = s.writer.WriteMessages(s.ctx, kafka.Message{
					Value: jsonData,
					Time:  time.Now(),
				})
				if err != nil {
					log.Printf("Error sending message to Kafka: %v", err)
				} else {
					s.totalSent.Add(1)
				}

			case <-timer.C:
				log.Printf("Spam completed. Total sent: %d", s.totalSent.Load())
				return

			case <-s.ctx.Done():
				log.Printf("Spam stopped. Total sent: %d", s.totalSent.Load())
				return
			}
		}
	}()
}

func (s *Spammer) StopSpam() {
	if s.isRunning.Load() {
		s.cancel()
		s.wg.Wait()

		// Recreate context for next run
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
}

func (s *Spammer) Close() {
	s.StopSpam()
	s.writer.Close()
}

var fabrics = []string{"linen", "velvet", "chiffon", "jacquard", "twill", "satin", "muslin"}

var statuses = []string{"new", "paid", "packing"}

func generateFakeOrder() map[string]interface{} {
	total := float64(rand.Intn(45000)+1500) / 100.0
	fabric := fabrics[rand.Intn(len(fabrics))]
	order := map[string]interface{}{
		"id":            fmt.Sprintf("ord_%d_%d", time.Now().UnixNano(), rand.Intn(1000)),
		"customer_name": fmt.Sprintf("Test Customer %d", rand.Intn(500)),
		"email":         fmt.Sprintf("customer%d@example.com", rand.Intn(1000)),
		"status":        statuses[rand.Intn(len(statuses))],
		"total":         total,
		"currency":      "EUR",
		"created_at":    time.Now().Format(time.RFC3339),
		"items": []map[string]interface{}{
			{
				"sku":      fmt.Sprintf("FAB-%s-%03d", fabric, rand.Intn(999)),
				"name":     fmt.Sprintf("%s fabric", fabric),
				"meters":   float64(rand.Intn(200)+10) / 10.0,
				"price":    total,
				"color":    fmt.Sprintf("#%06x", rand.Intn(0xffffff)),
				"in_stock": true,
			},
		},
	}

	// Occasionally use the legacy field spelling so normalization paths
	// actually get exercised.
	if rand.Intn(5) == 0 {
		order["order_id"] = order["id"]
		delete(order, "id")
		order["client_name"] = order["customer_name"]
		delete(order, "customer_name")
		order["grand_total"] = order["total"]
		delete(order, "total")
	}

	return order
}

func main() {
	brokers := []string{"kafka:9092"}
	if envBrokers := os.Getenv("KAFKA_BROKERS"); envBrokers != "" {
		brokers = []string{envBrokers}
	}

	topic := "order-events"
	if envTopic := os.Getenv("KAFKA_TOPIC"); envTopic != "" {
		topic = envTopic
	}

	spammer := NewSpammer(brokers, topic)
	defer spammer.Close()

	http.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req SpamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		if req.Rate <= 0 {
			req.Rate = 10
		}

		duration, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, "Invalid duration format: "+err.Error(), http.StatusBadRequest)
			return
		}

		spammer.StartSpam(req.Rate, duration)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "started",
			"rate":     req.Rate,
			"duration": duration.String(),
		})
	})

	http.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		spammer.StopSpam()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "stopped",
			"total_sent": spammer.totalSent.Load(),
		})
	})

	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_running": spammer.isRunning.Load(),
			"total_sent": spammer.totalSent.Load(),
		})
	})

	port := ":8082"
	if envPort := os.Getenv("SPAMMER_PORT"); envPort != "" {
		port = ":" + envPort
	}

	log.Printf("Spammer server started on %s", port)
	log.Printf("Endpoints: POST /start, POST /stop, GET /stats")
	log.Fatal(http.ListenAndServe(port, nil))
}
