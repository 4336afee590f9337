package domain

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrNoID = errors.New("order has no resolvable id")

// Placeholders used when the upstream record carries no usable value.
const (
	DefaultClientLabel = "Client"
	DefaultStatus      = "new"
)

// OrderSummary is the normalized view of a raw storefront order record,
// reduced to what the admin notification dropdown needs.
type OrderSummary struct {
	ID          string     `json:"id"`
	ClientLabel string     `json:"client_label"`
	Total       *float64   `json:"total"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at"`
}

// The storefront API is not consistent about field names: orders created
// through checkout, imported orders and guest orders all spell the same
// concept differently. Each concept is resolved by an ordered list of
// extractors, first non-empty result wins.

type stringExtractor func(raw map[string]any) (string, bool)

var idExtractors = []stringExtractor{
	stringField("id"),
	stringField("order_id"),
	stringField("order_uid"),
	stringField("uid"),
}

var clientExtractors = []stringExtractor{
	stringField("customer_name"),
	stringField("client_name"),
	nestedField("customer", "name"),
	nestedField("client", "name"),
	stringField("name"),
	stringField("email"),
	stringField("guest_email"),
}

var statusExtractors = []stringExtractor{
	stringField("status"),
	stringField("state"),
}

var totalKeys = []string{"total", "grand_total", "amount", "total_price"}

var createdAtKeys = []string{"created_at", "createdAt", "date_created", "order_date"}

// Normalize converts a raw order record into an OrderSummary. It returns
// ErrNoID when no identifier can be resolved; such records must not be
// tracked at all.
func Normalize(raw map[string]any) (OrderSummary, error) {
	id, ok := firstString(raw, idExtractors)
	if !ok {
		return OrderSummary{}, ErrNoID
	}

	s := OrderSummary{
		ID:          id,
		ClientLabel: DefaultClientLabel,
		Status:      DefaultStatus,
	}
	if label, ok := firstString(raw, clientExtractors); ok {
		s.ClientLabel = label
	}
	if status, ok := firstString(raw, statusExtractors); ok {
		s.Status = status
	}
	for _, k := range totalKeys {
		if v, ok := asNumber(raw[k]); ok {
			s.Total = &v
			break
		}
	}
	for _, k := range createdAtKeys {
		if t, ok := asTime(raw[k]); ok {
			s.CreatedAt = &t
			break
		}
	}
	return s, nil
}

// SortFeed orders summaries newest-first; entries without a timestamp sink
// to the end. Stable so same-timestamp entries keep their merge order.
func SortFeed(feed []OrderSummary) {
	sort.SliceStable(feed, func(i, j int) bool {
		return newer(feed[i], feed[j])
	})
}

func newer(a, b OrderSummary) bool {
	if a.CreatedAt == nil {
		return false
	}
	if b.CreatedAt == nil {
		return true
	}
	return a.CreatedAt.After(*b.CreatedAt)
}

func firstString(raw map[string]any, chain []stringExtractor) (string, bool) {
	for _, extract := range chain {
		if v, ok := extract(raw); ok {
			return v, true
		}
	}
	return "", false
}

func stringField(key string) stringExtractor {
	return func(raw map[string]any) (string, bool) {
		return asString(raw[key])
	}
}

func nestedField(key, sub string) stringExtractor {
	return func(raw map[string]any) (string, bool) {
		m, ok := raw[key].(map[string]any)
		if !ok {
			return "", false
		}
		return asString(m[sub])
	}
}

// asString accepts strings and integral numbers; order ids arrive as both.
func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		t := strings.TrimSpace(x)
		return t, t != ""
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, true
			}
		}
	case float64:
		// unix seconds
		if x > 0 {
			return time.Unix(int64(x), 0).UTC(), true
		}
	}
	return time.Time{}, false
}
