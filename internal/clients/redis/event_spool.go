package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/astrolab-backend/internal/platform/logger"
	"github.com/yungbote/astrolab-backend/internal/services"
)

// EventSpool persists events tracked while the ingestion path is unavailable.
// Backed by a Redis list bounded to maxRetained entries; when the bound is
// exceeded the oldest entries are evicted. That eviction is the pipeline's
// documented data-loss boundary.
type eventSpool struct {
	log         *logger.Logger
	rdb         *goredis.Client
	key         string
	maxRetained int
}

const defaultMaxRetained = 1000

func NewEventSpool(log *logger.Logger, addr, key string, maxRetained int) (services.EventSpool, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "astrolab:event_spool"
	}
	if maxRetained <= 0 {
		maxRetained = defaultMaxRetained
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &eventSpool{
		log:         log.With("client", "RedisEventSpool"),
		rdb:         rdb,
		key:         key,
		maxRetained: maxRetained,
	}, nil
}

func (s *eventSpool) Append(ctx context.Context, events []services.EventInput) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(events))
	for i := range events {
		b, err := json.Marshal(events[i])
		if err != nil {
			s.log.Warn("dropping unencodable event", "event_name", events[i].EventName, "error", err)
			continue
		}
		payloads = append(payloads, b)
	}
	if len(payloads) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.key, payloads...)
	// Keep the newest maxRetained entries; oldest fall off the front.
	pipe.LTrim(ctx, s.key, int64(-s.maxRetained), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool append: %w", err)
	}
	return nil
}

func (s *eventSpool) Drain(ctx context.Context) ([]services.EventInput, error) {
	pipe := s.rdb.TxPipeline()
	lrange := pipe.LRange(ctx, s.key, 0, -1)
	pipe.Del(ctx, s.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("spool drain: %w", err)
	}
	raw := lrange.Val()
	out := make([]services.EventInput, 0, len(raw))
	for _, item := range raw {
		var ev services.EventInput
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			s.log.Warn("skipping undecodable spooled event", "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *eventSpool) Close() error {
	return s.rdb.Close()
}
