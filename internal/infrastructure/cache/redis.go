package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/events"

	"github.com/redis/go-redis/v9"
)

const (
	counterKeyPrefix = "outreach:sent:"
	counterTTL       = 48 * time.Hour
	seenKeyPrefix    = "outreach:seen:"
	metricsKey       = "outreach:metrics:last"
)

// Redis mirrors engine state that outlives a process (the daily counter,
// processed inbox messages) and republishes bus events on a channel. Every
// method degrades to a no-op when Redis is unreachable.
type Redis struct {
	client  *redis.Client
	logger  *log.Logger
	channel string

	warnedUnavailable atomic.Bool
}

func NewRedis(cfg config.RedisConfig, logger *log.Logger) *Redis {
	if logger == nil {
		logger = log.Default()
	}
	channel := strings.TrimSpace(cfg.EventChannel)
	if channel == "" {
		channel = "outreach:events"
	}
	if !cfg.Enabled() {
		logger.Printf("component=redis status=disabled reason=no_address")
		return &Redis{logger: logger, channel: channel}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("component=redis addr=%s status=unavailable err=%v", cfg.Addr, err)
		_ = client.Close()
		return &Redis{logger: logger, channel: channel}
	}

	return &Redis{client: client, logger: logger, channel: channel}
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r == nil || r.logger == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Printf("component=redis status=degraded err=%v", err)
	}
}

func (r *Redis) Close() error {
	if r.isUnavailable() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.isUnavailable() {
		return errors.New("redis unavailable")
	}
	return r.client.Ping(ctx).Err()
}

// LoadDailyCount returns the mirrored dispatch count for day. A missing key
// or an unreachable server both read as zero.
func (r *Redis) LoadDailyCount(ctx context.Context, day string) (int, error) {
	if r.isUnavailable() {
		return 0, nil
	}
	raw, err := r.client.Get(ctx, counterKeyPrefix+day).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		r.warnUnavailableOnce(err)
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("daily counter %s: %w", day, err)
	}
	return n, nil
}

func (r *Redis) SaveDailyCount(ctx context.Context, day string, count int) error {
	if r.isUnavailable() {
		return nil
	}
	if err := r.client.Set(ctx, counterKeyPrefix+day, count, counterTTL).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// MarkSeen records key and reports whether it was new. Without Redis every
// key is new and the caller's own memory decides.
func (r *Redis) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.isUnavailable() {
		return true, nil
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	ok, err := r.client.SetNX(ctx, seenKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		r.warnUnavailableOnce(err)
		return true, err
	}
	return ok, nil
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if r.isUnavailable() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.isUnavailable() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// SaveMetrics stores the latest metrics snapshot for external dashboards.
func (r *Redis) SaveMetrics(ctx context.Context, m any) error {
	return r.SetJSON(ctx, metricsKey, m, 0)
}

func (r *Redis) LoadMetrics(ctx context.Context, out any) (bool, error) {
	return r.GetJSON(ctx, metricsKey, out)
}

// PublishEvent republishes one bus event as JSON on the configured channel.
func (r *Redis) PublishEvent(ctx context.Context, e events.Event) error {
	if r.isUnavailable() {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// RunEventSink forwards every event published on bus until ctx is done.
func (r *Redis) RunEventSink(ctx context.Context, bus *events.Bus) {
	if r.isUnavailable() || bus == nil {
		return
	}
	sub := bus.Subscribe()
	defer sub.Close()
	r.logger.Printf("component=redis action=event_sink status=started channel=%s", r.channel)
	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("component=redis action=event_sink status=stopped")
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := r.PublishEvent(pctx, e); err != nil {
				r.logger.Printf("component=redis action=publish event_id=%s type=%s status=error err=%v", e.ID, e.Type, err)
			}
			cancel()
		}
	}
}
