package replicator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport, mesajları bir Redis pub/sub channel'ı üzerinden taşır.
type RedisTransport struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisTransport, url'e bağlanır ve bağlantıyı PING ile doğrular.
func NewRedisTransport(url, channel string, logger *zap.Logger) (*RedisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisTransport{rdb: rdb, channel: channel, logger: logger}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal replicator message: %w", err)
	}
	if err := t.rdb.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe, channel'a abone olur ve mesajları arka planda handler'a iletir.
// ctx iptal edildiğinde veya Close çağrıldığında dinleme biter.
func (t *RedisTransport) Subscribe(ctx context.Context, handler func(Message)) error {
	pubsub := t.rdb.Subscribe(ctx, t.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}

	t.mu.Lock()
	t.pubsub = pubsub
	t.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					t.logger.Warn("invalid replicator message on redis", zap.Error(err))
					continue
				}
				handler(msg)
			}
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.pubsub != nil {
		_ = t.pubsub.Close()
		t.pubsub = nil
	}
	t.mu.Unlock()
	return t.rdb.Close()
}
