package replicator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSTransport, mesajları bir NATS subject'i üzerinden taşır.
type NATSTransport struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewNATSTransport, url'deki NATS sunucusuna bağlanır.
func NewNATSTransport(url, subject, name string, logger *zap.Logger) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSTransport{nc: nc, subject: subject, logger: logger}, nil
}

func (t *NATSTransport) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal replicator message: %w", err)
	}
	if err := t.nc.Publish(t.subject, data); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	return nil
}

func (t *NATSTransport) Subscribe(ctx context.Context, handler func(Message)) error {
	sub, err := t.nc.Subscribe(t.subject, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			t.logger.Warn("invalid replicator message on nats", zap.Error(err))
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to nats subject: %w", err)
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.sub != nil {
			_ = t.sub.Unsubscribe()
			t.sub = nil
		}
	}()
	return nil
}

func (t *NATSTransport) Close() error {
	t.mu.Lock()
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
		t.sub = nil
	}
	t.mu.Unlock()
	t.nc.Close()
	return nil
}
