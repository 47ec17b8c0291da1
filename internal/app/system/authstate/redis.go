// internal/app/system/authstate/redis.go
package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the redis pubsub channel auth-state events travel on.
const Channel = "anomalyhub:authstate"

// RedisRelay mirrors hub events across app instances so a sign-out or role
// change on one instance invalidates cached roles on the others.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
	id  string
	log *zap.Logger

	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

// NewRedisClient connects and pings, the same way the app's other redis
// consumers do.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisRelay(rdb *redis.Client, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:  rdb,
		hub:  hub,
		id:   uuid.NewString(),
		log:  logger.Named("authstate.redis"),
		done: make(chan struct{}),
	}
}

// Start subscribes to the channel and begins relaying in both directions.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.ps = r.rdb.Subscribe(ctx, Channel)
	if _, err := r.ps.Receive(ctx); err != nil {
		_ = r.ps.Close()
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	r.hub.OnPublish(r.forward)
	go r.consume()

	r.log.Info("auth-state relay started", zap.String("instance", r.id))
	return nil
}

func (r *RedisRelay) forward(e Event) {
	if e.Origin != "" {
		return
	}
	e.Origin = r.id
	payload, err := json.Marshal(e)
	if err != nil {
		r.log.Error("marshal auth-state event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		r.log.Warn("publish auth-state event", zap.Error(err), zap.String("uid", e.UID))
	}
}

func (r *RedisRelay) consume() {
	defer close(r.done)
	for msg := range r.ps.Channel() {
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			r.log.Warn("bad auth-state payload", zap.Error(err))
			continue
		}
		if e.Origin == r.id {
			continue
		}
		r.hub.Deliver(e)
	}
}

// Close stops the subscription and waits for the consumer to exit.
func (r *RedisRelay) Close() error {
	var err error
	r.once.Do(func() {
		if r.ps == nil {
			close(r.done)
			return
		}
		err = r.ps.Close()
		<-r.done
	})
	return err
}
