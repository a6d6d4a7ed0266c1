package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"options-core/internal/events"
)

const (
	redisQueueSize      = 1024
	redisPublishTimeout = 2 * time.Second
)

// RedisOptions configures the Redis fan-out.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type redisMessage struct {
	channel string
	body    []byte
}

// RedisSink re-publishes events on Redis channels so other processes can
// subscribe to "broadcast" and "user_<id>". A single worker drains a bounded
// queue; when the queue is full the event is dropped.
type RedisSink struct {
	client  *redis.Client
	queue   chan redisMessage
	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisSink connects and verifies the server with PING.
func NewRedisSink(opts RedisOptions) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &RedisSink{
		client: client,
		queue:  make(chan redisMessage, redisQueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *RedisSink) NotifyUser(userID string, ev Event) {
	s.enqueue(string(events.UserChannel(userID)), ev)
}

func (s *RedisSink) Broadcast(ev Event) {
	s.enqueue(string(events.EventBroadcast), ev)
}

func (s *RedisSink) enqueue(channel string, ev Event) {
	msg, err := encode(channel, ev)
	if err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Msg("redis sink: encode failed")
		return
	}
	select {
	case s.queue <- msg:
	default:
		s.dropped.Add(1)
	}
}

func encode(channel string, ev Event) (redisMessage, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return redisMessage{}, err
	}
	return redisMessage{channel: channel, body: body}, nil
}

func (s *RedisSink) run() {
	defer close(s.done)
	for msg := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
		if err := s.client.Publish(ctx, msg.channel, msg.body).Err(); err != nil {
			if s.failed.Add(1)%100 == 1 {
				log.Warn().Err(err).Str("channel", msg.channel).Msg("redis publish failed")
			}
		}
		cancel()
	}
}

// Dropped counts events discarded because the queue was full.
func (s *RedisSink) Dropped() uint64 { return s.dropped.Load() }

// Close drains the queue and closes the client. Events sent after Close panic,
// so callers stop producers first.
func (s *RedisSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
		err = s.client.Close()
	})
	return err
}
