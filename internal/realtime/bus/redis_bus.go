package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime"
)

const (
	envelopeVersion = 1
	publishTimeout  = 2 * time.Second
	// unscopedTopic carries messages whose channel has no user prefix.
	unscopedTopic = "_"
)

var (
	errEnvelopeVersion = errors.New("unsupported envelope version")
	errTopicMismatch   = errors.New("message channel does not belong to topic")
)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Channel is the topic prefix; each user's events go to <Channel>:<user id>.
	Channel string `yaml:"channel"`
}

// envelope is the wire form on Redis. Origin identifies the publishing
// instance in logs.
type envelope struct {
	V      int                 `json:"v"`
	Origin string              `json:"origin"`
	Msg    realtime.SSEMessage `json:"msg"`
}

type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	origin string
}

func NewRedisBus(cfg RedisConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	prefix := strings.TrimSpace(cfg.Channel)
	if prefix == "" {
		prefix = "assistant-sse"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	origin := uuid.NewString()
	return &redisBus{
		log:    log.With("service", "RedisSSEBus", "origin", origin),
		rdb:    rdb,
		prefix: prefix,
		origin: origin,
	}, nil
}

// topicFor maps a hub channel to the Redis topic of the user it belongs to.
func topicFor(prefix, channel string) string {
	if uid, ok := realtime.ChannelUser(channel); ok {
		return prefix + ":" + uid.String()
	}
	return prefix + ":" + unscopedTopic
}

func encodeEnvelope(origin string, msg realtime.SSEMessage) ([]byte, error) {
	return json.Marshal(envelope{V: envelopeVersion, Origin: origin, Msg: msg})
}

// decodeEnvelope rejects unknown versions and messages that arrived on a
// topic other than the one their channel maps to.
func decodeEnvelope(prefix, topic string, payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, err
	}
	if env.V != envelopeVersion {
		return envelope{}, fmt.Errorf("%w: %d", errEnvelopeVersion, env.V)
	}
	if topicFor(prefix, env.Msg.Channel) != topic {
		return envelope{}, errTopicMismatch
	}
	return env, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if msg.Channel == "" {
		return fmt.Errorf("channel required")
	}
	raw, err := encodeEnvelope(b.origin, msg)
	if err != nil {
		return err
	}
	// Status events are best effort; a stalled Redis must not hold up a turn.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return b.rdb.Publish(ctx, topicFor(b.prefix, msg.Channel), raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.PSubscribe(ctx, b.prefix+":*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				env, err := decodeEnvelope(b.prefix, m.Channel, []byte(m.Payload))
				if err != nil {
					b.log.Warn("Dropping redis SSE payload", "topic", m.Channel, "error", err)
					continue
				}
				if env.Origin != b.origin {
					b.log.Debug("Forwarding remote SSE event", "from", env.Origin, "event", env.Msg.Event)
				}
				onMsg(env.Msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
