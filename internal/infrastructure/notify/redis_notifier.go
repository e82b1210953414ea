package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Publisher is the subset of the Redis client the notifier needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes rate changes on a Redis pub/sub channel
type RedisNotifier struct {
	rdb     Publisher
	channel string
	logger  logger.Logger
}

// NewRedisNotifier creates a notifier over an existing client
func NewRedisNotifier(client Publisher, channel string, log logger.Logger) *RedisNotifier {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &RedisNotifier{rdb: client, channel: channel, logger: log}
}

// InitRedis connects to Redis and verifies the connection
func InitRedis(ctx context.Context, options *redis.Options) (*redis.Client, error) {
	const op = "notify.InitRedis"

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, op)
	}
	return client, nil
}

// NotifyRatesChanged publishes a summary of rates persisted for source
func (n *RedisNotifier) NotifyRatesChanged(ctx context.Context, source string, rates []entity.Rate) error {
	const op = "notify.RedisNotifier.NotifyRatesChanged"

	if len(rates) == 0 {
		return nil
	}

	payload, err := json.Marshal(newRatesChanged(source, rates))
	if err != nil {
		return errors.Wrap(err, op)
	}

	receivers, err := n.rdb.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return errors.Wrap(err, op)
	}

	n.logger.Debug("Published rate changes", map[string]interface{}{
		"channel":   n.channel,
		"source":    source,
		"changed":   len(rates),
		"receivers": receivers,
	})
	return nil
}
