package stream

import (
	"fmt"
	"log/slog"
	"net/http"

	"social-sync/internal/config"
)

// NewSource picks the adapter named by cfg.Transport.
func NewSource(cfg config.StreamConfig, urls URLResolver, logger *slog.Logger) (Source, error) {
	switch cfg.Transport {
	case config.TransportSSE:
		return NewSSESource(urls, &http.Client{}, cfg.RetryDelay, logger), nil
	case config.TransportWebSocket:
		return NewWebSocketSource(urls, cfg.RetryDelay, logger), nil
	case config.TransportNATS:
		return NewNATSSource(cfg.NATSURL, cfg.RetryDelay, logger), nil
	case config.TransportAMQP:
		return NewAMQPSource(cfg.AMQPURL, cfg.AMQPExchange, cfg.RetryDelay, logger), nil
	case config.TransportRedis:
		return NewRedisSource(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RetryDelay, logger), nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q", cfg.Transport)
	}
}
