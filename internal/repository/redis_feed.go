package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/models"
)

// DefaultFeedChannel is the pub/sub channel used when none is configured.
const DefaultFeedChannel = "pesflow:inspections"

// RedisFeedConfig holds the connection settings of the Redis change feed.
type RedisFeedConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisFeed is a ChangeFeed over Redis pub/sub so that subscribers in other
// processes see writes made here.
type RedisFeed struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// DialRedisFeed connects to Redis and verifies the connection.
func DialRedisFeed(ctx context.Context, cfg RedisFeedConfig, opts ...Option) (*RedisFeed, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisFeed(rdb, cfg.Channel, opts...), nil
}

// NewRedisFeed wraps an existing client.
func NewRedisFeed(rdb *redis.Client, channel string, opts ...Option) *RedisFeed {
	o := applyOptions(opts)
	if strings.TrimSpace(channel) == "" {
		channel = DefaultFeedChannel
	}
	return &RedisFeed{
		rdb:     rdb,
		channel: channel,
		logger:  o.logger.Named("redis_feed").With(zap.String("channel", channel)),
	}
}

// Publish sends rec as JSON on the feed channel.
func (f *RedisFeed) Publish(ctx context.Context, rec *models.InspectionRecord) error {
	if rec == nil {
		return nil
	}
	raw, err := encodeFeedRecord(rec)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

// Listen subscribes to the channel and forwards decoded records to onRecord
// from a background goroutine until ctx is done.
func (f *RedisFeed) Listen(ctx context.Context, onRecord func(*models.InspectionRecord)) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				rec, err := decodeFeedRecord(m.Payload)
				if err != nil {
					f.logger.Warn("bad feed payload", zap.Error(err))
					continue
				}
				onRecord(rec)
			}
		}
	}()
	return nil
}

// Close closes the client.
func (f *RedisFeed) Close() error {
	if f == nil || f.rdb == nil {
		return nil
	}
	return f.rdb.Close()
}

func encodeFeedRecord(rec *models.InspectionRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeFeedRecord(payload string) (*models.InspectionRecord, error) {
	var rec models.InspectionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, errors.New("record without id")
	}
	return &rec, nil
}
