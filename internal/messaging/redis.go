// Package messaging publishes page-turner state to Redis and accepts a small
// set of commands, so the rest of the device fleet tooling can observe and
// poke the gadget. The device works fully offline: every publisher here is
// best-effort.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pageturner-service/internal/logger"
	"pageturner-service/internal/types"
)

type Callbacks struct {
	LampCallback func(string) error // "test", "off"
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l.WithTag("redis"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command listeners after initialization is
// complete.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis command listeners")

	r.wg.Add(1)
	go r.listCommandListener("pageturner:lamp", r.handleLampCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// BRPOP with a short timeout so context cancellation is noticed.
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleLampCommand(value string) error {
	if r.callbacks.LampCallback == nil {
		return nil
	}
	switch value {
	case "test", "off":
		return r.callbacks.LampCallback(value)
	default:
		return fmt.Errorf("invalid lamp command: %s", value)
	}
}

func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishServiceState publishes the service lifecycle state.
func (r *RedisClient) PublishServiceState(state types.ServiceState) error {
	r.logger.Infof("Publishing service state: %s", state)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, "pageturner", "state", string(state))
	pipe.HSet(r.ctx, "pageturner", "state:timestamp", time.Now().UTC().Format(time.RFC3339))
	pipe.Publish(r.ctx, "pageturner", "state")
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to publish service state: %w", err)
	}
	return nil
}

// PublishGesture records the finalized gesture and announces it on the
// gestures channel for anything watching tap activity.
func (r *RedisClient) PublishGesture(count int) error {
	gesture := "single-tap"
	if count >= 2 {
		gesture = "double-tap"
	}
	r.logger.Debugf("Publishing gesture: %s", gesture)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, "pageturner", "gesture", gesture)
	pipe.HSet(r.ctx, "pageturner", "gesture:timestamp", time.Now().UTC().Format(time.RFC3339))
	pipe.Publish(r.ctx, "gestures", gesture)
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to publish gesture: %w", err)
	}
	return nil
}

// SetHostConnected records whether a USB host has enumerated the keyboard.
func (r *RedisClient) SetHostConnected(connected bool) error {
	return r.publishHashSet("pageturner", "host:connected", connected, "pageturner", "host")
}

// SetUsbDriveExported records whether the data partition is exported to the
// host as mass storage.
func (r *RedisClient) SetUsbDriveExported(exported bool) error {
	return r.publishHashSet("pageturner", "usb-drive:exported", exported, "pageturner", "usb-drive")
}

func (r *RedisClient) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}
