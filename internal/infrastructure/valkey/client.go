package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
	"github.com/lmaertin/pooldose-go/internal/values"
)

const (
	dialTimeout      = 3 * time.Second
	ioTimeout        = 2 * time.Second
	operationTimeout = 2 * time.Second
)

// Client stores snapshots and values in Valkey.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// Connect creates a client and verifies the server with a ping.
func Connect(ctx context.Context, cfg config.ValkeyConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Address, err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg config.ValkeyConfig) *Client {
	return &Client{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		ttl:    time.Duration(cfg.TTL) * time.Second,
	}
}

// SnapshotKey returns the key holding a device's structured snapshot.
func (c *Client) SnapshotKey(deviceID string) string {
	return joinKey(c.prefix, deviceID, "snapshot")
}

// ValueKey returns the key holding one decoded value.
func (c *Client) ValueKey(deviceID, name string) string {
	return joinKey(c.prefix, deviceID, "values", name)
}

// HealthKey returns the key holding the poll health of a device.
func (c *Client) HealthKey(deviceID string) string {
	return joinKey(c.prefix, deviceID, "health")
}

// ChangesChannel returns the pub/sub channel for value changes.
func (c *Client) ChangesChannel(deviceID string) string {
	return joinKey(c.prefix, deviceID, "changes")
}

// StoreSnapshot writes the snapshot key and the value keys of the changed
// names in one pipeline, then publishes each change. A nil changed slice
// stores every value.
func (c *Client) StoreSnapshot(ctx context.Context, deviceID string, snapshot values.StructuredSnapshot, changed []string, at time.Time) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}

	snapData, err := json.Marshal(SnapshotMessage{DeviceID: deviceID, Values: snapshot, Timestamp: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	var selected map[string]bool
	if changed != nil {
		selected = make(map[string]bool, len(changed))
		for _, n := range changed {
			selected[n] = true
		}
	}

	var messages [][]byte
	var marshalErr error
	opCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err = rdb.Pipelined(opCtx, func(pipe redis.Pipeliner) error {
		pipe.Set(opCtx, c.SnapshotKey(deviceID), snapData, c.ttl)

		snapshot.Each(func(name string, d values.Decoded) {
			if selected != nil && !selected[name] {
				return
			}
			data, err := json.Marshal(newValueMessage(deviceID, name, d, at))
			if err != nil {
				marshalErr = err
				return
			}
			pipe.Set(opCtx, c.ValueKey(deviceID, name), data, c.ttl)
			messages = append(messages, data)
		})

		for _, data := range messages {
			pipe.Publish(opCtx, c.ChangesChannel(deviceID), data)
		}
		return nil
	})
	if marshalErr != nil {
		return fmt.Errorf("marshalling value: %w", marshalErr)
	}
	if err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	return nil
}

// StoreHealth writes the poll health of a device.
func (c *Client) StoreHealth(ctx context.Context, deviceID string, online bool, status, errMsg string) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(HealthMessage{
		DeviceID:  deviceID,
		Online:    online,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling health: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if err := rdb.Set(opCtx, c.HealthKey(deviceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing health: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("valkey health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool. Later calls return ErrNotConnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.rdb == nil {
		return nil
	}
	c.closed = true
	return c.rdb.Close()
}

func (c *Client) conn() (*redis.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.rdb == nil {
		return nil, ErrNotConnected
	}
	return c.rdb, nil
}
