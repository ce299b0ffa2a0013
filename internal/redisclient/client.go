package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Session is the per-customer conversation state. Versioned so the layout can
// evolve without breaking stored blobs.
type Session struct {
	Version       int       `json:"version"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name"`
	PendingText   string    `json:"pending_text,omitempty"`
	ActiveOrderID string    `json:"active_order_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	SessionVersion = 1
	sessionTTL     = 24 * time.Hour
	dedupTTL       = 24 * time.Hour
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetSession loads the conversation session for a phone, nil when none exists
func (c *Client) GetSession(ctx context.Context, phone string) (*Session, error) {
	data, err := c.rdb.Get(ctx, sessionKey(phone)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// SaveSession stores the conversation session with a sliding 24h TTL
func (c *Client) SaveSession(ctx context.Context, session *Session) error {
	session.Version = SessionVersion
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.Phone), data, sessionTTL).Err()
}

// DeleteSession drops the conversation session
func (c *Client) DeleteSession(ctx context.Context, phone string) error {
	return c.rdb.Del(ctx, sessionKey(phone)).Err()
}

// ClaimToolCall claims a tool-call id for deduplication. Returns true when
// this is the first delivery; a replay gets false and must not mutate state.
func (c *Client) ClaimToolCall(ctx context.Context, callID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("toolcall:%s", callID), "1", dedupTTL).Result()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

func sessionKey(phone string) string {
	return fmt.Sprintf("session:%s", phone)
}
