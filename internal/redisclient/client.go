package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	bookingCacheTTL = 10 * time.Minute
	idempotencyTTL  = 24 * time.Hour
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

func bookingKey(id string) string {
	return "booking:" + id
}

// GetBookingDetail returns a cached booking aggregate, or nil on miss
func (c *Client) GetBookingDetail(ctx context.Context, bookingID string) (*models.BookingDetail, error) {
	raw, err := c.rdb.Get(ctx, bookingKey(bookingID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var detail models.BookingDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		// Drop poisoned entries instead of serving them.
		_ = c.rdb.Del(ctx, bookingKey(bookingID)).Err()
		return nil, nil
	}
	return &detail, nil
}

// SetBookingDetail caches a booking aggregate with TTL
func (c *Client) SetBookingDetail(ctx context.Context, detail *models.BookingDetail) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, bookingKey(detail.Booking.ID), raw, bookingCacheTTL).Err()
}

// InvalidateBooking drops a booking aggregate from the cache. Called on
// every status transition so reads never see a stale lifecycle state.
func (c *Client) InvalidateBooking(ctx context.Context, bookingID string) error {
	return c.rdb.Del(ctx, bookingKey(bookingID)).Err()
}

// GetIdempotentBooking returns the booking id recorded for an idempotency
// key, or "" when the key is unknown
func (c *Client) GetIdempotentBooking(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, "idempotency:"+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetIdempotentBooking records the booking created for an idempotency key
func (c *Client) SetIdempotentBooking(ctx context.Context, key, bookingID string) error {
	return c.rdb.Set(ctx, "idempotency:"+key, bookingID, idempotencyTTL).Err()
}
