package otp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix       = "otp"
	otpRecordVersionV1   = 1
	redisTxMaxRetries    = 4
	redisSweepScanCount  = 256
	redisRetentionFactor = 2
)

// RedisCache is a [Cache] shared by every process pointed at the same Redis.
//
// Keys live for twice the TTL so that a late verify still reports [ErrExpired]
// instead of [ErrNotFound]; Redis expiry is the backstop, Sweep the eager path.
type RedisCache struct {
	cfg    Config
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCache validates cfg and binds the cache to client. An empty prefix uses "otp".
func NewRedisCache(client redis.UniversalClient, prefix string, cfg Config) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisCache{cfg: cfg, redis: client, prefix: prefix}, nil
}

// TTL returns the lifetime of an issued code; keys are retained longer.
func (c *RedisCache) TTL() time.Duration {
	return c.cfg.TTL
}

func (c *RedisCache) key(email string) string {
	return c.prefix + ":" + email
}

// Issue stores a fresh code for email, replacing any pending one in a single SET.
func (c *RedisCache) Issue(ctx context.Context, email string) (string, error) {
	code, err := internal.NewOTP(c.cfg.Digits)
	if err != nil {
		return "", err
	}

	encoded, err := encodeEntry(Entry{Code: code, IssuedAt: c.cfg.Now()})
	if err != nil {
		return "", err
	}

	if err := c.redis.Set(ctx, c.key(email), encoded, c.cfg.TTL*redisRetentionFactor).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

// Verify consumes the pending entry when code matches. The read and the delete
// run in one optimistic transaction; a concurrent overwrite aborts and retries.
func (c *RedisCache) Verify(ctx context.Context, email, code string) error {
	key := c.key(email)

	for i := 0; i < redisTxMaxRetries; i++ {
		err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			entry, err := decodeEntry(data)
			if err != nil {
				return err
			}

			if entry.expired(c.cfg.Now(), c.cfg.TTL) {
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrExpired
			}

			if !entry.matches(code) {
				return ErrMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			return ErrNotFound
		case errors.Is(err, ErrExpired), errors.Is(err, ErrMismatch):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return fmt.Errorf("%w: verify contention on %s", ErrUnavailable, key)
}

// Sweep scans the key prefix and deletes expired entries. Each delete is guarded
// by WATCH so an entry re-issued during the scan is left alone.
func (c *RedisCache) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := c.redis.Scan(ctx, 0, c.prefix+":*", redisSweepScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			entry, err := decodeEntry(data)
			if err == nil && !entry.expired(c.cfg.Now(), c.cfg.TTL) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err == nil {
				removed++
			}
			return err
		}, key)
		if err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, redis.TxFailedErr) {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}

// Connect verifies the server is reachable. go-redis dials lazily, so Connect and
// Ping are the same round trip.
func (c *RedisCache) Connect(ctx context.Context) error {
	return c.Ping(ctx)
}

// Ping issues a PING to the server.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func encodeEntry(entry Entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, entry.IssuedAt.UnixNano()); err != nil {
		return nil, err
	}
	if len(entry.Code) > 255 {
		return nil, errors.New("otp code too long")
	}
	buf.WriteByte(byte(len(entry.Code)))
	buf.WriteString(entry.Code)

	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (Entry, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Entry{}, err
	}
	if version != otpRecordVersionV1 {
		return Entry{}, errors.New("invalid otp record version")
	}

	var issuedAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return Entry{}, err
	}

	codeLen, err := reader.ReadByte()
	if err != nil {
		return Entry{}, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return Entry{}, err
	}
	if reader.Len() != 0 {
		return Entry{}, errors.New("trailing bytes in otp record")
	}

	return Entry{Code: string(code), IssuedAt: time.Unix(0, issuedAt)}, nil
}
