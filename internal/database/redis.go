package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weathernow/weathernow/internal/model"
)

// RedisStore keeps each session in a hash that expires after ttl of
// inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// Ensure RedisStore implements Store interface.
var _ Store = (*RedisStore)(nil)

var (
	incrSeqScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local n = redis.call('HINCRBY', KEYS[1], 'seq', 1)
redis.call('HSET', KEYS[1], 'updated', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return n`)

	commitCardScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'seq') ~= ARGV[1] then return 0 end
if ARGV[2] == '' then
  redis.call('HDEL', KEYS[1], 'card')
else
  redis.call('HSET', KEYS[1], 'card', ARGV[2])
end
redis.call('HSET', KEYS[1], 'updated', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1`)

	swapCardScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'card') ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'card', ARGV[2], 'updated', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1`)
)

// NewRedis connects to redis. url format: "redis://:password@host:6379/0".
func NewRedis(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(id string) string { return "weathernow:session:" + id }

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// DatabaseType returns the database backend name.
func (s *RedisStore) DatabaseType() string {
	return "Redis"
}

func (s *RedisStore) OpenSession(ctx context.Context, id string) (*model.Session, error) {
	key := sessionKey(id)
	now := time.Now().UnixMilli()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, key, "seq", 0)
		p.HSetNX(ctx, key, "favorites", "[]")
		p.HSetNX(ctx, key, "history", "[]")
		p.HSet(ctx, key, "updated", now)
		p.PExpire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	sess := &model.Session{ID: id}
	if sess.SearchSeq, err = strconv.ParseInt(fields["seq"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode seq: %w", err)
	}
	if card, ok := fields["card"]; ok {
		if sess.Card, err = decodeCard(sql.NullString{String: card, Valid: true}); err != nil {
			return nil, err
		}
	}
	if sess.Favorites, err = decodeRows(fields["favorites"]); err != nil {
		return nil, err
	}
	if sess.History, err = decodeRows(fields["history"]); err != nil {
		return nil, err
	}
	updated, _ := strconv.ParseInt(fields["updated"], 10, 64)
	sess.UpdatedAt = time.UnixMilli(updated)
	return sess, nil
}

func (s *RedisStore) NextSearchSeq(ctx context.Context, id string) (int64, error) {
	n, err := incrSeqScript.Run(ctx, s.rdb, []string{sessionKey(id)},
		time.Now().UnixMilli(), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrSessionNotFound
	}
	return n, nil
}

func (s *RedisStore) CommitCard(ctx context.Context, id string, seq int64, card *model.Card) (bool, error) {
	raw, err := encodeCard(card)
	if err != nil {
		return false, err
	}
	n, err := commitCardScript.Run(ctx, s.rdb, []string{sessionKey(id)},
		strconv.FormatInt(seq, 10), raw.String, time.Now().UnixMilli(), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) SetCardFavorite(ctx context.Context, id, city string, favorite bool) (*model.Card, error) {
	key := sessionKey(id)
	raw, err := s.rdb.HGet(ctx, key, "card").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	card, encoded, ok, err := flipCard(sql.NullString{String: raw, Valid: true}, city, favorite)
	if err != nil || !ok {
		return nil, err
	}
	n, err := swapCardScript.Run(ctx, s.rdb, []string{key},
		raw, encoded.String, time.Now().UnixMilli(), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return card, nil
}

func (s *RedisStore) SaveRows(ctx context.Context, id string, kind model.ListKind, rows []string) error {
	field, err := rowsColumn(kind)
	if err != nil {
		return err
	}
	encoded, err := encodeRows(rows)
	if err != nil {
		return err
	}
	key := sessionKey(id)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	return s.rdb.HSet(ctx, key, field, encoded, "updated", time.Now().UnixMilli()).Err()
}

// DeleteSessionsBefore is a no-op: redis expires idle sessions itself.
func (s *RedisStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
