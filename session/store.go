package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record matches the given refresh token.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned by Create when a record already exists for
	// the refresh-token value.
	ErrConflict = errors.New("session already exists for refresh token")

	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const defaultPrefix = "as"

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
return 1
`

var createLua = redis.NewScript(createScript)

const invalidateStatusNotFound = 0

// Patches the validity byte in place. The flag sits at byte 2 of the
// encoded record (see encoder.go); the transition is one-way, so an
// already-cleared flag is left untouched.
const invalidateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
if string.byte(data, 2) == 0 then
  return {1, data}
end
local updated = string.sub(data, 1, 1) .. string.char(0) .. string.sub(data, 3)
redis.call("SET", KEYS[1], updated)
return {2, updated}
`

var invalidateLua = redis.NewScript(invalidateScript)

// Store is the Redis-backed session store. All methods are safe for
// concurrent use; per-record updates are conditional inside Redis, so
// multiple store instances may point at the same database.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store using client. prefix namespaces every key and
// defaults to "as" when empty.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *Store) tokenKey(token string) string {
	return s.tokenKeyFromHash(tokenHash(token))
}

func (s *Store) tokenKeyFromHash(hash string) string {
	return s.prefix + ":tok:" + hash
}

func (s *Store) identityKey(id int64) string {
	return s.prefix + ":id:" + strconv.FormatInt(id, 10)
}

func (s *Store) expiryKey() string {
	return s.prefix + ":exp"
}

// Create inserts a new session record. It fails with ErrConflict when a
// record for the same refresh token already exists.
func (s *Store) Create(ctx context.Context, rec *Record) (*Record, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	hash := tokenHash(rec.RefreshToken)
	keys := []string{s.tokenKeyFromHash(hash), s.identityKey(rec.IdentityID), s.expiryKey()}
	res, err := createLua.Run(ctx, s.redis, keys, data, hash, rec.ExpiresAt.Unix()).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return nil, ErrConflict
	}

	return rec, nil
}

// FindByToken returns the record for the refresh token, or ErrNotFound.
func (s *Store) FindByToken(ctx context.Context, token string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeRecord(data)
}

// FindAllByIdentity returns every session record for the identity, in no
// particular order. An identity with no sessions yields an empty slice.
func (s *Store) FindAllByIdentity(ctx context.Context, identityID int64) ([]*Record, error) {
	hashes, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = s.tokenKeyFromHash(h)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]*Record, 0, len(values))
	for _, v := range values {
		blob, ok := v.(string)
		if !ok {
			continue // index member swept between SMEMBERS and MGET
		}
		rec, err := decodeRecord([]byte(blob))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// IsValid returns the record's validity flag. Expiry is deliberately not
// consulted here: an expired-but-never-invalidated record reports valid
// until SweepExpired removes it.
func (s *Store) IsValid(ctx context.Context, token string) (bool, error) {
	rec, err := s.FindByToken(ctx, token)
	if err != nil {
		return false, err
	}
	return rec.Valid, nil
}

// Invalidate clears the record's validity flag and returns the updated
// record. Invalidating an already-invalid record is a no-op, not an error.
// It fails with ErrNotFound when no record matches.
func (s *Store) Invalidate(ctx context.Context, token string) (*Record, error) {
	return s.invalidateKey(ctx, s.tokenKey(token))
}

func (s *Store) invalidateKey(ctx context.Context, key string) (*Record, error) {
	res, err := invalidateLua.Run(ctx, s.redis, []string{key}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("%w: malformed script reply", ErrRedisUnavailable)
	}
	status, _ := reply[0].(int64)
	if status == invalidateStatusNotFound {
		return nil, ErrNotFound
	}
	blob, _ := reply[1].(string)
	return decodeRecord([]byte(blob))
}

// InvalidateAll clears the validity flag on every record for the identity.
// It is idempotent and a no-op when the identity has no sessions.
func (s *Store) InvalidateAll(ctx context.Context, identityID int64) error {
	hashes, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, h := range hashes {
		if _, err := s.invalidateKey(ctx, s.tokenKeyFromHash(h)); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// SweepExpired physically deletes every record whose expiry instant is at
// or before now, regardless of validity flag, and returns the number of
// records removed.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	hashes, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	deleted := 0
	for _, h := range hashes {
		key := s.tokenKeyFromHash(h)

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				s.redis.ZRem(ctx, s.expiryKey(), h)
				continue
			}
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return deleted, err
		}

		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.identityKey(rec.IdentityID), h)
			pipe.ZRem(ctx, s.expiryKey(), h)
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		deleted++
	}

	return deleted, nil
}
